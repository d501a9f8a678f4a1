package user

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrUserNotFound          = errors.New("user not found")
	ErrAlreadyVerified       = errors.New("email is already verified")
)

type Service struct {
	config *config.AuthConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.AuthConfig, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.MinLength {
		return fmt.Errorf("password must be at least %d characters", s.config.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var missing []string

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if s.config.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		if s.logger != nil {
			s.logger.Warn("password validation failed: missing requirements",
				zap.Strings("missing_requirements", missing))
		}
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}

	return string(hash), nil
}

// VerifyPassword compares in constant time and collapses every failure
// into ErrInvalidCredentials so callers cannot distinguish causes.
func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		if s.logger != nil {
			s.logger.Warn("password verification failed")
		}
		return ErrInvalidCredentials
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Create(email, rawPassword string, profile Profile) (*User, error) {
	email = NormalizeEmail(email)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	hash, err := s.HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		Name:         profile.Name,
		Phone:        profile.Phone,
	}

	if err := s.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			if s.logger != nil {
				s.logger.Warn("signup attempted with registered email")
			}
			return nil, ErrEmailTaken
		}
		if s.logger != nil {
			s.logger.Error("failed to create user", zap.Error(err))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user created", zap.Uint("user_id", u.ID))
	}
	return u, nil
}

// isUniqueViolation catches drivers that do not map their duplicate-key
// errors onto gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (s *Service) FindByEmail(email string) (*User, error) {
	var u User
	if err := s.db.Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	return &u, nil
}

func (s *Service) FindByID(id uint) (*User, error) {
	var u User
	if err := s.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user by id: %w", err)
	}
	return &u, nil
}

// ChangePassword rehashes and overwrites the stored hash. It deliberately
// does not touch existing sessions; callers that need those gone must
// revoke them through the session service.
func (s *Service) ChangePassword(userID uint, newRawPassword string) error {
	hash, err := s.HashPassword(newRawPassword)
	if err != nil {
		return err
	}

	result := s.db.Model(&User{}).Where("id = ?", userID).Update("password_hash", hash)
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to update password", zap.Error(result.Error), zap.Uint("user_id", userID))
		}
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	if s.logger != nil {
		s.logger.Info("password changed", zap.Uint("user_id", userID))
	}
	return nil
}

// MarkEmailVerified flips the verified flag exactly once. The guarded
// update keeps the flip one-way even under concurrent verification calls.
func (s *Service) MarkEmailVerified(userID uint) error {
	now := time.Now()
	result := s.db.Model(&User{}).
		Where("id = ? AND email_verified = ?", userID, false).
		Updates(map[string]any{
			"email_verified":    true,
			"email_verified_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark email verified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var u User
		if err := s.db.First(&u, userID).Error; err != nil {
			return ErrUserNotFound
		}
		return ErrAlreadyVerified
	}

	if s.logger != nil {
		s.logger.Info("email verified", zap.Uint("user_id", userID))
	}
	return nil
}

func (s *Service) SetTwoFactor(userID uint, enabled bool) error {
	result := s.db.Model(&User{}).Where("id = ?", userID).Update("two_factor_enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update two-factor flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
