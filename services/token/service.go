package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTokenInvalid     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrAttemptsExceeded = errors.New("too many verification attempts")
)

// Service issues and verifies short-lived single-use secrets. Only the
// sha256 of a secret is ever persisted; the raw value leaves this
// package exactly once, in the Issue return.
type Service struct {
	config *config.TokenConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.TokenConfig, db *gorm.DB, logger *logging.Service) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ResetTokenLength <= 0 {
		cfg.ResetTokenLength = 32
	}
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateOTP draws a uniform 6-digit code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) generateResetToken() (string, error) {
	bytes := make([]byte, s.config.ResetTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

func (s *Service) ttl(purpose Purpose) time.Duration {
	if purpose == PurposePasswordReset {
		return s.config.ResetExpiry
	}
	return s.config.OTPExpiry
}

// Issue creates or replaces the live secret for (userID, purpose) and
// returns the raw value. The write is a single upsert keyed on the
// composite unique index, so a double-clicked resend still leaves
// exactly one live token with fresh expiry and zeroed attempts.
func (s *Service) Issue(userID uint, purpose Purpose) (string, error) {
	var raw string
	var err error

	switch purpose {
	case PurposePasswordReset:
		raw, err = s.generateResetToken()
	case PurposeEmailVerify, PurposeTwoFactor:
		raw, err = generateOTP()
	default:
		return "", fmt.Errorf("unknown token purpose: %s", purpose)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Error("secret generation failed", zap.Error(err), zap.String("purpose", string(purpose)))
		}
		return "", err
	}

	now := time.Now()
	record := SecretToken{
		UserID:       userID,
		Purpose:      purpose,
		SecretHash:   hashSecret(raw),
		ExpiresAt:    now.Add(s.ttl(purpose)),
		ConsumedAt:   nil,
		AttemptCount: 0,
	}

	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "purpose"}},
		DoUpdates: clause.Assignments(map[string]any{
			"secret_hash":   record.SecretHash,
			"expires_at":    record.ExpiresAt,
			"consumed_at":   nil,
			"attempt_count": 0,
			"updated_at":    now,
		}),
	}).Create(&record).Error
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to persist secret token",
				zap.Error(err),
				zap.Uint("user_id", userID),
				zap.String("purpose", string(purpose)))
		}
		return "", fmt.Errorf("failed to persist secret token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("secret token issued",
			zap.Uint("user_id", userID),
			zap.String("purpose", string(purpose)),
			zap.Time("expires_at", record.ExpiresAt))
	}
	return raw, nil
}

// Verify checks a presented value against the live token for
// (userID, purpose). Failure ordering is deliberate: the attempt
// ceiling is enforced before the hash comparison so a correct value on
// the attempt past the ceiling still fails, and expiry is checked
// independently of correctness.
func (s *Service) Verify(userID uint, purpose Purpose, presented string) error {
	var record SecretToken
	err := s.db.Where("user_id = ? AND purpose = ?", userID, purpose).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("failed to load secret token: %w", err)
	}

	return s.verifyRecord(&record, presented)
}

func (s *Service) verifyRecord(record *SecretToken, presented string) error {
	if record.ConsumedAt != nil {
		return ErrTokenInvalid
	}

	if record.AttemptCount >= s.config.MaxAttempts {
		if s.logger != nil {
			s.logger.Warn("token attempt ceiling reached",
				zap.Uint("user_id", record.UserID),
				zap.String("purpose", string(record.Purpose)))
		}
		return ErrAttemptsExceeded
	}

	if time.Now().After(record.ExpiresAt) {
		return ErrTokenExpired
	}

	presentedHash := hashSecret(presented)
	if subtle.ConstantTimeCompare([]byte(presentedHash), []byte(record.SecretHash)) != 1 {
		if err := s.db.Model(&SecretToken{}).
			Where("id = ?", record.ID).
			UpdateColumn("attempt_count", gorm.Expr("attempt_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to record verification attempt: %w", err)
		}
		return ErrTokenInvalid
	}

	return s.consume(record.ID)
}

// consume is the check-and-set that makes a token single-use: the
// guarded update only wins for one caller, everyone else sees zero rows
// affected and is told the token is invalid.
func (s *Service) consume(id uint) error {
	result := s.db.Model(&SecretToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to consume secret token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenInvalid
	}
	return nil
}

// ConsumeByValue verifies and consumes a token located by its hash
// alone, for flows like reset links where the request carries no user
// id. Returns the owning user id on success.
func (s *Service) ConsumeByValue(purpose Purpose, presented string) (uint, error) {
	var record SecretToken
	err := s.db.Where("purpose = ? AND secret_hash = ? AND consumed_at IS NULL", purpose, hashSecret(presented)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTokenInvalid
		}
		return 0, fmt.Errorf("failed to look up secret token: %w", err)
	}

	if record.AttemptCount >= s.config.MaxAttempts {
		return 0, ErrAttemptsExceeded
	}
	if time.Now().After(record.ExpiresAt) {
		return 0, ErrTokenExpired
	}

	if err := s.consume(record.ID); err != nil {
		return 0, err
	}
	return record.UserID, nil
}

// IssuedRecently reports whether a live token for (userID, purpose) was
// issued within the given window. Backs the server-side resend cooldown
// instead of trusting a client countdown.
func (s *Service) IssuedRecently(userID uint, purpose Purpose, window time.Duration) (bool, error) {
	var record SecretToken
	err := s.db.Where("user_id = ? AND purpose = ?", userID, purpose).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load secret token: %w", err)
	}

	if record.ConsumedAt != nil {
		return false, nil
	}
	return time.Since(record.UpdatedAt) < window, nil
}

func (s *Service) CleanupExpired() error {
	result := s.db.Where("expires_at < ? OR consumed_at IS NOT NULL", time.Now()).Delete(&SecretToken{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup secret tokens: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("expired secret tokens cleaned up", zap.Int64("tokens_removed", result.RowsAffected))
	}
	return nil
}
