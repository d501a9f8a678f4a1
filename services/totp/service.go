package totp

import (
	"errors"
	"fmt"
	"time"

	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTOTPDisabled      = errors.New("TOTP is disabled")
	ErrInvalidCode       = errors.New("invalid TOTP code")
	ErrAlreadyEnrolled   = errors.New("an authenticator is already enrolled for this user")
	ErrEnrolmentNotFound = errors.New("no authenticator enrolment for this user")
	ErrCodeAlreadyUsed   = errors.New("TOTP code has already been used")
)

// replayWindow covers the current TOTP step plus the skew the validator
// accepts either side of it.
const replayWindow = 90 * time.Second

type Service struct {
	config *config.TOTPConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.TOTPConfig, db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		config: cfg,
		db:     db,
		logger: logger,
	}
}

// Enrol generates a fresh secret for the user. The enrolment stays
// unconfirmed, and unusable as a second factor, until Confirm sees a
// valid code. Re-enrolling over a confirmed authenticator is rejected;
// an unconfirmed one is replaced.
func (s *Service) Enrol(userID uint, accountName string) (*Enrolment, error) {
	if !s.config.Enabled {
		return nil, ErrTOTPDisabled
	}

	var existing Enrolment
	err := s.db.Where("user_id = ?", userID).First(&existing).Error
	switch {
	case err == nil && existing.Confirmed:
		return nil, ErrAlreadyEnrolled
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to check existing enrolment: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: accountName,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Error("TOTP key generation failed", zap.Error(err), zap.Uint("user_id", userID))
		}
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if existing.ID != 0 {
		existing.Secret = key.Secret()
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to replace enrolment: %w", err)
		}
		return &existing, nil
	}

	enrolment := &Enrolment{
		UserID: userID,
		Secret: key.Secret(),
	}
	if err := s.db.Create(enrolment).Error; err != nil {
		return nil, fmt.Errorf("failed to store enrolment: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("authenticator enrolment created", zap.Uint("user_id", userID))
	}
	return enrolment, nil
}

func (s *Service) Get(userID uint) (*Enrolment, error) {
	if !s.config.Enabled {
		return nil, ErrTOTPDisabled
	}

	var enrolment Enrolment
	if err := s.db.Where("user_id = ?", userID).First(&enrolment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrolmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrolment: %w", err)
	}
	return &enrolment, nil
}

// Confirm proves possession of the enrolled authenticator with a first
// valid code and activates it.
func (s *Service) Confirm(userID uint, code string) error {
	enrolment, err := s.Get(userID)
	if err != nil {
		return err
	}

	if !totp.Validate(code, enrolment.Secret) {
		if s.logger != nil {
			s.logger.Warn("authenticator confirmation failed", zap.Uint("user_id", userID))
		}
		return ErrInvalidCode
	}

	enrolment.Confirmed = true
	if err := s.db.Save(enrolment).Error; err != nil {
		return fmt.Errorf("failed to confirm enrolment: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("authenticator enrolment confirmed", zap.Uint("user_id", userID))
	}
	return nil
}

func (s *Service) Disable(userID uint) error {
	if !s.config.Enabled {
		return ErrTOTPDisabled
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ?", userID).Delete(&Enrolment{})
		if result.Error != nil {
			return fmt.Errorf("failed to disable authenticator: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrEnrolmentNotFound
		}

		if err := tx.Where("user_id = ?", userID).Delete(&UsedCode{}).Error; err != nil {
			return fmt.Errorf("failed to clean up used codes: %w", err)
		}

		if s.logger != nil {
			s.logger.Info("authenticator enrolment removed", zap.Uint("user_id", userID))
		}
		return nil
	})
}

func (s *Service) IsEnrolled(userID uint) bool {
	if !s.config.Enabled {
		return false
	}

	enrolment, err := s.Get(userID)
	if err != nil {
		return false
	}
	return enrolment.Confirmed
}

// Verify validates a code against the user's confirmed authenticator,
// recording it so a replay inside the validity window fails.
func (s *Service) Verify(userID uint, code string) error {
	if !s.config.Enabled {
		return ErrTOTPDisabled
	}

	enrolment, err := s.Get(userID)
	if err != nil {
		return err
	}
	if !enrolment.Confirmed {
		return ErrEnrolmentNotFound
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		cutoff := time.Now().Add(-replayWindow).Unix()
		var existing UsedCode
		if err := tx.Where("user_id = ? AND code = ? AND used_at > ?", userID, code, cutoff).
			First(&existing).Error; err == nil {
			if s.logger != nil {
				s.logger.Warn("TOTP code replay rejected", zap.Uint("user_id", userID))
			}
			return ErrCodeAlreadyUsed
		}

		if !totp.Validate(code, enrolment.Secret) {
			return ErrInvalidCode
		}

		used := &UsedCode{
			UserID: userID,
			Code:   code,
			UsedAt: time.Now().Unix(),
		}
		if err := tx.Create(used).Error; err != nil {
			return fmt.Errorf("failed to store used code: %w", err)
		}
		return nil
	})
}

func (s *Service) ProvisioningURI(enrolment *Enrolment, accountName string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		s.config.Issuer, accountName, enrolment.Secret, s.config.Issuer)
}

func (s *Service) CleanupUsedCodes() error {
	cutoff := time.Now().Add(-replayWindow).Unix()
	result := s.db.Where("used_at < ?", cutoff).Delete(&UsedCode{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup used codes: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("used TOTP codes cleaned up", zap.Int64("cleaned_count", result.RowsAffected))
	}
	return nil
}
