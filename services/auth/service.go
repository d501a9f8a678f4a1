package auth

import (
	"context"
	"fmt"

	"github.com/memberhub-io/memberhub/config"
	"github.com/memberhub-io/memberhub/services/logging"
	"github.com/memberhub-io/memberhub/services/session"
	"github.com/memberhub-io/memberhub/services/token"
	"github.com/memberhub-io/memberhub/services/totp"
	"github.com/memberhub-io/memberhub/services/user"
	"go.uber.org/zap"
)

// Dispatcher is the slice of the mail service the auth flows need.
// Delivery is always best effort here: the user-facing outcome of a
// flow is decided before Send is attempted.
type Dispatcher interface {
	Send(to []string, subject, htmlBody string) error
}

// Service orchestrates the credential, token and session services into
// the signup, login, two-factor and password-reset flows.
type Service struct {
	config     *config.Config
	users      *user.Service
	tokens     *token.Service
	sessions   *session.Service
	totp       *totp.Service
	dispatcher Dispatcher
	logger     *logging.Service
}

func NewService(
	cfg *config.Config,
	users *user.Service,
	tokens *token.Service,
	sessions *session.Service,
	totpService *totp.Service,
	dispatcher Dispatcher,
	logger *logging.Service,
) *Service {
	return &Service{
		config:     cfg,
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		totp:       totpService,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// LoginResult is either a created session plus its raw bearer token, or
// a two-factor challenge referencing the pending user. Never both.
type LoginResult struct {
	Session           *session.Session
	Token             string
	TwoFactorRequired bool
	UserID            uint
}

// Register creates the user and kicks off email verification. The OTP
// email is sent after the signup outcome is already decided; a delivery
// failure is logged and swallowed so it cannot change the response.
func (s *Service) Register(email, password string, profile user.Profile) (*user.User, error) {
	u, err := s.users.Create(email, password, profile)
	if err != nil {
		return nil, err
	}

	otp, err := s.tokens.Issue(u.ID, token.PurposeEmailVerify)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to issue verification code after signup",
				zap.Error(err), zap.Uint("user_id", u.ID))
		}
		return u, nil
	}

	s.send(u.Email, "Verify your email address", verificationBody(s.config.App.Name, otp, s.config.Token.OTPExpiry.String()))
	return u, nil
}

// VerifyEmail checks the emailed OTP and flips the user's verified flag.
func (s *Service) VerifyEmail(email, otp string) error {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		return token.ErrTokenInvalid
	}

	if err := s.tokens.Verify(u.ID, token.PurposeEmailVerify, otp); err != nil {
		return err
	}

	return s.users.MarkEmailVerified(u.ID)
}

// ResendVerification reissues the email-verification OTP. The outcome is
// generic: unknown addresses, already-verified users and cooldown hits
// all look identical to the caller.
func (s *Service) ResendVerification(email string) error {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		if s.logger != nil {
			s.logger.Info("verification resend for unknown email ignored")
		}
		return nil
	}
	if u.EmailVerified {
		return nil
	}

	recent, err := s.tokens.IssuedRecently(u.ID, token.PurposeEmailVerify, s.config.Token.ResendCooldown)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("resend cooldown check failed", zap.Error(err), zap.Uint("user_id", u.ID))
		}
		return nil
	}
	if recent {
		if s.logger != nil {
			s.logger.Info("verification resend inside cooldown ignored", zap.Uint("user_id", u.ID))
		}
		return nil
	}

	otp, err := s.tokens.Issue(u.ID, token.PurposeEmailVerify)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to reissue verification code", zap.Error(err), zap.Uint("user_id", u.ID))
		}
		return nil
	}

	s.send(u.Email, "Verify your email address", verificationBody(s.config.App.Name, otp, s.config.Token.OTPExpiry.String()))
	return nil
}

// Login verifies the password and either creates a session immediately
// or, for two-factor users, issues an OTP challenge. No session exists
// until the challenge passes. Unknown email and wrong password are both
// user.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string, meta session.Metadata) (*LoginResult, error) {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		return nil, user.ErrInvalidCredentials
	}

	if err := s.users.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, user.ErrInvalidCredentials
	}

	if u.TwoFactorEnabled {
		otp, err := s.tokens.Issue(u.ID, token.PurposeTwoFactor)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("failed to issue two-factor code", zap.Error(err), zap.Uint("user_id", u.ID))
			}
			return nil, fmt.Errorf("failed to issue two-factor code: %w", err)
		}

		s.send(u.Email, "Your login code", twoFactorBody(s.config.App.Name, otp, s.config.Token.OTPExpiry.String()))

		if s.logger != nil {
			s.logger.Info("two-factor challenge issued", zap.Uint("user_id", u.ID))
		}
		return &LoginResult{TwoFactorRequired: true, UserID: u.ID}, nil
	}

	return s.createSession(ctx, u.ID, meta)
}

// CompleteTwoFactor finishes a pending challenge with the emailed OTP
// or, for members with a confirmed authenticator enrolment, a TOTP code.
func (s *Service) CompleteTwoFactor(ctx context.Context, userID uint, code string, meta session.Metadata) (*LoginResult, error) {
	u, err := s.users.FindByID(userID)
	if err != nil {
		return nil, token.ErrTokenInvalid
	}

	verifyErr := s.tokens.Verify(u.ID, token.PurposeTwoFactor, code)
	if verifyErr != nil {
		if s.totp != nil && s.totp.IsEnrolled(u.ID) && s.totp.Verify(u.ID, code) == nil {
			verifyErr = nil
		}
	}
	if verifyErr != nil {
		return nil, verifyErr
	}

	return s.createSession(ctx, u.ID, meta)
}

func (s *Service) createSession(ctx context.Context, userID uint, meta session.Metadata) (*LoginResult, error) {
	sess, rawToken, err := s.sessions.Create(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess, Token: rawToken, UserID: userID}, nil
}

// RequestPasswordReset never reports whether the email is registered.
// The generic success outcome is decided up front; issuance or delivery
// faults after that point are logged server-side and swallowed.
func (s *Service) RequestPasswordReset(email string) {
	u, err := s.users.FindByEmail(email)
	if err != nil {
		if s.logger != nil {
			s.logger.Info("password reset for unknown email ignored")
		}
		return
	}

	raw, err := s.tokens.Issue(u.ID, token.PurposePasswordReset)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to issue password reset token",
				zap.Error(err), zap.Uint("user_id", u.ID))
		}
		return
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.config.App.URL, raw)
	s.send(u.Email, "Reset your password", resetBody(s.config.App.Name, link, s.config.Token.ResetExpiry.String()))
}

// ResetPassword consumes the reset token and installs the new password.
// The new password is validated before the token is consumed, so a
// policy rejection does not burn a valid token.
func (s *Service) ResetPassword(rawToken, newPassword string) error {
	if err := s.users.ValidatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.tokens.ConsumeByValue(token.PurposePasswordReset, rawToken)
	if err != nil {
		return err
	}

	if err := s.users.ChangePassword(userID, newPassword); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("password reset completed", zap.Uint("user_id", userID))
	}
	return nil
}

func (s *Service) send(to, subject, body string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Send([]string{to}, subject, body); err != nil && s.logger != nil {
		s.logger.Error("mail delivery failed", zap.Error(err), zap.String("subject", subject))
	}
}
