package testutils

import (
	"time"

	"github.com/memberhub-io/memberhub/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "MemberHub Test",
			URL:  "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireLower:   true,
			RequireNumber:  true,
			RequireSpecial: false,
			BcryptCost:     bcrypt.MinCost,
		},
		Token: config.TokenConfig{
			OTPExpiry:        10 * time.Minute,
			ResetExpiry:      time.Hour,
			ResetTokenLength: 32,
			MaxAttempts:      5,
			ResendCooldown:   time.Minute,
		},
		Session: config.SessionConfig{
			Expiry: 30 * 24 * time.Hour,
		},
		GeoIP: config.GeoIPConfig{
			LookupURL:   "http://ip-api.invalid",
			PublicIPURL: "http://ipify.invalid",
			Timeout:     time.Second,
		},
		TOTP: config.TOTPConfig{
			Enabled: true,
			Issuer:  "MemberHub Test",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		RateLimit: config.RateLimitConfig{
			Rate:   1000,
			Period: time.Minute,
		},
	}
}

var TestPasswords = struct {
	Valid    string
	Another  string
	TooShort string
	NoUpper  string
	NoNumber string
}{
	Valid:    "Password123",
	Another:  "Different456",
	TooShort: "Pass1",
	NoUpper:  "password123",
	NoNumber: "Password",
}
