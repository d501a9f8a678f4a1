package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"MEMBERHUB_APP_"`
	Server    ServerConfig    `envPrefix:"MEMBERHUB_SERVER_"`
	Log       LogConfig       `envPrefix:"MEMBERHUB_LOG_"`
	Database  DatabaseConfig  `envPrefix:"MEMBERHUB_DATABASE_"`
	Auth      AuthConfig      `envPrefix:"MEMBERHUB_AUTH_"`
	Token     TokenConfig     `envPrefix:"MEMBERHUB_TOKEN_"`
	Session   SessionConfig   `envPrefix:"MEMBERHUB_SESSION_"`
	Mail      MailConfig      `envPrefix:"MEMBERHUB_MAIL_"`
	GeoIP     GeoIPConfig     `envPrefix:"MEMBERHUB_GEOIP_"`
	TOTP      TOTPConfig      `envPrefix:"MEMBERHUB_TOTP_"`
	RateLimit RateLimitConfig `envPrefix:"MEMBERHUB_RATELIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"MemberHub"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"json"`
	OutputPath string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"memberhub.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength      int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"PASSWORD_REQUIRE_UPPER" envDefault:"true"`
	RequireLower   bool `env:"PASSWORD_REQUIRE_LOWER" envDefault:"true"`
	RequireNumber  bool `env:"PASSWORD_REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"false"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"12"`
}

type TokenConfig struct {
	OTPExpiry        time.Duration `env:"OTP_EXPIRY" envDefault:"10m"`
	ResetExpiry      time.Duration `env:"RESET_EXPIRY" envDefault:"60m"`
	ResetTokenLength int           `env:"RESET_TOKEN_LENGTH" envDefault:"32"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	ResendCooldown   time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
}

type SessionConfig struct {
	Expiry time.Duration `env:"EXPIRY" envDefault:"720h"`
}

type MailConfig struct {
	Host         string        `env:"HOST" envDefault:"localhost"`
	Port         int           `env:"PORT" envDefault:"587"`
	Username     string        `env:"USERNAME"`
	Password     string        `env:"PASSWORD"`
	Encryption   string        `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress  string        `env:"FROM_ADDRESS"`
	FromName     string        `env:"FROM_NAME" envDefault:"MemberHub"`
	TemplatesDir string        `env:"TEMPLATES_DIR"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`
}

type GeoIPConfig struct {
	LookupURL   string        `env:"LOOKUP_URL" envDefault:"http://ip-api.com"`
	PublicIPURL string        `env:"PUBLIC_IP_URL" envDefault:"https://api.ipify.org"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"3s"`
}

type TOTPConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Issuer  string `env:"ISSUER" envDefault:"MemberHub"`
}

type RateLimitConfig struct {
	Rate   int           `env:"RATE" envDefault:"10"`
	Period time.Duration `env:"PERIOD" envDefault:"1m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
