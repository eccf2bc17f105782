package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecretKey string `env:"JWT_SECRET_KEY,required,notEmpty"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`

	AllowGuests        bool     `env:"ALLOW_GUESTS" envDefault:"true"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	ClaimTimeout          time.Duration `env:"CLAIM_TIMEOUT" envDefault:"5s"`
	ProcessingTimeout     time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"10s"`
	MaxProcessingAttempts int           `env:"MAX_PROCESSING_ATTEMPTS" envDefault:"3"`
	SessionIdleTimeout    time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	RewardCacheTTL        time.Duration `env:"REWARD_CACHE_TTL" envDefault:"1m"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}
	if c.ClaimTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CLAIM_TIMEOUT must be positive, got %s", c.ClaimTimeout))
	}
	if c.ClaimTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("CLAIM_TIMEOUT must be at most one minute, got %s", c.ClaimTimeout))
	}
	if c.ProcessingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PROCESSING_TIMEOUT must be positive, got %s", c.ProcessingTimeout))
	}
	if c.MaxProcessingAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAX_PROCESSING_ATTEMPTS must be at least 1, got %d", c.MaxProcessingAttempts))
	}
	if c.SessionIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}
	for i, origin := range c.CORSAllowedOrigins {
		c.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return errors.Join(errs...)
}
