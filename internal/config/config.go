package config

import (
	"fmt"
	"os"
	"time"
)

const defaultSecret = "your-secret-key-change-in-production"

type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration
}

func Load() *Config {
	config := &Config{
		JWTSecret:   getEnv("JWT_SECRET", defaultSecret),
		JWTIssuer:   getEnv("JWT_ISS", "decor-inventory-api"),
		JWTAudience: getEnv("JWT_AUD", "decor-inventory-api"),
		JWTExpiry:   24 * time.Hour,
	}

	if expiryStr := os.Getenv("JWT_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil {
			config.JWTExpiry = expiry
		}
	}

	return config
}

// Validate checks the loaded configuration for values that would make
// token issuance unsafe or unusable.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters, got %d", len(c.JWTSecret))
	}
	if os.Getenv("ENVIRONMENT") == "production" && c.JWTSecret == defaultSecret {
		return fmt.Errorf("JWT_SECRET must be changed from the default in production")
	}
	if c.JWTIssuer == "" {
		return fmt.Errorf("JWT_ISS must not be empty")
	}
	if c.JWTAudience == "" {
		return fmt.Errorf("JWT_AUD must not be empty")
	}
	if c.JWTExpiry < time.Minute {
		return fmt.Errorf("JWT_EXPIRY must be at least 1 minute, got %v", c.JWTExpiry)
	}
	if c.JWTExpiry > 30*24*time.Hour {
		return fmt.Errorf("JWT_EXPIRY must be at most 30 days, got %v", c.JWTExpiry)
	}
	return nil
}

func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
