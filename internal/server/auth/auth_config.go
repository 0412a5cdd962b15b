package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/foldernotify/internal/utils"
)

const (
	DefaultTokenIssuer = "foldernotify"
	DefaultTokenExpiry = 24 * time.Hour
	minSecretLength    = 16
)

type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	TokenIssuer string        `mapstructure:"token_issuer"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

func (c *Config) Validate() error {
	if c.Enabled {
		if c.TokenIssuer == "" {
			return fmt.Errorf("auth `token_issuer` is required when auth is enabled")
		}
		if c.TokenSecret == "" {
			return fmt.Errorf("auth `token_secret` is required when auth is enabled")
		}
		if len(c.TokenSecret) < minSecretLength {
			return fmt.Errorf("auth `token_secret` must be at least %d characters", minSecretLength)
		}
		if c.TokenExpiry < 0 {
			return fmt.Errorf("auth `token_expiry` must not be negative")
		}
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("token_issuer", c.TokenIssuer),
		slog.String("token_secret", utils.MaskSecret(c.TokenSecret)),
		slog.Duration("token_expiry", c.TokenExpiry),
	)
}
