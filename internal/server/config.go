package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openmined/foldernotify/internal/server/analytics"
	"github.com/openmined/foldernotify/internal/server/auth"
	"github.com/openmined/foldernotify/internal/server/completion"
	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/server/handlers/push"
	"github.com/openmined/foldernotify/internal/server/notify"
	"github.com/ulule/limiter/v3"
)

const (
	DefaultAddr              = "0.0.0.0:8080"
	DefaultDBPath            = ".data/foldernotify.db"
	DefaultAdminRate         = "60-M"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
)

type Config struct {
	HTTP       HTTPConfig        `mapstructure:"http"`
	DB         DBConfig          `mapstructure:"db"`
	Gate       gate.Config       `mapstructure:"gate"`
	Push       push.Config       `mapstructure:"push"`
	Notify     notify.Config     `mapstructure:"notify"`
	Analytics  analytics.Config  `mapstructure:"analytics"`
	Completion completion.Config `mapstructure:"completion"`
	Auth       auth.Config       `mapstructure:"auth"`
	LogDir     string            `mapstructure:"log_dir"`
	LogLevel   string            `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	CertFile          string        `mapstructure:"cert_file"`
	KeyFile           string        `mapstructure:"key_file"`
	AdminRate         string        `mapstructure:"admin_rate"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type DBConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db `path` is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := c.Push.Validate(); err != nil {
		return err
	}
	if err := c.Notify.Validate(); err != nil {
		return err
	}
	if err := c.Analytics.Validate(); err != nil {
		return err
	}
	if err := c.Completion.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http `addr` is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("http `cert_file` and `key_file` must be set together")
	}
	if c.AdminRate != "" {
		if _, err := limiter.NewRateFromFormatted(c.AdminRate); err != nil {
			return fmt.Errorf("http `admin_rate`: %w", err)
		}
	}
	if c.ReadHeaderTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("http timeouts must not be negative")
	}
	return nil
}

func (c *HTTPConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c HTTPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Addr),
		slog.Bool("tls", c.TLSEnabled()),
		slog.String("admin_rate", c.AdminRate),
		slog.Any("cors_origins", c.CORSOrigins),
	)
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("http", c.HTTP),
		slog.String("db", c.DB.Path),
		slog.Any("gate", c.Gate.Prefixes),
		slog.Any("push", c.Push),
		slog.Any("notify", c.Notify),
		slog.Any("analytics", c.Analytics),
		slog.Any("completion", c.Completion),
		slog.Any("auth", c.Auth),
		slog.String("log_dir", c.LogDir),
		slog.String("log_level", c.LogLevel),
	)
}

// ParseLogLevel accepts debug, info, warn and error. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid `log_level` %q", s)
	}
	return level, nil
}
