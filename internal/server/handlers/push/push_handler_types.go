package push

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/utils"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 1 << 20 // 1 MiB

	outcomeMalformed = "malformed"
)

type Config struct {
	// Timeout bounds one event, below the transport's ack deadline
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int64         `mapstructure:"max_body_size"`
	// VerificationToken must match the `token` query param when set
	VerificationToken string `mapstructure:"verification_token"`
	// AckMalformed answers 200 instead of 400 for payloads that can never
	// succeed, for transports that redeliver on every non-2xx
	AckMalformed bool `mapstructure:"ack_malformed"`
}

func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("push `timeout` must not be negative")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("push `max_body_size` must not be negative")
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("timeout", c.Timeout),
		slog.Int64("max_body_size", c.MaxBodySize),
		slog.String("verification_token", utils.MaskSecret(c.VerificationToken)),
		slog.Bool("ack_malformed", c.AckMalformed),
	)
}

// Gate is what the push endpoint needs from the notification gate
type Gate interface {
	HandlePayload(ctx context.Context, body []byte) (*gate.Result, error)
}

type PushResponse struct {
	Notified  bool   `json:"notified"`
	Outcome   string `json:"outcome"`
	FolderKey string `json:"folderKey"`
}
