package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/foldernotify/internal/utils"
)

const (
	DefaultSlackAPIURL    = "https://slack.com/api"
	DefaultTelegramAPIURL = "https://api.telegram.org"
	DefaultSendgridHost   = "https://api.sendgrid.com"
	DefaultTimeout        = 10 * time.Second
	DefaultEmailSubject   = "New folder detected"
)

type Config struct {
	// RatePerSec caps outbound sends across all sinks. 0 disables the limiter.
	RatePerSec float64        `mapstructure:"rate_per_sec"`
	Burst      int            `mapstructure:"burst"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	Slack      SlackConfig    `mapstructure:"slack"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
	Email      EmailConfig    `mapstructure:"email"`
}

type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	BotToken   string `mapstructure:"bot_token"`
	Channel    string `mapstructure:"channel"`
	APIURL     string `mapstructure:"api_url"`
}

// BotEnabled reports whether the Web API sink replaces the webhook
func (c SlackConfig) BotEnabled() bool {
	return c.BotToken != "" && c.Channel != ""
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
	APIURL string `mapstructure:"api_url"`
}

type EmailConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	SendgridAPIKey string   `mapstructure:"sendgrid_api_key"`
	Host           string   `mapstructure:"host"`
	FromName       string   `mapstructure:"from_name"`
	FromEmail      string   `mapstructure:"from_email"`
	To             []string `mapstructure:"to"`
	Subject        string   `mapstructure:"subject"`
}

func (c *Config) Validate() error {
	if c.RatePerSec < 0 {
		return fmt.Errorf("notify `rate_per_sec` must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("notify `timeout` must not be negative")
	}

	if c.Slack.WebhookURL != "" && !utils.IsValidURL(c.Slack.WebhookURL) {
		return fmt.Errorf("invalid slack `webhook_url`")
	}
	if c.Slack.APIURL != "" && !utils.IsValidURL(c.Slack.APIURL) {
		return fmt.Errorf("invalid slack `api_url` %q", c.Slack.APIURL)
	}
	if (c.Slack.BotToken == "") != (c.Slack.Channel == "") {
		return fmt.Errorf("slack `bot_token` and `channel` must be set together")
	}

	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return ErrTelegramChatID
	}
	if c.Telegram.APIURL != "" && !utils.IsValidURL(c.Telegram.APIURL) {
		return fmt.Errorf("invalid telegram `api_url` %q", c.Telegram.APIURL)
	}

	if c.Email.Enabled {
		if c.Email.SendgridAPIKey == "" {
			return fmt.Errorf("email `sendgrid_api_key` is required")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("email `from_email` is required")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("email `to` requires at least one recipient")
		}
		if c.Email.Host != "" && !utils.IsValidURL(c.Email.Host) {
			return fmt.Errorf("invalid email `host` %q", c.Email.Host)
		}
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("rate_per_sec", c.RatePerSec),
		slog.Int("burst", c.Burst),
		slog.Duration("timeout", c.Timeout),
		slog.Group("slack",
			slog.String("webhook_url", utils.MaskURL(c.Slack.WebhookURL)),
			slog.String("bot_token", utils.MaskSecret(c.Slack.BotToken)),
			slog.String("channel", c.Slack.Channel),
		),
		slog.Group("telegram",
			slog.String("token", utils.MaskSecret(c.Telegram.Token)),
			slog.Int64("chat_id", c.Telegram.ChatID),
		),
		slog.Group("email",
			slog.Bool("enabled", c.Email.Enabled),
			slog.String("sendgrid_api_key", utils.MaskSecret(c.Email.SendgridAPIKey)),
			slog.String("from_email", c.Email.FromEmail),
			slog.Any("to", c.Email.To),
		),
	)
}
