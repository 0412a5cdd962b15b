package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
)

// Multi sends to every sink in order. A failing sink does not stop the
// others; errors are joined.
type Multi struct {
	sinks []Notifier
}

func NewMulti(sinks ...Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Notify returns the first delivery that carries a message ref, otherwise
// the first successful delivery
func (m *Multi) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	var first *Delivery
	var errs []error

	for _, sink := range m.sinks {
		d, err := sink.Notify(ctx, notice)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		if d == nil {
			continue
		}
		if first == nil || (first.Ref == "" && d.Ref != "") {
			first = d
		}
	}

	return first, errors.Join(errs...)
}

// Finish hands the summary to every sink that can announce completions.
// It reports true when at least one of them sent something.
func (m *Multi) Finish(ctx context.Context, sum *Summary) (bool, error) {
	var sent bool
	var errs []error

	for _, sink := range m.sinks {
		f, ok := AsFinisher(sink)
		if !ok {
			continue
		}
		ok, err := f.Finish(ctx, sum)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		sent = sent || ok
	}

	return sent, errors.Join(errs...)
}

func (m *Multi) finishers() int {
	n := 0
	for _, sink := range m.sinks {
		if _, ok := AsFinisher(sink); ok {
			n++
		}
	}
	return n
}

// Limited waits on a token bucket before each send
type Limited struct {
	next    Notifier
	limiter *rate.Limiter
}

func NewLimited(next Notifier, perSec float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

func (l *Limited) Name() string {
	return l.next.Name()
}

func (l *Limited) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("notify rate limit: %w", err)
	}
	return l.next.Notify(ctx, notice)
}

func (l *Limited) Finish(ctx context.Context, sum *Summary) (bool, error) {
	f, ok := AsFinisher(l.next)
	if !ok {
		return false, ErrNoFinisher
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("notify rate limit: %w", err)
	}
	return f.Finish(ctx, sum)
}

// Nop is used when no sink is configured. It never returns a delivery.
type Nop struct{}

func (Nop) Name() string {
	return "nop"
}

func (Nop) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	slog.Warn("no notification sink configured, skipping", "folder", notice.FolderPath())
	return nil, nil
}

// New builds the notifier described by cfg
func New(cfg *Config) (Notifier, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var sinks []Notifier

	// a configured bot never falls back to the webhook
	if cfg.Slack.BotEnabled() {
		sinks = append(sinks, NewSlackBot(cfg.Slack, timeout))
	} else if cfg.Slack.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg.Slack.WebhookURL, timeout))
	}

	if cfg.Telegram.Token != "" {
		tg, err := NewTelegram(cfg.Telegram, timeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}

	if cfg.Email.Enabled {
		sinks = append(sinks, NewEmail(cfg.Email))
	}

	var n Notifier
	switch len(sinks) {
	case 0:
		return Nop{}, nil
	case 1:
		n = sinks[0]
	default:
		n = NewMulti(sinks...)
	}

	if cfg.RatePerSec > 0 {
		n = NewLimited(n, cfg.RatePerSec, cfg.Burst)
	}

	slog.Info("notifier", "sinks", n.Name())
	return n, nil
}
