package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/foldernotify/internal/server/analytics"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/openmined/foldernotify/internal/server/notify"
	"github.com/openmined/foldernotify/internal/server/pubsub"
	"github.com/openmined/foldernotify/internal/utils"
)

const (
	refAttempts = 3
	refDelay    = 200 * time.Millisecond
)

// Gate turns object events into at most one notification per folder.
// The store's write transaction decides the single winner per folder key;
// the optional cache only ever short-circuits to "already notified".
type Gate struct {
	prefixes      []string
	bucket        string
	excludes      []string
	notifyTimeout time.Duration

	store    Store
	notifier notify.Notifier
	recorder analytics.Recorder
	known    *expirable.LRU[string, struct{}]

	instanceID string
	refDelay   time.Duration
}

type Option func(*Gate)

// WithInstanceID overrides the id stored on won records
func WithInstanceID(id string) Option {
	return func(g *Gate) {
		g.instanceID = id
	}
}

// WithRefRetryDelay sets the wait between message ref save attempts
func WithRefRetryDelay(d time.Duration) Option {
	return func(g *Gate) {
		g.refDelay = d
	}
}

// New creates a gate. notifier may be nil, in which case nothing is sent;
// recorder may be nil to disable analytics.
func New(cfg *Config, store Store, notifier notify.Notifier, recorder analytics.Recorder, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrMissingStore
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	g := &Gate{
		prefixes:      NormalizePrefixes(cfg.Prefixes),
		bucket:        cfg.Bucket,
		excludes:      cfg.ExcludePatterns,
		notifyTimeout: cfg.NotifyTimeout,
		store:         store,
		notifier:      notifier,
		recorder:      recorder,
		instanceID:    utils.InstanceID(),
		refDelay:      refDelay,
	}
	if g.notifyTimeout <= 0 {
		g.notifyTimeout = DefaultNotifyTimeout
	}

	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		g.known = expirable.NewLRU[string, struct{}](cfg.CacheSize, nil, ttl)
	}

	for _, opt := range opts {
		opt(g)
	}

	slog.Info("gate", "prefixes", g.prefixes, "bucket", g.bucket, "excludes", len(g.excludes), "cache", cfg.CacheSize, "notifier", g.notifier.Name())
	return g, nil
}

// Prefixes returns the normalised monitored prefixes
func (g *Gate) Prefixes() []string {
	return append([]string(nil), g.prefixes...)
}

// HandlePayload decodes a push body and handles the event in it
func (g *Gate) HandlePayload(ctx context.Context, body []byte) (*Result, error) {
	msg, err := pubsub.Decode(body)
	if err != nil {
		return nil, &ValidationError{Field: "body", Message: "malformed payload", Err: err}
	}

	return g.Handle(ctx, &Event{
		Name:        msg.Object.Name,
		Bucket:      msg.Object.Bucket,
		TimeCreated: msg.Object.TimeCreated,
		EventType:   msg.EventType(),
		MessageID:   msg.ID,
	})
}

// Handle runs one event through filter, first-seen check, notify and
// analytics. Only ValidationError and TransientStoreError are returned;
// delivery and analytics failures are logged.
func (g *Gate) Handle(ctx context.Context, ev *Event) (*Result, error) {
	if ev == nil || ev.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "object path is required"}
	}

	if ev.EventType != "" && ev.EventType != pubsub.EventObjectFinalize {
		slog.Debug("gate skip", "reason", OutcomeIgnoredEvent, "eventType", ev.EventType, "object", ev.Name)
		return &Result{Outcome: OutcomeIgnoredEvent}, nil
	}

	if g.bucket != "" && ev.Bucket != g.bucket {
		slog.Debug("gate skip", "reason", OutcomeIgnoredBucket, "bucket", ev.Bucket, "object", ev.Name)
		return &Result{Outcome: OutcomeIgnoredBucket}, nil
	}

	if _, ok := MatchPrefix(g.prefixes, ev.Name); !ok {
		slog.Debug("gate skip", "reason", OutcomeFiltered, "object", ev.Name)
		return &Result{Outcome: OutcomeFiltered}, nil
	}

	if pattern, ok := matchExclude(g.excludes, ev.Name); ok {
		slog.Debug("gate skip", "reason", OutcomeExcluded, "pattern", pattern, "object", ev.Name)
		return &Result{Outcome: OutcomeExcluded}, nil
	}

	key := FolderKey(ev.Name)
	if key == "" {
		slog.Debug("gate skip", "reason", OutcomeNoFolder, "object", ev.Name)
		return &Result{Outcome: OutcomeNoFolder}, nil
	}

	if g.known != nil && g.known.Contains(key) {
		slog.Debug("folder already notified", "folder", key, "cached", true)
		return &Result{Outcome: OutcomeAlreadyNotified, FolderKey: key}, nil
	}

	firstSeen := ev.TimeCreated
	if _, ok := notify.ParseTimestamp(firstSeen); !ok {
		slog.Warn("event timestamp missing or unparseable", "object", ev.Name, "timeCreated", ev.TimeCreated)
		firstSeen = folder.UnknownTime
	}

	bucket := ev.Bucket
	if bucket == "" {
		bucket = g.bucket
	}

	rec := &folder.Record{
		FolderKey:     key,
		Bucket:        bucket,
		SourceObject:  ev.Name,
		FirstSeenTime: firstSeen,
		InstanceID:    g.instanceID,
	}

	won, err := g.store.MarkFirstSeen(ctx, rec)
	if err != nil {
		return nil, &TransientStoreError{FolderKey: key, Err: err}
	}

	if g.known != nil {
		g.known.Add(key, struct{}{})
	}

	if !won {
		slog.Debug("folder already notified", "folder", key, "object", ev.Name)
		return &Result{Outcome: OutcomeAlreadyNotified, FolderKey: key}, nil
	}

	slog.Info("new folder", "folder", key, "bucket", bucket, "object", ev.Name, "firstSeen", firstSeen, "messageId", ev.MessageID)

	// the record is committed; a client that hangs up must not cancel delivery
	detached := context.WithoutCancel(ctx)

	delivered := g.deliver(detached, rec)
	g.record(detached, rec)

	return &Result{Notified: true, Outcome: OutcomeNotified, FolderKey: key, Delivered: delivered}, nil
}

// Forget drops a key from the notified cache after an operator delete
func (g *Gate) Forget(key string) {
	if g.known != nil {
		g.known.Remove(key)
	}
}

// ForgetAll clears the notified cache after a purge
func (g *Gate) ForgetAll() {
	if g.known != nil {
		g.known.Purge()
	}
}

func (g *Gate) deliver(ctx context.Context, rec *folder.Record) bool {
	notifyCtx, cancel := context.WithTimeout(ctx, g.notifyTimeout)
	defer cancel()

	d, err := g.notifier.Notify(notifyCtx, &notify.Notice{
		Bucket:        rec.Bucket,
		FolderKey:     rec.FolderKey,
		FirstSeenTime: rec.FirstSeenTime,
		SourceObject:  rec.SourceObject,
	})
	if err != nil {
		derr := &NotificationDeliveryError{FolderKey: rec.FolderKey, Sink: g.notifier.Name(), Err: err}
		slog.Error("notification failed", "folder", rec.FolderKey, "error", derr)
	}
	if d == nil {
		return false
	}

	slog.Info("notification sent", "folder", rec.FolderKey, "sink", d.Sink, "ref", d.Ref)

	// a fan-out can fail partially and still return a delivery
	if d.Ref != "" {
		g.saveMessageRef(ctx, rec.FolderKey, d)
	}
	return true
}

func (g *Gate) saveMessageRef(ctx context.Context, key string, d *notify.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, g.notifyTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= refAttempts; attempt++ {
		if err = g.store.SetMessageRef(ctx, key, d.Sink, d.Channel, d.Ref); err == nil {
			return
		}
		if errors.Is(err, folder.ErrNotFound) || attempt == refAttempts {
			break
		}
		if werr := sleepCtx(ctx, g.refDelay); werr != nil {
			err = werr
			break
		}
	}
	slog.Error("save message ref", "folder", key, "ref", d.Ref, "error", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *Gate) record(ctx context.Context, rec *folder.Record) {
	if g.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, g.notifyTimeout)
	defer cancel()

	err := g.recorder.Record(ctx, &analytics.Completion{
		FolderKey:     rec.FolderKey,
		Bucket:        rec.Bucket,
		FirstSeenTime: rec.FirstSeenTime,
		RecordedAt:    rec.RecordedAt,
		SourceObject:  rec.SourceObject,
		InstanceID:    rec.InstanceID,
	})
	if err != nil {
		aerr := &AnalyticsError{FolderKey: rec.FolderKey, Backend: g.recorder.Name(), Err: err}
		slog.Warn("analytics record failed", "folder", rec.FolderKey, "error", aerr)
	}
}
