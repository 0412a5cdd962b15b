package completion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openmined/foldernotify/internal/server/blob"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/openmined/foldernotify/internal/server/notify"
)

var ErrMissingDeps = errors.New("completion needs a store, a lister and a finisher")

// Finalizer closes out folders that stopped receiving objects. Every
// instance may run one; the store's conditional update lets exactly one of
// them claim each folder before its completion message goes out.
type Finalizer struct {
	store    Store
	lister   blob.Lister
	finisher notify.Finisher

	interval   time.Duration
	inactivity time.Duration
	batchSize  int
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Finalizer)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(f *Finalizer) {
		f.now = now
	}
}

// WithTimeout bounds each completion message and claim release
func WithTimeout(d time.Duration) Option {
	return func(f *Finalizer) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func New(cfg *Config, store Store, lister blob.Lister, finisher notify.Finisher, opts ...Option) (*Finalizer, error) {
	if store == nil || lister == nil || finisher == nil {
		return nil, ErrMissingDeps
	}

	f := &Finalizer{
		store:      store,
		lister:     lister,
		finisher:   finisher,
		interval:   cfg.Interval,
		inactivity: cfg.Inactivity,
		batchSize:  cfg.BatchSize,
		timeout:    DefaultTimeout,
		now:        time.Now,
	}
	if f.interval <= 0 {
		f.interval = DefaultInterval
	}
	if f.inactivity <= 0 {
		f.inactivity = DefaultInactivity
	}
	if f.batchSize <= 0 {
		f.batchSize = DefaultBatchSize
	}

	for _, opt := range opts {
		opt(f)
	}

	slog.Info("completion", "interval", f.interval, "inactivity", f.inactivity, "batch", f.batchSize, "finisher", finisher.Name())
	return f, nil
}

// Name is the finisher's sink name
func (f *Finalizer) Name() string {
	return f.finisher.Name()
}

// Run sweeps every interval until ctx is done
func (f *Finalizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("completion stopped")
			return nil
		case <-ticker.C:
			res, err := f.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("completion sweep", "error", err)
				continue
			}
			if res.Checked > 0 {
				slog.Info("completion sweep", "checked", res.Checked, "finished", res.Finished, "quiet", res.Quiet, "active", res.Active, "failed", res.Failed)
			}
		}
	}
}

// Sweep makes one pass over the oldest pending records
func (f *Finalizer) Sweep(ctx context.Context) (*SweepResult, error) {
	now := f.now()

	// a folder recorded within the window cannot have gone quiet yet
	pending, err := f.store.PendingFinal(ctx, now.Add(-f.inactivity), f.batchSize)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{}
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		f.check(ctx, now, rec, res)
	}
	return res, nil
}

func (f *Finalizer) check(ctx context.Context, now time.Time, rec *folder.Record, res *SweepResult) {
	if rec.Bucket == "" {
		slog.Warn("completion skip", "folder", rec.FolderKey, "reason", "no bucket")
		res.Skipped++
		return
	}

	stats, err := f.lister.Stat(ctx, rec.Bucket, rec.FolderKey)
	if err != nil {
		slog.Warn("completion list failed", "folder", rec.FolderKey, "bucket", rec.Bucket, "error", err)
		res.Skipped++
		return
	}

	if !stats.LastModified.IsZero() && now.Sub(stats.LastModified) < f.inactivity {
		slog.Debug("folder still active", "folder", rec.FolderKey, "lastModified", stats.LastModified)
		res.Active++
		return
	}

	finalAt, won, err := f.store.MarkFinal(ctx, rec.FolderKey, stats.FileCount, stats.TotalSize)
	if err != nil {
		slog.Warn("completion claim failed", "folder", rec.FolderKey, "error", err)
		res.Skipped++
		return
	}
	if !won {
		slog.Debug("folder already finalized", "folder", rec.FolderKey)
		res.Skipped++
		return
	}

	if stats.FileCount == 0 {
		slog.Info("folder complete without matching files", "folder", rec.FolderKey)
		res.Quiet++
		return
	}

	// the claim is committed; shutdown must not strand it half sent
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	sent, err := f.finisher.Finish(detached, &notify.Summary{
		Notice: notify.Notice{
			Bucket:        rec.Bucket,
			FolderKey:     rec.FolderKey,
			FirstSeenTime: rec.FirstSeenTime,
			SourceObject:  rec.SourceObject,
		},
		Sink:         rec.MessageSink,
		Channel:      rec.MessageChannel,
		Ref:          rec.MessageRef,
		FileCount:    stats.FileCount,
		TotalSize:    stats.TotalSize,
		LastModified: stats.LastModified,
	})
	if err != nil {
		slog.Error("completion notification failed", "folder", rec.FolderKey, "sink", f.finisher.Name(), "error", err)
		if rerr := f.store.ReleaseFinal(detached, rec.FolderKey, finalAt); rerr != nil {
			slog.Error("completion release failed", "folder", rec.FolderKey, "error", rerr)
		}
		res.Failed++
		return
	}

	if !sent {
		slog.Info("folder complete, no message to update", "folder", rec.FolderKey, "files", stats.FileCount)
		res.Quiet++
		return
	}

	slog.Info("folder complete", "folder", rec.FolderKey, "files", stats.FileCount, "bytes", stats.TotalSize, "ref", rec.MessageRef)
	res.Finished++
}
