package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/foldernotify/internal/db"
	"github.com/openmined/foldernotify/internal/server/analytics"
	"github.com/openmined/foldernotify/internal/server/auth"
	"github.com/openmined/foldernotify/internal/server/blob"
	"github.com/openmined/foldernotify/internal/server/completion"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/openmined/foldernotify/internal/server/gate"
	"github.com/openmined/foldernotify/internal/server/notify"
)

type Services struct {
	DB        *sqlx.DB
	Folders   *folder.Store
	Notifier  notify.Notifier
	Analytics analytics.Recorder
	Gate      *gate.Gate
	Auth      *auth.AuthService

	// Completion is nil unless completion.enabled is set and a sink can announce
	Completion *completion.Finalizer
}

// OpenDB opens the service database described by cfg
func OpenDB(cfg *DBConfig) (*sqlx.DB, error) {
	opts := []db.SqliteOption{db.WithPath(cfg.Path)}
	if cfg.BusyTimeout > 0 {
		opts = append(opts, db.WithBusyTimeout(cfg.BusyTimeout))
	}
	return db.NewSqliteDB(opts...)
}

func NewServices(ctx context.Context, config *Config, sqlDB *sqlx.DB, opts ...gate.Option) (*Services, error) {
	folders, err := folder.NewStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("create folder store: %w", err)
	}

	notifier, err := notify.New(&config.Notify)
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}

	recorder, err := analytics.New(ctx, &config.Analytics, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("create analytics: %w", err)
	}

	g, err := gate.New(&config.Gate, folders, notifier, recorder, opts...)
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return nil, fmt.Errorf("create gate: %w", err)
	}

	finalizer, err := newFinalizer(ctx, config, folders, notifier)
	if err != nil {
		if recorder != nil {
			recorder.Close()
		}
		return nil, fmt.Errorf("create completion: %w", err)
	}

	return &Services{
		DB:         sqlDB,
		Folders:    folders,
		Notifier:   notifier,
		Analytics:  recorder,
		Gate:       g,
		Auth:       auth.NewAuthService(&config.Auth),
		Completion: finalizer,
	}, nil
}

func newFinalizer(ctx context.Context, config *Config, folders *folder.Store, notifier notify.Notifier) (*completion.Finalizer, error) {
	if !config.Completion.Enabled {
		return nil, nil
	}

	finisher, ok := notify.AsFinisher(notifier)
	if !ok {
		slog.Warn("completion disabled", "reason", notify.ErrNoFinisher, "notifier", notifier.Name())
		return nil, nil
	}

	client, err := blob.NewS3Client(ctx, &config.Completion.S3)
	if err != nil {
		return nil, err
	}

	return completion.New(&config.Completion, folders,
		blob.NewS3Lister(client, config.Completion.Suffix),
		finisher,
		completion.WithTimeout(config.Gate.NotifyTimeout),
	)
}

// CompletionName is the sink that announces completed folders, or "disabled"
func (s *Services) CompletionName() string {
	if s.Completion == nil {
		return "disabled"
	}
	return s.Completion.Name()
}

// AnalyticsName is the active analytics backend, or "disabled"
func (s *Services) AnalyticsName() string {
	if s.Analytics == nil {
		return "disabled"
	}
	return s.Analytics.Name()
}

func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if s.Analytics != nil {
		if err := s.Analytics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close analytics: %w", err))
		}
	}
	if err := s.Folders.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	slog.Info("services stopped")
	return errors.Join(errs...)
}
