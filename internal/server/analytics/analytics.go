package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/foldernotify/internal/db"
)

// New returns the recorder for cfg.Backend, or nil when analytics is off.
// serviceDB backs the table recorder unless cfg.Table.DBPath is set.
func New(ctx context.Context, cfg *Config, serviceDB *sqlx.DB) (Recorder, error) {
	switch cfg.Backend {
	case BackendNone:
		slog.Info("analytics disabled")
		return nil, nil

	case BackendS3:
		rec, err := NewS3RecorderWithConfig(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}
		slog.Info("analytics", "backend", BackendS3, "bucket", cfg.S3.BucketName, "object", rec.objectKey)
		return rec, nil

	case BackendTable:
		target, owns := serviceDB, false
		if cfg.Table.DBPath != "" {
			sqlDB, err := db.NewSqliteDB(db.WithPath(cfg.Table.DBPath))
			if err != nil {
				return nil, fmt.Errorf("open analytics db: %w", err)
			}
			target, owns = sqlDB, true
		}

		rec, err := NewTableRecorder(target, cfg.Table.Name)
		if err != nil {
			if owns {
				target.Close()
			}
			return nil, err
		}
		rec.ownsDB = owns
		slog.Info("analytics", "backend", BackendTable, "table", rec.name)
		return rec, nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}
