package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/foldernotify/internal/utils"
)

const (
	MemoryPath = ":memory:"

	defaultBusyTimeout = 10 * time.Second
	defaultJournalMode = "WAL"
)

// config holds internal configuration for DB creation
type config struct {
	path            string
	busyTimeout     time.Duration
	journalMode     string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// SqliteOption defines a function that configures the DB
type SqliteOption func(*config)

// WithPath sets the path for the SQLite database.
// Use MemoryPath for a private in-memory database.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithBusyTimeout sets how long a connection waits for the write lock
// before failing with SQLITE_BUSY
func WithBusyTimeout(d time.Duration) SqliteOption {
	return func(c *config) {
		c.busyTimeout = d
	}
}

// WithJournalMode overrides the WAL journal mode
func WithJournalMode(mode string) SqliteOption {
	return func(c *config) {
		c.journalMode = mode
	}
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// NewSqliteDB opens a sqlx.DB. File databases open every transaction with
// BEGIN IMMEDIATE, so two writers (goroutines or processes) never both pass
// a read-then-insert on the same row.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         MemoryPath,
		busyTimeout:  defaultBusyTimeout,
		journalMode:  defaultJournalMode,
		maxIdleConns: 2,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.path == MemoryPath {
		// every connection to :memory: is a separate database
		cfg.maxOpenConns = 1
	} else if err := utils.EnsureParent(cfg.path); err != nil {
		return nil, fmt.Errorf("ensure parent directory: %w", err)
	}

	slog.Info("db", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	return db, nil
}
