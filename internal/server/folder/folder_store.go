package folder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notified_folders (
	folder_key TEXT PRIMARY KEY,
	bucket TEXT NOT NULL DEFAULT '',
	source_object TEXT NOT NULL DEFAULT '',
	first_seen_time TEXT NOT NULL,
	recorded_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	instance_id TEXT NOT NULL DEFAULT '',
	message_sink TEXT NOT NULL DEFAULT '',
	message_channel TEXT NOT NULL DEFAULT '',
	message_ref TEXT NOT NULL DEFAULT '',
	final_notified_at TEXT NOT NULL DEFAULT '',
	file_count INTEGER NOT NULL DEFAULT 0,
	total_size_bytes INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notified_folders_recorded_at ON notified_folders(recorded_at);
`

const indexSQL = `CREATE INDEX IF NOT EXISTS idx_notified_folders_pending ON notified_folders(final_notified_at, recorded_at);`

// columns that databases created before the completion pass are missing
var addedColumns = []struct {
	name string
	ddl  string
}{
	{"message_sink", `ALTER TABLE notified_folders ADD COLUMN message_sink TEXT NOT NULL DEFAULT ''`},
	{"final_notified_at", `ALTER TABLE notified_folders ADD COLUMN final_notified_at TEXT NOT NULL DEFAULT ''`},
	{"file_count", `ALTER TABLE notified_folders ADD COLUMN file_count INTEGER NOT NULL DEFAULT 0`},
	{"total_size_bytes", `ALTER TABLE notified_folders ADD COLUMN total_size_bytes INTEGER NOT NULL DEFAULT 0`},
}

const selectColumns = `folder_key, bucket, source_object, first_seen_time, recorded_at, instance_id,
	message_sink, message_channel, message_ref, final_notified_at, file_count, total_size_bytes`

// RecordedAtLayout matches the store's recorded_at and final_notified_at values
const RecordedAtLayout = "2006-01-02T15:04:05.000Z"

const defaultListLimit = 100

// Store persists folder records in SQLite.
// The database must be opened by db.NewSqliteDB so that write transactions
// take the write lock up front.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize folder store: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate folder store: %w", err)
	}
	if _, err := db.Exec(indexSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize folder store: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	var names []string
	if err := db.Select(&names, `SELECT name FROM pragma_table_info('notified_folders')`); err != nil {
		return err
	}

	existing := mapset.NewThreadUnsafeSet(names...)
	for _, col := range addedColumns {
		if existing.Contains(col.name) {
			continue
		}
		// another process may have added it in between
		if _, err := db.Exec(col.ddl); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
	}
	return nil
}

// MarkFirstSeen records rec if no record exists for rec.FolderKey.
// It returns true only for the single caller whose insert committed; every
// other caller, concurrent or later, gets false. On success rec.RecordedAt
// is set to the store-assigned commit time.
func (s *Store) MarkFirstSeen(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil || rec.FolderKey == "" {
		return false, ErrInvalidKey
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM notified_folders WHERE folder_key = ?`, rec.FolderKey); err != nil {
		return false, fmt.Errorf("read folder record: %w", err)
	}
	if exists > 0 {
		return false, nil
	}

	var recordedAt string
	err = tx.GetContext(ctx, &recordedAt, `
		INSERT INTO notified_folders (folder_key, bucket, source_object, first_seen_time, instance_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(folder_key) DO NOTHING
		RETURNING recorded_at`,
		rec.FolderKey, rec.Bucket, rec.SourceObject, rec.FirstSeenTime, rec.InstanceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("insert folder record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit folder record: %w", err)
	}

	rec.RecordedAt = recordedAt
	return true, nil
}

// SetMessageRef attaches the chat message reference to an existing record
func (s *Store) SetMessageRef(ctx context.Context, folderKey, sink, channel, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notified_folders SET message_sink = ?, message_channel = ?, message_ref = ? WHERE folder_key = ?`,
		sink, channel, ref, folderKey,
	)
	if err != nil {
		return fmt.Errorf("update message ref: %w", err)
	}
	return requireAffected(res)
}

// PendingFinal returns records without a completion claim that were
// recorded at or before notifiedBefore, oldest first
func (s *Store) PendingFinal(ctx context.Context, notifiedBefore time.Time, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	records := make([]*Record, 0)
	err := s.db.SelectContext(ctx, &records,
		`SELECT `+selectColumns+` FROM notified_folders
		WHERE final_notified_at = '' AND recorded_at <= ?
		ORDER BY recorded_at ASC, folder_key ASC LIMIT ?`,
		notifiedBefore.UTC().Format(RecordedAtLayout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending folder records: %w", err)
	}
	return records, nil
}

// MarkFinal claims the completion message for folderKey and stores the
// folder totals. Like MarkFirstSeen, exactly one caller gets true; the
// returned time identifies the claim for ReleaseFinal.
func (s *Store) MarkFinal(ctx context.Context, folderKey string, fileCount, totalSize int64) (string, bool, error) {
	var finalAt string
	err := s.db.GetContext(ctx, &finalAt, `
		UPDATE notified_folders
		SET final_notified_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'), file_count = ?, total_size_bytes = ?
		WHERE folder_key = ? AND final_notified_at = ''
		RETURNING final_notified_at`,
		fileCount, totalSize, folderKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("mark folder final: %w", err)
	}
	return finalAt, true, nil
}

// ReleaseFinal undoes the claim made at finalAt so a later pass retries it
func (s *Store) ReleaseFinal(ctx context.Context, folderKey, finalAt string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notified_folders SET final_notified_at = '', file_count = 0, total_size_bytes = 0
		WHERE folder_key = ? AND final_notified_at = ?`,
		folderKey, finalAt,
	)
	if err != nil {
		return fmt.Errorf("release folder final: %w", err)
	}
	return requireAffected(res)
}

// CountPendingFinal counts records the completion pass has not claimed yet
func (s *Store) CountPendingFinal(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notified_folders WHERE final_notified_at = ''`); err != nil {
		return 0, fmt.Errorf("count pending folder records: %w", err)
	}
	return count, nil
}

// Get returns the record for folderKey or ErrNotFound
func (s *Store) Get(ctx context.Context, folderKey string) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, `SELECT `+selectColumns+` FROM notified_folders WHERE folder_key = ?`, folderKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get folder record: %w", err)
	}
	return &rec, nil
}

// List returns records newest first
func (s *Store) List(ctx context.Context, params ListParams) ([]*Record, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := max(params.Offset, 0)

	query, args := `SELECT `+selectColumns+` FROM notified_folders`, []any{}
	if params.Prefix != "" {
		query += ` WHERE substr(folder_key, 1, length(?)) = ?`
		args = append(args, params.Prefix, params.Prefix)
	}
	query += ` ORDER BY recorded_at DESC, folder_key ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	records := make([]*Record, 0)
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list folder records: %w", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notified_folders`); err != nil {
		return 0, fmt.Errorf("count folder records: %w", err)
	}
	return count, nil
}

// Delete removes one record, re-enabling notification for the folder
func (s *Store) Delete(ctx context.Context, folderKey string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notified_folders WHERE folder_key = ?`, folderKey)
	if err != nil {
		return fmt.Errorf("delete folder record: %w", err)
	}
	return requireAffected(res)
}

// Purge removes every record whose key starts with prefix.
// An empty prefix removes all records.
func (s *Store) Purge(ctx context.Context, prefix string) (int64, error) {
	var res sql.Result
	var err error
	if prefix == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM notified_folders`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM notified_folders WHERE substr(folder_key, 1, length(?)) = ?`, prefix, prefix)
	}
	if err != nil {
		return 0, fmt.Errorf("purge folder records: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
