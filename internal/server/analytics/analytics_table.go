package analytics

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TableRecorder inserts one row per completion into a SQL table
type TableRecorder struct {
	db       *sqlx.DB
	name     string
	insertSQL string
	ownsDB   bool
}

func NewTableRecorder(db *sqlx.DB, name string) (*TableRecorder, error) {
	if name == "" {
		name = DefaultTableName
	}
	if !tableNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w %q", ErrInvalidTableName, name)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_path TEXT NOT NULL,
	bucket TEXT NOT NULL DEFAULT '',
	first_notification_time TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	source_object TEXT NOT NULL DEFAULT '',
	instance_id TEXT NOT NULL DEFAULT '',
	inserted_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_folder_path ON %[1]s(folder_path);
`, name)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize analytics table: %w", err)
	}

	return &TableRecorder{
		db:   db,
		name: name,
		insertSQL: fmt.Sprintf(`INSERT INTO %s (folder_path, bucket, first_notification_time, recorded_at, source_object, instance_id)
		VALUES (:folder_path, :bucket, :first_notification_time, :recorded_at, :source_object, :instance_id)`, name),
	}, nil
}

func (t *TableRecorder) Name() string {
	return BackendTable
}

func (t *TableRecorder) Record(ctx context.Context, c *Completion) error {
	if _, err := t.db.NamedExecContext(ctx, t.insertSQL, c); err != nil {
		return fmt.Errorf("insert into %s: %w", t.name, err)
	}
	return nil
}

// List returns all rows for folderKey, oldest first
func (t *TableRecorder) List(ctx context.Context, folderKey string) ([]*Completion, error) {
	var rows []*Completion
	q := fmt.Sprintf(`SELECT folder_path, bucket, first_notification_time, recorded_at, source_object, instance_id
		FROM %s WHERE folder_path = ? ORDER BY id`, t.name)
	if err := t.db.SelectContext(ctx, &rows, q, folderKey); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	return rows, nil
}

// Close closes the database only when the recorder opened it
func (t *TableRecorder) Close() error {
	if t.ownsDB {
		return t.db.Close()
	}
	return nil
}
