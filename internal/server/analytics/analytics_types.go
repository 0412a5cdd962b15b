package analytics

import (
	"context"
	"errors"
)

const (
	BackendNone  = ""
	BackendS3    = "s3"
	BackendTable = "table"
)

var (
	ErrUnknownBackend   = errors.New("unknown analytics backend")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrConflict         = errors.New("concurrent update conflict")
)

// csvHeader is written when the completion object is first created
var csvHeader = []string{"folder_path", "bucket", "first_notification_time", "recorded_at", "source_object", "instance_id"}

// Completion is the pass-through record written for a newly notified folder
type Completion struct {
	FolderKey     string `db:"folder_path"`
	Bucket        string `db:"bucket"`
	FirstSeenTime string `db:"first_notification_time"`
	RecordedAt    string `db:"recorded_at"`
	SourceObject  string `db:"source_object"`
	InstanceID    string `db:"instance_id"`
}

func (c *Completion) row() []string {
	return []string{c.FolderKey, c.Bucket, c.FirstSeenTime, c.RecordedAt, c.SourceObject, c.InstanceID}
}

// Recorder appends completion records to a best-effort backend
type Recorder interface {
	Name() string
	Record(ctx context.Context, c *Completion) error
	Close() error
}
