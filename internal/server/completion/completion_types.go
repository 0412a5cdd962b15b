package completion

import (
	"context"
	"time"

	"github.com/openmined/foldernotify/internal/server/folder"
)

// Store is the part of the folder store the completion pass uses
type Store interface {
	PendingFinal(ctx context.Context, notifiedBefore time.Time, limit int) ([]*folder.Record, error)
	MarkFinal(ctx context.Context, folderKey string, fileCount, totalSize int64) (string, bool, error)
	ReleaseFinal(ctx context.Context, folderKey, finalAt string) error
}

// SweepResult counts what one pass did with each pending record
type SweepResult struct {
	Checked int `json:"checked"`
	// Finished folders got their completion message
	Finished int `json:"finished"`
	// Quiet folders were closed without a message: no matching files or no message to edit
	Quiet int `json:"quiet"`
	// Active folders received objects within the inactivity window
	Active int `json:"active"`
	// Failed folders are released and retried on the next pass
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
