package folder

import "errors"

// UnknownTime is stored as first_seen_time when the event carried no usable timestamp
const UnknownTime = "Unknown"

var (
	ErrNotFound   = errors.New("folder not found")
	ErrInvalidKey = errors.New("invalid folder key")
)

// Record is the persisted "already notified" marker for one folder.
type Record struct {
	FolderKey      string `db:"folder_key" json:"folderKey"`
	Bucket         string `db:"bucket" json:"bucket"`
	SourceObject   string `db:"source_object" json:"sourceObject"`
	FirstSeenTime  string `db:"first_seen_time" json:"firstSeenTime"`
	RecordedAt     string `db:"recorded_at" json:"recordedAt"`
	InstanceID     string `db:"instance_id" json:"instanceId"`
	MessageSink    string `db:"message_sink" json:"messageSink,omitempty"`
	MessageChannel string `db:"message_channel" json:"messageChannel,omitempty"`
	MessageRef     string `db:"message_ref" json:"messageRef,omitempty"`

	// set once the folder went quiet and the completion message went out
	FinalNotifiedAt string `db:"final_notified_at" json:"finalNotifiedAt,omitempty"`
	FileCount       int64  `db:"file_count" json:"fileCount"`
	TotalSizeBytes  int64  `db:"total_size_bytes" json:"totalSizeBytes"`
}

// Final reports whether the completion pass has claimed the record
func (r *Record) Final() bool {
	return r.FinalNotifiedAt != ""
}

type ListParams struct {
	Prefix string
	Limit  int
	Offset int
}
