package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrSlackAPI         = errors.New("slack api error")
	ErrTelegramChatID   = errors.New("telegram chat_id is required")
	ErrNoFinisher       = errors.New("no sink can announce completed folders")
)

// Notice describes a folder that was seen for the first time
type Notice struct {
	Bucket        string
	FolderKey     string
	FirstSeenTime string
	SourceObject  string
}

// FolderPath returns bucket/folder_key, or the bare key when there is no bucket
func (n *Notice) FolderPath() string {
	if n.Bucket == "" {
		return n.FolderKey
	}
	return n.Bucket + "/" + n.FolderKey
}

// Delivery identifies a sent message. Ref is empty for sinks that
// do not return a message id.
type Delivery struct {
	Sink    string
	Channel string
	Ref     string
}

// Notifier delivers a notice. Implementations must not retry: a retried
// request that actually reached the sink shows up as a duplicate message.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, notice *Notice) (*Delivery, error)
}

// Summary describes a folder that stopped receiving objects. Sink, Channel
// and Ref come from the first-seen delivery and say which message to edit.
type Summary struct {
	Notice
	Sink         string
	Channel      string
	Ref          string
	FileCount    int64
	TotalSize    int64
	LastModified time.Time
}

// Finisher announces a completed folder. It reports false when it had
// nothing to send, e.g. no saved message to edit.
type Finisher interface {
	Name() string
	Finish(ctx context.Context, s *Summary) (bool, error)
}

// AsFinisher returns n as a Finisher when it can announce completions
func AsFinisher(n Notifier) (Finisher, bool) {
	switch v := n.(type) {
	case *Multi:
		if v.finishers() == 0 {
			return nil, false
		}
	case *Limited:
		if _, ok := AsFinisher(v.next); !ok {
			return nil, false
		}
	}
	f, ok := n.(Finisher)
	return f, ok
}
