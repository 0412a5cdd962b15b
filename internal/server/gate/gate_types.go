package gate

import (
	"context"

	"github.com/openmined/foldernotify/internal/server/folder"
)

type Outcome string

const (
	OutcomeNotified        Outcome = "notified"
	OutcomeAlreadyNotified Outcome = "already_notified"
	OutcomeFiltered        Outcome = "filtered"
	OutcomeExcluded        Outcome = "excluded"
	OutcomeIgnoredBucket   Outcome = "ignored_bucket"
	OutcomeIgnoredEvent    Outcome = "ignored_event"
	OutcomeNoFolder        Outcome = "no_folder"
)

// Event is the part of a storage notification the gate looks at
type Event struct {
	Name        string
	Bucket      string
	TimeCreated string
	// EventType is empty for bare events, which are treated as finalize
	EventType string
	MessageID string
}

// Result of one Handle call
type Result struct {
	// Notified is true only for the caller that recorded the folder
	Notified  bool    `json:"notified"`
	Outcome   Outcome `json:"outcome"`
	FolderKey string  `json:"folderKey,omitempty"`
	// Delivered is false when the record was won but no sink accepted the message
	Delivered bool `json:"delivered"`
}

// Store is the first-seen persistence the gate needs
type Store interface {
	MarkFirstSeen(ctx context.Context, rec *folder.Record) (bool, error)
	SetMessageRef(ctx context.Context, folderKey, sink, channel, ref string) error
}
