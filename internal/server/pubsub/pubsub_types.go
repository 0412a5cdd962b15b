package pubsub

import "errors"

const (
	AttrEventType = "eventType"
	AttrBucketID  = "bucketId"
	AttrObjectID  = "objectId"

	EventObjectFinalize = "OBJECT_FINALIZE"
)

var (
	ErrMalformed   = errors.New("malformed push payload")
	ErrEmptyBody   = errors.New("empty body")
	ErrMissingData = errors.New("envelope has no data")
)

// PushEnvelope is the body of a Pub/Sub push request
type PushEnvelope struct {
	Message      *PushMessage `json:"message"`
	Subscription string       `json:"subscription"`
}

// PushMessage carries the published payload. Data is base64 on the wire
// and decoded by the JSON codec.
type PushMessage struct {
	Data        []byte            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	MessageID   string            `json:"messageId"`
	PublishTime string            `json:"publishTime"`
}

// ObjectEvent is the storage notification for a created object
type ObjectEvent struct {
	Name        string `json:"name"`
	Bucket      string `json:"bucket"`
	TimeCreated string `json:"timeCreated"`
	ContentType string `json:"contentType,omitempty"`
	Size        string `json:"size,omitempty"`
	Generation  string `json:"generation,omitempty"`
}

// Message is a decoded push delivery
type Message struct {
	ID           string
	Subscription string
	PublishTime  string
	Attributes   map[string]string
	Object       ObjectEvent

	// Wrapped is false when the body was a bare object event
	Wrapped bool
}

// EventType returns the eventType attribute, or "" for bare events
func (m *Message) EventType() string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes[AttrEventType]
}
