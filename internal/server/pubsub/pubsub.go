package pubsub

import (
	"bytes"
	"fmt"
)

// Decode parses a push body. The body is either a push envelope, whose
// data field holds the object event, or the object event itself.
// Exactly one envelope layer is unwrapped. Every failure wraps ErrMalformed.
func Decode(body []byte) (*Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, ErrEmptyBody)
	}

	var envelope PushEnvelope
	if err := jsonUnmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %w", ErrMalformed, err)
	}

	if envelope.Message == nil {
		msg := &Message{}
		if err := jsonUnmarshal(body, &msg.Object); err != nil {
			return nil, fmt.Errorf("%w: invalid event: %w", ErrMalformed, err)
		}
		return msg, nil
	}

	pm := envelope.Message
	if len(bytes.TrimSpace(pm.Data)) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, ErrMissingData)
	}

	msg := &Message{
		ID:           pm.MessageID,
		Subscription: envelope.Subscription,
		PublishTime:  pm.PublishTime,
		Attributes:   pm.Attributes,
		Wrapped:      true,
	}
	if err := jsonUnmarshal(pm.Data, &msg.Object); err != nil {
		return nil, fmt.Errorf("%w: invalid event data: %w", ErrMalformed, err)
	}

	return msg, nil
}
