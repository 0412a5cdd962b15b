package gate

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("invalid event")
	ErrStore        = errors.New("store unavailable")
	ErrDelivery     = errors.New("notification delivery failed")
	ErrAnalytics    = errors.New("analytics record failed")
	ErrNoPrefixes   = errors.New("at least one monitored prefix is required")
	ErrBadPattern   = errors.New("invalid exclude pattern")
	ErrMissingStore = errors.New("store is required")
)

// ValidationError is a payload that can never succeed. It must be
// acknowledged, not retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid event: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Err }

// TransientStoreError means the first-seen transaction did not complete.
// Nothing was written, so redelivery is safe.
type TransientStoreError struct {
	FolderKey string
	Err       error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store unavailable for %q: %v", e.FolderKey, e.Err)
}

func (e *TransientStoreError) Is(target error) bool { return target == ErrStore }
func (e *TransientStoreError) Unwrap() error        { return e.Err }

// NotificationDeliveryError is logged only. The folder record is already committed.
type NotificationDeliveryError struct {
	FolderKey string
	Sink      string
	Err       error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notify %q via %s: %v", e.FolderKey, e.Sink, e.Err)
}

func (e *NotificationDeliveryError) Is(target error) bool { return target == ErrDelivery }
func (e *NotificationDeliveryError) Unwrap() error        { return e.Err }

// AnalyticsError is logged only
type AnalyticsError struct {
	FolderKey string
	Backend   string
	Err       error
}

func (e *AnalyticsError) Error() string {
	return fmt.Sprintf("analytics %s for %q: %v", e.Backend, e.FolderKey, e.Err)
}

func (e *AnalyticsError) Is(target error) bool { return target == ErrAnalytics }
func (e *AnalyticsError) Unwrap() error        { return e.Err }
