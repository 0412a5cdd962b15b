package notify

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/imroc/req/v3"
	"github.com/openmined/foldernotify/internal/version"
)

var userAgent = fmt.Sprintf("foldernotify/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// FormatText renders the chat message for a notice
func FormatText(n *Notice) string {
	return fmt.Sprintf("📁 New folder detected\nFolder: %s\nFirst File Time: %s", n.FolderPath(), RoundTimestamp(n.FirstSeenTime))
}

// FormatCompleteText renders the completion message for a summary
func FormatCompleteText(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Folder upload complete\nFolder: %s\nFirst File Time: %s", s.FolderPath(), RoundTimestamp(s.FirstSeenTime))
	fmt.Fprintf(&b, "\nFiles: %d\nTotal Size: %s", s.FileCount, humanize.IBytes(uint64(max(s.TotalSize, 0))))
	if !s.LastModified.IsZero() {
		fmt.Fprintf(&b, "\nLast Upload: %s", s.LastModified.UTC().Round(time.Second).Format(time.RFC3339))
		if first, ok := ParseTimestamp(s.FirstSeenTime); ok && s.LastModified.After(first) {
			fmt.Fprintf(&b, "\nDuration: %s", FormatDuration(s.LastModified.Sub(first)))
		}
	}
	return b.String()
}

// FormatDuration renders d with its two largest units: 45s, 3m 20s, 2h 5m, 1d 4h
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %dm", secs/3600, secs%3600/60)
	default:
		return fmt.Sprintf("%dd %dh", secs/86400, secs%86400/3600)
	}
}

// layouts accepted for event timestamps. Each one formats back with the
// same separator and offset style; zoneless inputs stay zoneless.
var timestampLayouts = []struct {
	parse  string
	format string
}{
	{time.RFC3339Nano, time.RFC3339},
	{"2006-01-02T15:04:05.999999999-0700", "2006-01-02T15:04:05-0700"},
	{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"},
	{"2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05Z07:00"},
	{"2006-01-02 15:04:05.999999999-0700", "2006-01-02 15:04:05-0700"},
	{"2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05"},
}

// ParseTimestamp parses an ISO-8601 event timestamp
func ParseTimestamp(ts string) (time.Time, bool) {
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l.parse, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RoundTimestamp rounds an ISO-8601 timestamp to the nearest second, keeping
// its offset. Anything that does not parse is returned unchanged.
func RoundTimestamp(ts string) string {
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l.parse, ts); err == nil {
			return t.Round(time.Second).Format(l.format)
		}
	}
	return ts
}

// newHTTPClient has no retries configured
func newHTTPClient(timeout time.Duration) *req.Client {
	return req.C().
		SetTimeout(timeout).
		SetUserAgent(userAgent).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}
