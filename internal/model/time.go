package model

import "time"

// TimestampLayout is the wire format for message and event timestamps.
// Millisecond precision with a Z suffix keeps strings lexically sortable.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the wire format (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a wire timestamp. It accepts the canonical
// layout plus RFC3339 variants produced by other tooling. Returns
// ok=false for empty or malformed input; callers treat that as
// "no data", never as an error.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AgeSeconds returns whole seconds between ts and now, floored at zero.
// Malformed timestamps age as zero.
func AgeSeconds(ts string, now time.Time) int {
	t, ok := ParseTimestamp(ts)
	if !ok {
		return 0
	}
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// MillisToTimestamp converts epoch milliseconds (team config joinedAt,
// createdAt) to a wire timestamp.
func MillisToTimestamp(ms int64) string {
	return FormatTimestamp(time.UnixMilli(ms))
}
