package util

import (
	"strconv"
	"strings"
	"time"
)

var layouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseTime accepts RFC3339 (with or without fraction), naive ISO timestamps, plain dates,
// and unix seconds or milliseconds. The result is in UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// UnixAuto interprets ts as milliseconds when it is too large to be seconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1e11 { // ms
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
