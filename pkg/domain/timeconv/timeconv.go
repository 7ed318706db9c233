// Package timeconv converts between the three clocks a FIT activity file
// touches: calendar time, milliseconds since the Unix epoch, and seconds
// since the FIT epoch (1989-12-31T00:00:00Z).
package timeconv

import (
	"log/slog"
	"math"
	"strings"
	"time"
)

// FITEpoch is the zero point for FIT date_time fields such as
// activity.local_timestamp. Distinct from the Unix epoch.
var FITEpoch = time.Date(1989, time.December, 31, 0, 0, 0, 0, time.UTC)

// Numeric values at or above this are interpreted as Unix seconds
// (approximately 2000-01-01); a thousand times that, as Unix milliseconds.
// Smaller values are offsets in seconds from a caller-supplied base.
const unixSecondsThreshold = 946684800

// ToUTC normalizes a flexibly-typed timestamp to UTC. Accepted inputs:
// time.Time, an ISO-8601 string (trailing "Z" or numeric offset), or a
// numeric value resolved with the threshold heuristic above. A bare numeric
// offset without a usable base is ambiguous and reports false.
func ToUTC(input any, base time.Time) (time.Time, bool) {
	switch v := input.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		return parseISO(v)
	case float64:
		return fromNumeric(v, base)
	case float32:
		return fromNumeric(float64(v), base)
	case int:
		return fromNumeric(float64(v), base)
	case int64:
		return fromNumeric(float64(v), base)
	default:
		return time.Time{}, false
	}
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	slog.Warn("Could not parse datetime string", "input", s)
	return time.Time{}, false
}

func fromNumeric(v float64, base time.Time) (time.Time, bool) {
	switch {
	case v >= unixSecondsThreshold*1000:
		ms := int64(v)
		return time.UnixMilli(ms).UTC(), true
	case v >= unixSecondsThreshold:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), true
	case !base.IsZero():
		return base.Add(time.Duration(v * float64(time.Second))).UTC(), true
	default:
		slog.Warn("Numeric time input is ambiguous without a base datetime", "input", v)
		return time.Time{}, false
	}
}

// ToUnixMillis converts t to milliseconds since the Unix epoch, rounding up.
// The ceiling is deliberate: truncation would under-report elapsed time for
// sub-millisecond fractions.
func ToUnixMillis(t time.Time) int64 {
	ns := t.UnixNano()
	ms := ns / int64(time.Millisecond)
	if ns%int64(time.Millisecond) > 0 {
		ms++
	}
	return ms
}

// ToFITEpochSeconds converts t to seconds since the FIT epoch. Timestamps
// before the epoch cannot be represented; they clamp to 0 with a warning
// rather than wrapping negative.
func ToFITEpochSeconds(t time.Time) uint32 {
	if t.Before(FITEpoch) {
		slog.Warn("Timestamp precedes FIT epoch, clamping to 0", "timestamp", t)
		return 0
	}
	return uint32(t.Sub(FITEpoch) / time.Second)
}
