package timeconv

import (
	"testing"
	"time"
)

func TestToUTCStringFormats(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	cases := []string{
		"2025-03-14T09:26:53Z",
		"2025-03-14T09:26:53+00:00",
		"2025-03-14T09:26:53",
		"2025-03-14 09:26:53",
	}
	for _, in := range cases {
		got, ok := ToUTC(in, time.Time{})
		if !ok {
			t.Errorf("ToUTC(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ToUTC(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToUTCGarbageString(t *testing.T) {
	if _, ok := ToUTC("not a time", time.Time{}); ok {
		t.Error("expected failure for unparseable string")
	}
}

func TestToUTCNumericHeuristics(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	// Unix seconds: any value at or past 2000-01-01.
	got, ok := ToUTC(float64(1741944413), base)
	if !ok || got.Unix() != 1741944413 {
		t.Errorf("unix seconds: got %v ok=%v", got, ok)
	}

	// Unix milliseconds.
	got, ok = ToUTC(float64(1741944413500), base)
	if !ok || got.UnixMilli() != 1741944413500 {
		t.Errorf("unix millis: got %v ok=%v", got, ok)
	}

	// Small numbers are offsets from base.
	got, ok = ToUTC(float64(90), base)
	if !ok || !got.Equal(base.Add(90*time.Second)) {
		t.Errorf("offset: got %v ok=%v", got, ok)
	}
}

func TestToUTCOffsetWithoutBase(t *testing.T) {
	if _, ok := ToUTC(float64(30), time.Time{}); ok {
		t.Error("offset with zero base should fail")
	}
}

func TestToUnixMillisCeiling(t *testing.T) {
	exact := time.Unix(100, 0)
	if got := ToUnixMillis(exact); got != 100000 {
		t.Errorf("exact second: got %d", got)
	}
	// Any sub-millisecond remainder rounds up.
	frac := time.Unix(100, 1)
	if got := ToUnixMillis(frac); got != 100001 {
		t.Errorf("fractional: got %d, want 100001", got)
	}
	wholeMs := time.Unix(100, int64(5*time.Millisecond))
	if got := ToUnixMillis(wholeMs); got != 100005 {
		t.Errorf("whole millisecond: got %d, want 100005", got)
	}
}

func TestToFITEpochSeconds(t *testing.T) {
	if got := ToFITEpochSeconds(FITEpoch); got != 0 {
		t.Errorf("epoch itself: got %d", got)
	}
	oneHour := FITEpoch.Add(time.Hour)
	if got := ToFITEpochSeconds(oneHour); got != 3600 {
		t.Errorf("one hour past epoch: got %d", got)
	}
	// Pre-epoch times clamp to zero rather than wrapping.
	before := FITEpoch.Add(-time.Hour)
	if got := ToFITEpochSeconds(before); got != 0 {
		t.Errorf("pre-epoch: got %d, want 0", got)
	}
}
