// Package workout defines the input contract between the session-collection
// collaborator and the FIT conversion pipeline, plus the derived summary
// metrics the pipeline computes per conversion.
package workout

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/timeconv"
)

// Timestamp preserves the wire form of a sample timestamp: devices report
// either an ISO-8601 string, an absolute Unix value, or a relative offset in
// seconds from workout start. Resolution happens against a base time at
// conversion, not at decode.
type Timestamp struct {
	raw any
}

// NewTimestamp wraps an already-resolved instant.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{raw: t}
}

// NewOffset wraps a relative offset in seconds from workout start.
func NewOffset(seconds float64) Timestamp {
	return Timestamp{raw: seconds}
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		ts.raw = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ts.raw = s
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	switch v := ts.raw.(type) {
	case time.Time:
		return json.Marshal(v.UTC().Format(time.RFC3339))
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case string:
		return json.Marshal(v)
	default:
		return []byte("null"), nil
	}
}

// Resolve converts the raw timestamp to UTC, interpreting bare numbers as
// offsets from base per the timeconv heuristics.
func (ts Timestamp) Resolve(base time.Time) (time.Time, bool) {
	if ts.raw == nil {
		return time.Time{}, false
	}
	return timeconv.ToUTC(ts.raw, base)
}

// IsZero reports whether no timestamp was supplied at all.
func (ts Timestamp) IsZero() bool { return ts.raw == nil }

// Sample is one telemetry point as delivered by the FTMS collaborator.
// Optional fields are nil when the device did not report them; duplicates
// and jitter are expected and handled downstream.
type Sample struct {
	Timestamp  Timestamp `json:"timestamp"`
	Power      *uint16   `json:"power,omitempty"`
	HeartRate  *uint8    `json:"heart_rate,omitempty"`
	Cadence    *float32  `json:"cadence,omitempty"`
	SpeedKmh   *float32  `json:"speed_kmh,omitempty"`
	DistanceM  *float64  `json:"distance_m,omitempty"`
	StrokeRate *uint8    `json:"stroke_rate,omitempty"`
}

// SummaryHint carries the aggregate metrics the workout manager accumulated
// live. Zero values mean "not provided"; the pipeline recomputes those from
// samples where it can.
type SummaryHint struct {
	TotalDistanceM  float64 `json:"total_distance_m"`
	TotalCalories   int     `json:"total_calories"`
	AvgPower        float64 `json:"avg_power"`
	MaxPower        float64 `json:"max_power"`
	AvgHeartRate    float64 `json:"avg_heart_rate"`
	MaxHeartRate    float64 `json:"max_heart_rate"`
	AvgCadence      float64 `json:"avg_cadence"`
	MaxCadence      float64 `json:"max_cadence"`
	NormalizedPower float64 `json:"normalized_power"`
}

// UserProfile holds the thresholds used for intensity calculation.
type UserProfile struct {
	FTP          float64 `json:"ftp"`
	MaxHeartRate float64 `json:"max_heart_rate"`
}

// Input is the complete, finalized workout handed to the pipeline. It is
// immutable once produced; the pipeline never writes back into it.
type Input struct {
	WorkoutType    string       `json:"workout_type"` // "bike" or "rower"
	StartTime      string       `json:"start_time"`   // ISO-8601
	TotalDurationS float64      `json:"total_duration_s"`
	SummaryHint    *SummaryHint `json:"summary_hint,omitempty"`
	Samples        []Sample     `json:"samples"`
	DeviceName     string       `json:"device_name,omitempty"`
	UserProfile    *UserProfile `json:"user_profile,omitempty"`
}

// Summary is the aggregate view the builder writes into Lap and Session
// messages. Recomputed per conversion, never persisted.
type Summary struct {
	WorkoutType     string
	AvgPower        float64
	MaxPower        float64
	AvgHeartRate    float64
	MaxHeartRate    float64
	AvgCadence      float64
	MaxCadence      float64
	AvgSpeedKmh     float64
	MaxSpeedKmh     float64
	TotalDistanceM  float64
	TotalCalories   int
	NormalizedPower float64
	ElapsedSeconds  float64
}

// DeriveSummary merges the collaborator's hint with metrics recomputed from
// the sample series. Hinted values win when positive; gaps are filled from
// samples. Speed metrics are intentionally absent here; they come from the
// speed corrector, which never trusts device-reported averages.
func DeriveSummary(in *Input) Summary {
	s := Summary{
		WorkoutType:    in.WorkoutType,
		ElapsedSeconds: in.TotalDurationS,
	}
	if h := in.SummaryHint; h != nil {
		s.AvgPower = h.AvgPower
		s.MaxPower = h.MaxPower
		s.AvgHeartRate = h.AvgHeartRate
		s.MaxHeartRate = h.MaxHeartRate
		s.AvgCadence = h.AvgCadence
		s.MaxCadence = h.MaxCadence
		s.TotalDistanceM = h.TotalDistanceM
		s.TotalCalories = h.TotalCalories
		s.NormalizedPower = h.NormalizedPower
	}

	var powers []float64
	var hrSum, hrMax float64
	var hrCount int
	var cadSum, cadMax float64
	var cadCount int
	var lastDistance float64

	for _, sample := range in.Samples {
		if sample.Power != nil {
			powers = append(powers, float64(*sample.Power))
		}
		if sample.HeartRate != nil {
			hr := float64(*sample.HeartRate)
			hrSum += hr
			hrCount++
			if hr > hrMax {
				hrMax = hr
			}
		}
		cad, ok := sampleCadence(sample)
		if ok {
			cadSum += cad
			cadCount++
			if cad > cadMax {
				cadMax = cad
			}
		}
		if sample.DistanceM != nil && *sample.DistanceM > lastDistance {
			lastDistance = *sample.DistanceM
		}
	}

	if s.AvgPower <= 0 && len(powers) > 0 {
		s.AvgPower = mean(powers)
	}
	if s.MaxPower <= 0 && len(powers) > 0 {
		s.MaxPower = maxOf(powers)
	}
	if s.AvgHeartRate <= 0 && hrCount > 0 {
		s.AvgHeartRate = hrSum / float64(hrCount)
	}
	if s.MaxHeartRate <= 0 {
		s.MaxHeartRate = hrMax
	}
	if s.AvgCadence <= 0 && cadCount > 0 {
		s.AvgCadence = cadSum / float64(cadCount)
	}
	if s.MaxCadence <= 0 {
		s.MaxCadence = cadMax
	}
	if s.TotalDistanceM <= 0 {
		s.TotalDistanceM = lastDistance
	}
	if s.NormalizedPower <= 0 {
		s.NormalizedPower = NormalizedPower(powers)
	}
	return s
}

// sampleCadence prefers the cadence channel, falling back to stroke rate for
// rowers (FIT reuses the cadence field for strokes per minute).
func sampleCadence(s Sample) (float64, bool) {
	if s.Cadence != nil {
		return float64(*s.Cadence), true
	}
	if s.StrokeRate != nil {
		return float64(*s.StrokeRate), true
	}
	return 0, false
}

// NormalizedPower estimates normalized power as the fourth root of the mean
// of fourth powers over non-zero samples. A simplification of the Coggan
// algorithm (no 30s rolling window), kept for behavioral parity with the
// accumulation the original devices were tuned against.
func NormalizedPower(powers []float64) float64 {
	var sum float64
	var n int
	for _, p := range powers {
		if p > 0 {
			sum += p * p * p * p
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(math.Pow(sum/float64(n), 0.25))
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
