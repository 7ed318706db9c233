package speed

import (
	"math"
	"strings"
	"testing"
)

// Interval workout captured from a Rogue Echo Bike console. The device
// reported a 0.75 km/h running average for this series.
var echoBikeInterval = []float64{0.0, 0.0, 1.12, 5.3, 9.49, 12.55, 14.32, 14.32, 14.96, 14.96, 16.73}

func TestCalculateMetricsEchoBikeInterval(t *testing.T) {
	c := NewCalculator()
	m := c.CalculateMetrics(echoBikeInterval, nil, nil, 0.75)

	if m.ValidationError != "" {
		t.Fatalf("unexpected validation error: %s", m.ValidationError)
	}
	// The corrected average must dwarf the device-reported 0.75 km/h.
	if m.AvgSpeedKmh < 0.75*5 {
		t.Errorf("AvgSpeedKmh = %v, expected well above device-reported 0.75", m.AvgSpeedKmh)
	}
	if m.MaxSpeedKmh != 16.73 {
		t.Errorf("MaxSpeedKmh = %v, want 16.73", m.MaxSpeedKmh)
	}
}

func TestCalculateMetricsEmpty(t *testing.T) {
	m := NewCalculator().CalculateMetrics(nil, nil, nil, 0)
	if m.ValidationError != "No speed data" {
		t.Errorf("ValidationError = %q", m.ValidationError)
	}
	if m.AvgSpeedKmh != 0 || m.MaxSpeedKmh != 0 {
		t.Errorf("expected zero metrics, got %+v", m)
	}
}

func TestCalculateMetricsAllBelowThreshold(t *testing.T) {
	m := NewCalculator().CalculateMetrics([]float64{0.0, 0.05, 0.09}, nil, nil, 0)
	if m.ValidationError != "No valid speeds" {
		t.Errorf("ValidationError = %q", m.ValidationError)
	}
	if m.OutliersRemoved != 3 {
		t.Errorf("OutliersRemoved = %d, want 3", m.OutliersRemoved)
	}
}

func TestFilterOutliersPassThroughBelowThree(t *testing.T) {
	c := NewCalculator()
	filtered, removed := c.filterOutliers([]float64{5, 500})
	if removed != 0 || len(filtered) != 2 {
		t.Errorf("small inputs must pass through: %v removed=%d", filtered, removed)
	}
}

func TestFilterOutliersZeroSpread(t *testing.T) {
	c := NewCalculator()
	filtered, removed := c.filterOutliers([]float64{10, 10, 10, 10})
	if removed != 0 || len(filtered) != 4 {
		t.Errorf("zero stddev must skip filtering: %v removed=%d", filtered, removed)
	}
}

func TestCalculateMetricsNeverEmptyOnNonEmptyInput(t *testing.T) {
	// A tight cluster plus one extreme value; even if filtering went wrong,
	// a non-empty valid input must yield non-zero metrics.
	m := NewCalculator().CalculateMetrics([]float64{10, 10.1, 9.9, 10, 80}, nil, nil, 0)
	if len(m.FilteredSpeeds) == 0 {
		t.Fatal("filtered speeds empty for non-empty input")
	}
	if m.AvgSpeedKmh <= 0 {
		t.Errorf("AvgSpeedKmh = %v", m.AvgSpeedKmh)
	}
}

func TestDistanceValidationPasses(t *testing.T) {
	// 10 m/s (36 km/h) steady for 10 intervals of 1s each.
	speeds := make([]float64, 11)
	distances := make([]float64, 11)
	elapsed := make([]float64, 11)
	for i := range speeds {
		speeds[i] = 36.0
		elapsed[i] = float64(i)
		distances[i] = float64(i) * 10.0
	}
	m := NewCalculator().CalculateMetrics(speeds, distances, elapsed, 0)
	if !m.DistanceValidated {
		t.Errorf("expected validation pass: %s", m.ValidationError)
	}
}

func TestDistanceValidationFails(t *testing.T) {
	speeds := make([]float64, 11)
	distances := make([]float64, 11)
	elapsed := make([]float64, 11)
	for i := range speeds {
		speeds[i] = 36.0
		elapsed[i] = float64(i)
		distances[i] = float64(i) * 2.0 // far less than speed implies
	}
	m := NewCalculator().CalculateMetrics(speeds, distances, elapsed, 0)
	if m.DistanceValidated {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(m.ValidationError, "distance validation failed") {
		t.Errorf("ValidationError = %q", m.ValidationError)
	}
}

func TestRunningAverage(t *testing.T) {
	out := RunningAverage([]float64{10, 20, 30}, 2, 0.7)
	if len(out) != 3 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0] != 10 {
		t.Errorf("first sample has no history, got %v", out[0])
	}
	// Recent-weighted average of {10,20} must land between mean and newest.
	if out[1] <= 15 || out[1] >= 20 {
		t.Errorf("out[1] = %v, want in (15, 20)", out[1])
	}
	if RunningAverage(nil, 3, 0.7) != nil {
		t.Error("empty input should return nil")
	}
}

func TestMaxOf(t *testing.T) {
	if got := maxOf([]float64{3.2, 16.73, 9.1}); got != 16.73 {
		t.Errorf("maxOf = %v, want 16.73", got)
	}
	if got := maxOf([]float64{5}); got != 5 {
		t.Errorf("single element: got %v", got)
	}
}

func TestStddevSampleDivisor(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	m := mean(vals)
	got := stddev(vals, m)
	want := math.Sqrt(32.0 / 7.0) // n-1 divisor
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("stddev = %v, want %v", got, want)
	}
}
