// Package speed cleans up instantaneous speed telemetry before it is written
// into a FIT file. Rogue consoles report a running average that lags badly on
// interval workouts (observed 0.75 km/h reported against a real ~12 km/h
// average), so the corrected average is always computed from the
// instantaneous series and the device figure is only logged for comparison.
package speed

import (
	"fmt"
	"log/slog"
	"math"
)

const (
	// DefaultOutlierThresholdStd is the standard-deviation cutoff for
	// outlier rejection. Tuned against recorded workouts; do not adjust
	// without re-validating on device logs.
	DefaultOutlierThresholdStd = 2.0

	// DefaultMinValidSpeed filters the zero/near-zero readings consoles
	// emit before the flywheel spins up, in km/h.
	DefaultMinValidSpeed = 0.1

	// distanceTolerance is the accepted relative error when cross-checking
	// integrated speed against the accumulated distance channel.
	distanceTolerance = 0.20
)

// Metrics is the outcome of one correction pass. Consumed immediately by the
// message builder; not retained across conversions.
type Metrics struct {
	AvgSpeedKmh       float64
	MaxSpeedKmh       float64
	FilteredSpeeds    []float64
	OutliersRemoved   int
	DistanceValidated bool
	ValidationError   string
}

// Calculator filters speed samples and validates them against distance.
type Calculator struct {
	OutlierThresholdStd float64
	MinValidSpeed       float64
}

// NewCalculator returns a Calculator with the field-tuned defaults.
func NewCalculator() *Calculator {
	return &Calculator{
		OutlierThresholdStd: DefaultOutlierThresholdStd,
		MinValidSpeed:       DefaultMinValidSpeed,
	}
}

// CalculateMetrics computes corrected average/max speed from instantaneous
// samples (km/h). When cumulative distances (m) and per-sample elapsed
// seconds are supplied with matching length, the filtered speeds are
// integrated and cross-checked against the final distance. deviceAvgSpeed,
// when positive, is logged for comparison only, never used as authoritative.
func (c *Calculator) CalculateMetrics(speeds, distances, elapsed []float64, deviceAvgSpeed float64) Metrics {
	if len(speeds) == 0 {
		slog.Warn("No speed data provided")
		return Metrics{ValidationError: "No speed data"}
	}

	valid := make([]float64, 0, len(speeds))
	for _, s := range speeds {
		if s >= c.MinValidSpeed {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		slog.Warn("No valid speed values found", "samples", len(speeds))
		return Metrics{OutliersRemoved: len(speeds), ValidationError: "No valid speeds"}
	}

	filtered, removed := c.filterOutliers(valid)
	if len(filtered) == 0 {
		// Never return an empty series for non-empty input.
		slog.Warn("All speeds filtered as outliers, using original valid speeds")
		filtered = valid
		removed = 0
	}

	m := Metrics{
		AvgSpeedKmh:       mean(filtered),
		MaxSpeedKmh:       maxOf(filtered),
		FilteredSpeeds:    filtered,
		OutliersRemoved:   removed,
		DistanceValidated: true,
	}

	if len(distances) > 0 && len(elapsed) > 0 &&
		len(distances) == len(elapsed) && len(distances) == len(speeds) {
		m.DistanceValidated, m.ValidationError = c.validateAgainstDistance(filtered, distances, elapsed)
	}

	if deviceAvgSpeed > 0 {
		slog.Info("Speed comparison",
			"calculated_avg_kmh", m.AvgSpeedKmh,
			"device_reported_kmh", deviceAvgSpeed,
			"ratio", m.AvgSpeedKmh/deviceAvgSpeed,
		)
	}
	slog.Info("Speed calculation",
		"avg_kmh", m.AvgSpeedKmh,
		"max_kmh", m.MaxSpeedKmh,
		"filtered", len(filtered),
		"total", len(speeds),
		"outliers_removed", removed,
	)
	return m
}

// filterOutliers drops samples farther than the threshold number of standard
// deviations from the mean. Below 3 samples the statistics are meaningless,
// so the input passes through unchanged; likewise for zero spread.
func (c *Calculator) filterOutliers(speeds []float64) ([]float64, int) {
	if len(speeds) < 3 {
		return speeds, 0
	}
	m := mean(speeds)
	sd := stddev(speeds, m)
	if sd == 0 {
		return speeds, 0
	}
	threshold := c.OutlierThresholdStd * sd
	filtered := make([]float64, 0, len(speeds))
	for _, s := range speeds {
		if math.Abs(s-m) <= threshold {
			filtered = append(filtered, s)
		}
	}
	removed := len(speeds) - len(filtered)
	if removed > 0 {
		slog.Debug("Removed speed outliers",
			"removed", removed, "mean", m, "stddev", sd, "threshold", threshold)
	}
	return filtered, removed
}

func (c *Calculator) validateAgainstDistance(speeds, distances, elapsed []float64) (bool, string) {
	var expected float64
	for i := 1; i < len(speeds); i++ {
		if i < len(elapsed) {
			dt := elapsed[i] - elapsed[i-1]
			expected += speeds[i] / 3.6 * dt // km/h → m/s
		}
	}
	actual := distances[len(distances)-1]
	errRel := math.Abs(expected-actual) / math.Max(actual, 1)
	if errRel > distanceTolerance {
		msg := fmt.Sprintf("distance validation failed: expected %.1fm, actual %.1fm, error %.0f%%",
			expected, actual, errRel*100)
		slog.Warn("Distance validation failed",
			"expected_m", expected, "actual_m", actual, "relative_error", errRel)
		return false, msg
	}
	slog.Debug("Distance validation passed",
		"expected_m", expected, "actual_m", actual, "relative_error", errRel)
	return true, ""
}

// RunningAverage smooths a speed series with a linearly weighted moving
// window; weightRecent in [0.5, 1.0] shifts weight toward the newest sample.
// Used by the live-display collaborator, exposed here so both paths share one
// implementation.
func RunningAverage(speeds []float64, windowSize int, weightRecent float64) []float64 {
	if len(speeds) == 0 {
		return nil
	}
	out := make([]float64, 0, len(speeds))
	for i := range speeds {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		window := speeds[start : i+1]
		if len(window) == 1 {
			out = append(out, window[0])
			continue
		}
		var weightedSum, weightSum float64
		for j, s := range window {
			w := (1 - weightRecent) + weightRecent*float64(j)/float64(len(window)-1)
			weightedSum += s * w
			weightSum += w
		}
		out = append(out, weightedSum/weightSum)
	}
	return out
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

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the sample standard deviation (n-1 divisor), matching the
// statistics the thresholds were tuned with.
func stddev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

