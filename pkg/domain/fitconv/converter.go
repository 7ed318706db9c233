// Package fitconv turns a finalized workout into a Garmin FIT activity file.
//
// Message order is fixed: FileId, DeviceInfo, Event(start), Record xN,
// Event(stop), Lap, Session, Activity. The stages run strictly in sequence;
// a fatal error at any stage aborts the conversion with nothing written.
package fitconv

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	shared "github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/device"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/speed"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/timeconv"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/workout"
)

// Converter encodes workouts into .fit files under OutputDir.
//
// Each Convert call owns all of its intermediate state, so independent
// Converter instances (or one instance across sequential calls) are safe to
// run concurrently. Filenames embed the start second; two workouts started
// in the same second converting into the same directory would collide.
// Accepted limitation.
type Converter struct {
	OutputDir       string
	SerialNumber    uint32
	SoftwareVersion uint16 // scaled x100
	HardwareVersion uint8

	speed *speed.Calculator
}

// NewConverter returns a Converter with the shared defaults. The output
// directory is created on first use.
func NewConverter(outputDir string) *Converter {
	return &Converter{
		OutputDir:       outputDir,
		SerialNumber:    shared.DefaultSerialNumber,
		SoftwareVersion: shared.DefaultSoftwareVersion,
		HardwareVersion: shared.DefaultHardwareVersion,
		speed:           speed.NewCalculator(),
	}
}

// Result is what one successful conversion produced. Everything except the
// file itself is derived state for logging and display.
type Result struct {
	Path           string          `json:"path"`
	Summary        workout.Summary `json:"-"`
	Speed          speed.Metrics   `json:"-"`
	Profile        device.Profile  `json:"-"`
	Intensity      float64         `json:"intensity"`
	LoadMultiplier float64         `json:"load_multiplier"`
	RecordCount    int             `json:"record_count"`
}

// Convert runs the full pipeline: speed correction, device identification,
// message building, binary encoding, atomic write. On a fatal error no file
// is observable on disk.
func (c *Converter) Convert(in *workout.Input) (*Result, error) {
	if in == nil || len(in.Samples) == 0 {
		return nil, ErrNoDataPoints
	}
	slog.Info("Processing workout",
		"workout_type", in.WorkoutType, "data_points", len(in.Samples))

	startTime := c.resolveStartTime(in)

	// Resolve per-sample timestamps against the start; samples that fail
	// are skipped rather than failing the conversion.
	times := make([]time.Time, len(in.Samples))
	var valid []int
	for i, s := range in.Samples {
		if t, ok := s.Timestamp.Resolve(startTime); ok {
			times[i] = t
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoTimestamps
	}
	if skipped := len(in.Samples) - len(valid); skipped > 0 {
		slog.Warn("Skipping samples with unresolvable timestamps", "skipped", skipped)
	}

	if first := times[valid[0]]; first.Before(startTime) {
		slog.Info("Adjusting activity start time to first record", "from", startTime, "to", first)
		startTime = first
	}
	if startTime.IsZero() {
		return nil, ErrInvalidStartTime
	}
	slog.Debug("Resolved activity start", "start", startTime, "unix_ms", timeconv.ToUnixMillis(startTime))

	duration := c.resolveDuration(in, times, valid)
	endTime := startTime.Add(time.Duration(duration * float64(time.Second)))

	metrics := c.correctSpeeds(in, times, valid, startTime)
	summary := workout.DeriveSummary(in)
	summary.AvgSpeedKmh = metrics.AvgSpeedKmh
	summary.MaxSpeedKmh = metrics.MaxSpeedKmh
	if summary.ElapsedSeconds <= 0 {
		summary.ElapsedSeconds = duration
	}

	profile := device.Identify(in.WorkoutType, in.DeviceName)
	var ftp, maxHR float64
	if in.UserProfile != nil {
		ftp = in.UserProfile.FTP
		maxHR = in.UserProfile.MaxHeartRate
	}
	intensity := device.WorkoutIntensity(
		summary.AvgPower, summary.MaxPower,
		summary.AvgHeartRate, summary.MaxHeartRate,
		ftp, maxHR,
	)
	multiplier := device.TrainingLoadMultiplier(profile, intensity)

	fit := c.buildMessages(in, profile, summary, times, valid, startTime, endTime, duration)

	path, err := c.writeFile(in.WorkoutType, startTime, fit)
	if err != nil {
		return nil, err
	}

	slog.Info("FIT file created", "path", path, "records", len(valid))
	return &Result{
		Path:           path,
		Summary:        summary,
		Speed:          metrics,
		Profile:        profile,
		Intensity:      intensity,
		LoadMultiplier: multiplier,
		RecordCount:    len(valid),
	}, nil
}

// resolveStartTime prefers the first sample's absolute timestamp, then the
// metadata start time, then the current time as a logged last resort.
func (c *Converter) resolveStartTime(in *workout.Input) time.Time {
	if len(in.Samples) > 0 {
		if t, ok := in.Samples[0].Timestamp.Resolve(time.Time{}); ok {
			return t
		}
	}
	if t, ok := timeconv.ToUTC(in.StartTime, time.Time{}); ok {
		return t
	}
	slog.Warn("Could not determine a valid start time, using current UTC time")
	return time.Now().UTC()
}

func (c *Converter) resolveDuration(in *workout.Input, times []time.Time, valid []int) float64 {
	if in.TotalDurationS > 0 {
		return in.TotalDurationS
	}
	first, last := times[valid[0]], times[valid[len(valid)-1]]
	if d := last.Sub(first).Seconds(); d > 0 {
		return d
	}
	d := float64(len(valid))
	slog.Warn("Total duration invalid, estimating from sample count", "estimated_s", d)
	return d
}

func (c *Converter) correctSpeeds(in *workout.Input, times []time.Time, valid []int, start time.Time) speed.Metrics {
	speeds := make([]float64, 0, len(valid))
	distances := make([]float64, 0, len(valid))
	elapsed := make([]float64, 0, len(valid))
	haveDistance := true
	for _, i := range valid {
		s := in.Samples[i]
		if s.SpeedKmh == nil {
			continue
		}
		speeds = append(speeds, float64(*s.SpeedKmh))
		elapsed = append(elapsed, times[i].Sub(start).Seconds())
		if s.DistanceM != nil {
			distances = append(distances, *s.DistanceM)
		} else {
			haveDistance = false
		}
	}
	if !haveDistance || len(distances) != len(speeds) {
		distances = nil
		elapsed = nil
	}
	return c.speed.CalculateMetrics(speeds, distances, elapsed, 0)
}

func (c *Converter) buildMessages(in *workout.Input, profile device.Profile, summary workout.Summary,
	times []time.Time, valid []int, startTime, endTime time.Time, duration float64) *proto.FIT {

	fit := &proto.FIT{Messages: make([]proto.Message, 0, len(valid)+8)}

	fileId := mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.Manufacturer(profile.ManufacturerID)).
		SetProduct(profile.ProductID).
		SetSerialNumber(c.SerialNumber).
		SetTimeCreated(startTime)
	fit.Messages = append(fit.Messages, fileId.ToMesg(nil))

	deviceInfo := mesgdef.NewDeviceInfo(nil).
		SetTimestamp(startTime).
		SetDeviceIndex(typedef.DeviceIndexCreator).
		SetManufacturer(typedef.Manufacturer(profile.ManufacturerID)).
		SetProduct(profile.ProductID).
		SetProductName(profile.DeviceName).
		SetSerialNumber(c.SerialNumber).
		SetSoftwareVersion(c.SoftwareVersion).
		SetHardwareVersion(c.HardwareVersion)
	fit.Messages = append(fit.Messages, deviceInfo.ToMesg(nil))

	startEvent := mesgdef.NewEvent(nil).
		SetTimestamp(startTime).
		SetEvent(typedef.EventTimer).
		SetEventType(typedef.EventTypeStart)
	fit.Messages = append(fit.Messages, startEvent.ToMesg(nil))

	stopTime := endTime
	if stopTime.IsZero() {
		stopTime = times[valid[len(valid)-1]]
	}

	for _, i := range valid {
		fit.Messages = append(fit.Messages, recordMesg(in.Samples[i], times[i]))
	}

	stopEvent := mesgdef.NewEvent(nil).
		SetTimestamp(stopTime).
		SetEvent(typedef.EventTimer).
		SetEventType(typedef.EventTypeStop)
	fit.Messages = append(fit.Messages, stopEvent.ToMesg(nil))

	durationMs := uint32(math.Round(duration * 1000))

	lap := mesgdef.NewLap(nil).
		SetMessageIndex(typedef.MessageIndex(0)).
		SetTimestamp(stopTime).
		SetStartTime(startTime).
		SetTotalElapsedTime(durationMs).
		SetTotalTimerTime(durationMs).
		SetEvent(typedef.EventLap).
		SetEventType(typedef.EventTypeStop).
		SetLapTrigger(typedef.LapTriggerManual).
		SetSport(typedef.Sport(profile.Sport)).
		SetSubSport(typedef.SubSport(profile.SubSport))
	applyLapSummary(lap, summary)
	fit.Messages = append(fit.Messages, lap.ToMesg(nil))

	session := mesgdef.NewSession(nil).
		SetMessageIndex(typedef.MessageIndex(0)).
		SetTimestamp(stopTime).
		SetStartTime(startTime).
		SetTotalElapsedTime(durationMs).
		SetTotalTimerTime(durationMs).
		SetEvent(typedef.EventSession).
		SetEventType(typedef.EventTypeStop).
		SetTrigger(typedef.SessionTriggerActivityEnd).
		SetFirstLapIndex(0).
		SetNumLaps(1).
		SetSport(typedef.Sport(profile.Sport)).
		SetSubSport(typedef.SubSport(profile.SubSport))
	applySessionSummary(session, summary)
	fit.Messages = append(fit.Messages, session.ToMesg(nil))

	// local_timestamp is local midnight of the start day by convention, so
	// Garmin Connect files the activity under the right calendar date. The
	// FIT-epoch clamp keeps pathological pre-1990 inputs from wrapping.
	midnight := time.Date(startTime.Year(), startTime.Month(), startTime.Day(), 0, 0, 0, 0, time.UTC)
	localTS := timeconv.FITEpoch.Add(time.Duration(timeconv.ToFITEpochSeconds(midnight)) * time.Second)

	activity := mesgdef.NewActivity(nil).
		SetTimestamp(startTime).
		SetTotalTimerTime(durationMs).
		SetNumSessions(1).
		SetType(typedef.ActivityManual).
		SetEvent(typedef.EventActivity).
		SetEventType(typedef.EventTypeStop).
		SetLocalTimestamp(localTS)
	fit.Messages = append(fit.Messages, activity.ToMesg(nil))

	return fit
}

func recordMesg(s workout.Sample, t time.Time) proto.Message {
	rec := mesgdef.NewRecord(nil).SetTimestamp(t)
	if s.Power != nil {
		rec.SetPower(*s.Power)
	}
	if s.HeartRate != nil {
		rec.SetHeartRate(*s.HeartRate)
	}
	if s.Cadence != nil {
		rec.SetCadence(uint8(math.Round(float64(*s.Cadence))))
	} else if s.StrokeRate != nil {
		// FIT reuses the cadence channel for strokes per minute.
		rec.SetCadence(*s.StrokeRate)
	}
	if s.SpeedKmh != nil {
		mps := float64(*s.SpeedKmh) / 3.6
		rec.SetSpeedScaled(mps)
		rec.SetEnhancedSpeedScaled(mps)
	}
	if s.DistanceM != nil {
		rec.SetDistanceScaled(*s.DistanceM)
	}
	return rec.ToMesg(nil)
}

func applyLapSummary(lap *mesgdef.Lap, s workout.Summary) {
	if s.AvgSpeedKmh > 0 {
		lap.SetAvgSpeedScaled(s.AvgSpeedKmh / 3.6)
	}
	if s.MaxSpeedKmh > 0 {
		lap.SetMaxSpeedScaled(s.MaxSpeedKmh / 3.6)
	}
	if s.TotalDistanceM > 0 {
		lap.SetTotalDistanceScaled(s.TotalDistanceM)
	}
	if s.TotalCalories > 0 {
		lap.SetTotalCalories(uint16(s.TotalCalories))
	}
	if s.AvgPower > 0 {
		lap.SetAvgPower(uint16(math.Round(s.AvgPower)))
	}
	if s.MaxPower > 0 {
		lap.SetMaxPower(uint16(math.Round(s.MaxPower)))
	}
	if s.NormalizedPower > 0 {
		lap.SetNormalizedPower(uint16(math.Round(s.NormalizedPower)))
	}
	if s.AvgCadence > 0 {
		lap.SetAvgCadence(uint8(math.Round(s.AvgCadence)))
	}
	if s.MaxCadence > 0 {
		lap.SetMaxCadence(uint8(math.Round(s.MaxCadence)))
	}
	if s.AvgHeartRate > 0 {
		lap.SetAvgHeartRate(uint8(math.Round(s.AvgHeartRate)))
	}
	if s.MaxHeartRate > 0 {
		lap.SetMaxHeartRate(uint8(math.Round(s.MaxHeartRate)))
	}
}

// applySessionSummary mirrors applyLapSummary; the FIT profile duplicates
// the field set between Lap and Session and Garmin reads both.
func applySessionSummary(session *mesgdef.Session, s workout.Summary) {
	if s.AvgSpeedKmh > 0 {
		session.SetAvgSpeedScaled(s.AvgSpeedKmh / 3.6)
	}
	if s.MaxSpeedKmh > 0 {
		session.SetMaxSpeedScaled(s.MaxSpeedKmh / 3.6)
	}
	if s.TotalDistanceM > 0 {
		session.SetTotalDistanceScaled(s.TotalDistanceM)
	}
	if s.TotalCalories > 0 {
		session.SetTotalCalories(uint16(s.TotalCalories))
	}
	if s.AvgPower > 0 {
		session.SetAvgPower(uint16(math.Round(s.AvgPower)))
	}
	if s.MaxPower > 0 {
		session.SetMaxPower(uint16(math.Round(s.MaxPower)))
	}
	if s.NormalizedPower > 0 {
		session.SetNormalizedPower(uint16(math.Round(s.NormalizedPower)))
	}
	if s.AvgCadence > 0 {
		session.SetAvgCadence(uint8(math.Round(s.AvgCadence)))
	}
	if s.MaxCadence > 0 {
		session.SetMaxCadence(uint8(math.Round(s.MaxCadence)))
	}
	if s.AvgHeartRate > 0 {
		session.SetAvgHeartRate(uint8(math.Round(s.AvgHeartRate)))
	}
	if s.MaxHeartRate > 0 {
		session.SetMaxHeartRate(uint8(math.Round(s.MaxHeartRate)))
	}
}

// writeFile encodes to a temp file in the output directory and renames into
// place, so a partially written file is never observable under the final
// name.
func (c *Converter) writeFile(workoutType string, startTime time.Time, fit *proto.FIT) (string, error) {
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %w", ErrSerialization, err)
	}

	var buf bytes.Buffer
	enc := encoder.New(&buf)
	if err := enc.Encode(fit); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	name := fmt.Sprintf("%s_%s.fit", workoutType, startTime.Format("20060102_150405"))
	finalPath := filepath.Join(c.OutputDir, name)

	tmp, err := os.CreateTemp(c.OutputDir, ".fit-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return finalPath, nil
}
