// Package fitcheck re-parses a produced FIT file and reports how well it
// conforms to what Garmin Connect accepts. Validation never fails the caller;
// a corrupt or foreign file yields a report with a single Error issue.
package fitcheck

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
)

// Severity classifies a validation issue. An Error means the file is
// non-compliant; Warnings and Info are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding from a validation pass.
type Issue struct {
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Field       string   `json:"field,omitempty"`
	MessageType string   `json:"message_type,omitempty"`
	Expected    string   `json:"expected,omitempty"`
	Actual      string   `json:"actual,omitempty"`
}

// Result is a complete validation report. Serializable to JSON for the web
// collaborator's display.
type Result struct {
	IsValid            bool           `json:"is_valid"`
	Issues             []Issue        `json:"issues"`
	MessageCounts      map[string]int `json:"message_counts"`
	TotalMessages      int            `json:"total_messages"`
	FileSizeBytes      int            `json:"file_size_bytes"`
	CompatibilityScore int            `json:"compatibility_score"`
	IsCompatible       bool           `json:"is_compatible"`
}

// Errors returns only the Error-severity issues.
func (r *Result) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns only the Warning-severity issues.
func (r *Result) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

func (r *Result) bySeverity(sev Severity) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}

var (
	requiredMessages    = []string{"file_id", "activity"}
	recommendedMessages = []string{"device_info", "event", "record", "lap", "session"}
)

const (
	minRecordCount = 10

	maxPowerW       = 2000
	minHeartRate    = 30
	maxHeartRate    = 250
	maxCadenceRPM   = 300
	maxSpeedMps     = 100
	maxDistanceM    = 1_000_000
	minTemperatureC = -40
	maxTemperatureC = 60
	minAltitudeM    = -500
	maxAltitudeM    = 9000
	maxCaloriesKcal = 10000
	maxElapsedS     = 86400
	compatibleFrom  = 70
)

// Validator runs the composable check set over a decoded FIT file.
type Validator struct{}

func New() *Validator { return &Validator{} }

// ValidateFile reads and validates path. I/O failures become a single Error
// issue, same as decode failures.
func (v *Validator) ValidateFile(path string) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return failedResult(fmt.Sprintf("cannot read file: %v", err))
	}
	return v.ValidateBytes(data)
}

// ValidateBytes validates an in-memory FIT file. Always returns a complete
// report; never panics on corrupt input.
func (v *Validator) ValidateBytes(data []byte) *Result {
	res := &Result{
		MessageCounts: map[string]int{},
		FileSizeBytes: len(data),
	}

	msgs, err := decodeAll(data)
	if err != nil {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Message:  fmt.Sprintf("failed to parse FIT file: %v", err),
		})
		res.finish()
		return res
	}
	res.TotalMessages = len(msgs)
	for _, m := range msgs {
		res.MessageCounts[messageName(m.Num)]++
	}

	v.checkCompleteness(res)
	v.checkSequencing(res, msgs)
	v.checkFileId(res, msgs)
	v.checkRecords(res, msgs)
	v.checkSummaries(res, msgs)
	v.checkTimestamps(res, msgs)
	v.scoreCompatibility(res, msgs)

	res.finish()
	slog.Info("Validation complete",
		"is_valid", res.IsValid,
		"issues", len(res.Issues),
		"score", res.CompatibilityScore,
	)
	return res
}

func (r *Result) finish() {
	r.IsValid = len(r.Errors()) == 0
	r.IsCompatible = r.CompatibilityScore >= compatibleFrom
}

func failedResult(msg string) *Result {
	r := &Result{
		MessageCounts: map[string]int{},
		Issues:        []Issue{{Severity: SeverityError, Message: msg}},
	}
	r.finish()
	return r
}

func decodeAll(data []byte) ([]proto.Message, error) {
	dec := decoder.New(bytes.NewReader(data))
	var msgs []proto.Message
	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, fit.Messages...)
	}
	return msgs, nil
}

func messageName(num typedef.MesgNum) string {
	switch num {
	case typedef.MesgNumFileId:
		return "file_id"
	case typedef.MesgNumDeviceInfo:
		return "device_info"
	case typedef.MesgNumEvent:
		return "event"
	case typedef.MesgNumRecord:
		return "record"
	case typedef.MesgNumLap:
		return "lap"
	case typedef.MesgNumSession:
		return "session"
	case typedef.MesgNumActivity:
		return "activity"
	default:
		return num.String()
	}
}

func (v *Validator) checkCompleteness(res *Result) {
	for _, name := range requiredMessages {
		if res.MessageCounts[name] == 0 {
			res.Issues = append(res.Issues, Issue{
				Severity:    SeverityError,
				Message:     fmt.Sprintf("missing required message type: %s", name),
				MessageType: name,
			})
		}
	}
	for _, name := range recommendedMessages {
		if res.MessageCounts[name] == 0 {
			res.Issues = append(res.Issues, Issue{
				Severity:    SeverityWarning,
				Message:     fmt.Sprintf("missing recommended message type: %s", name),
				MessageType: name,
			})
		}
	}
	if n := res.MessageCounts["record"]; n > 0 && n < minRecordCount {
		res.Issues = append(res.Issues, Issue{
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("only %d record messages; very short activity", n),
			MessageType: "record",
		})
	}
}

func (v *Validator) checkSequencing(res *Result, msgs []proto.Message) {
	if len(msgs) == 0 {
		return
	}
	if msgs[0].Num != typedef.MesgNumFileId {
		res.Issues = append(res.Issues, Issue{
			Severity:    SeverityError,
			Message:     "first message must be file_id",
			MessageType: messageName(msgs[0].Num),
			Expected:    "file_id",
			Actual:      messageName(msgs[0].Num),
		})
	}

	var prev time.Time
	for _, m := range msgs {
		if m.Num != typedef.MesgNumRecord {
			continue
		}
		rec := mesgdef.NewRecord(&m)
		if rec.Timestamp.IsZero() {
			continue
		}
		if !prev.IsZero() && rec.Timestamp.Before(prev) {
			// First violation only; one unordered pair implies the rest.
			res.Issues = append(res.Issues, Issue{
				Severity:    SeverityWarning,
				Message:     "record timestamps are not in ascending order",
				MessageType: "record",
				Field:       "timestamp",
			})
			break
		}
		prev = rec.Timestamp
	}
}

func (v *Validator) checkFileId(res *Result, msgs []proto.Message) {
	for _, m := range msgs {
		if m.Num != typedef.MesgNumFileId {
			continue
		}
		f := mesgdef.NewFileId(&m)
		if f.Type != typedef.FileActivity {
			res.Issues = append(res.Issues, Issue{
				Severity:    SeverityError,
				Message:     "file_id type must be activity",
				MessageType: "file_id",
				Field:       "type",
				Expected:    "activity",
				Actual:      f.Type.String(),
			})
		}
		if uint16(f.Manufacturer) == basetype.Uint16Invalid {
			res.Issues = append(res.Issues, Issue{
				Severity: SeverityWarning, Message: "file_id missing manufacturer",
				MessageType: "file_id", Field: "manufacturer",
			})
		}
		if f.Product == basetype.Uint16Invalid {
			res.Issues = append(res.Issues, Issue{
				Severity: SeverityWarning, Message: "file_id missing product",
				MessageType: "file_id", Field: "product",
			})
		}
		if f.TimeCreated.IsZero() {
			res.Issues = append(res.Issues, Issue{
				Severity: SeverityWarning, Message: "file_id missing time_created",
				MessageType: "file_id", Field: "time_created",
			})
		}
	}
}

// checkRecords validates per-record presence and field ranges. Range
// violations are aggregated per field so a long noisy ride does not produce
// thousands of issues.
func (v *Validator) checkRecords(res *Result, msgs []proto.Message) {
	rangeViolations := map[string]int{}
	var missingTimestamp, missingData int

	for _, m := range msgs {
		if m.Num != typedef.MesgNumRecord {
			continue
		}
		rec := mesgdef.NewRecord(&m)

		if rec.Timestamp.IsZero() {
			missingTimestamp++
		}

		hasPower := rec.Power != basetype.Uint16Invalid
		hasHR := rec.HeartRate != basetype.Uint8Invalid
		hasCadence := rec.Cadence != basetype.Uint8Invalid
		hasSpeed := rec.Speed != basetype.Uint16Invalid
		hasDistance := rec.Distance != basetype.Uint32Invalid
		if !hasPower && !hasHR && !hasCadence && !hasSpeed && !hasDistance {
			missingData++
		}

		if hasPower && rec.Power > maxPowerW {
			rangeViolations["power"]++
		}
		if hasHR && (rec.HeartRate < minHeartRate || rec.HeartRate > maxHeartRate) {
			rangeViolations["heart_rate"]++
		}
		if hasCadence && int(rec.Cadence) > maxCadenceRPM {
			rangeViolations["cadence"]++
		}
		if hasSpeed && rec.SpeedScaled() > maxSpeedMps {
			rangeViolations["speed"]++
		}
		if hasDistance && rec.DistanceScaled() > maxDistanceM {
			rangeViolations["distance"]++
		}
		if rec.Temperature != basetype.Sint8Invalid &&
			(int(rec.Temperature) < minTemperatureC || int(rec.Temperature) > maxTemperatureC) {
			rangeViolations["temperature"]++
		}
		if rec.Altitude != basetype.Uint16Invalid {
			if alt := rec.AltitudeScaled(); alt < minAltitudeM || alt > maxAltitudeM {
				rangeViolations["altitude"]++
			}
		}
	}

	if missingTimestamp > 0 {
		res.Issues = append(res.Issues, Issue{
			Severity:    SeverityError,
			Message:     fmt.Sprintf("%d record(s) missing timestamp", missingTimestamp),
			MessageType: "record",
			Field:       "timestamp",
		})
	}
	if missingData > 0 {
		res.Issues = append(res.Issues, Issue{
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("%d record(s) carry no telemetry fields", missingData),
			MessageType: "record",
		})
	}
	for field, n := range rangeViolations {
		res.Issues = append(res.Issues, Issue{
			Severity:    SeverityWarning,
			Message:     fmt.Sprintf("%d record(s) with out-of-range %s", n, field),
			MessageType: "record",
			Field:       field,
		})
	}
}

func (v *Validator) checkSummaries(res *Result, msgs []proto.Message) {
	for _, m := range msgs {
		switch m.Num {
		case typedef.MesgNumSession:
			s := mesgdef.NewSession(&m)
			if s.Timestamp.IsZero() {
				res.Issues = append(res.Issues, requiredFieldError("session", "timestamp"))
			}
			if s.StartTime.IsZero() {
				res.Issues = append(res.Issues, requiredFieldError("session", "start_time"))
			}
			if s.TotalElapsedTime == basetype.Uint32Invalid {
				res.Issues = append(res.Issues, requiredFieldError("session", "total_elapsed_time"))
			} else if s.TotalElapsedTimeScaled() > maxElapsedS {
				res.Issues = append(res.Issues, Issue{
					Severity: SeverityWarning, Message: "session elapsed time exceeds 24 hours",
					MessageType: "session", Field: "total_elapsed_time",
				})
			}
			if s.TotalCalories != basetype.Uint16Invalid && s.TotalCalories > maxCaloriesKcal {
				res.Issues = append(res.Issues, Issue{
					Severity: SeverityWarning, Message: "session calories outside expected range",
					MessageType: "session", Field: "total_calories",
				})
			}
		case typedef.MesgNumLap:
			l := mesgdef.NewLap(&m)
			if l.TotalElapsedTime != basetype.Uint32Invalid && l.TotalElapsedTimeScaled() > maxElapsedS {
				res.Issues = append(res.Issues, Issue{
					Severity: SeverityWarning, Message: "lap elapsed time exceeds 24 hours",
					MessageType: "lap", Field: "total_elapsed_time",
				})
			}
		case typedef.MesgNumActivity:
			a := mesgdef.NewActivity(&m)
			if a.Timestamp.IsZero() {
				res.Issues = append(res.Issues, requiredFieldError("activity", "timestamp"))
			}
		}
	}
}

func requiredFieldError(msgType, field string) Issue {
	return Issue{
		Severity:    SeverityError,
		Message:     fmt.Sprintf("%s missing required field: %s", msgType, field),
		MessageType: msgType,
		Field:       field,
	}
}

func (v *Validator) checkTimestamps(res *Result, msgs []proto.Message) {
	var any bool
	horizon := time.Now().Add(365 * 24 * time.Hour)
	var future bool
	for _, m := range msgs {
		for _, t := range messageTimestamps(&m) {
			if t.IsZero() {
				continue
			}
			any = true
			if t.After(horizon) {
				future = true
			}
		}
	}
	if !any && len(msgs) > 0 {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Message:  "file contains no timestamps",
		})
	}
	if future {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityWarning,
			Message:  "timestamp more than one year in the future",
		})
	}
}

func messageTimestamps(m *proto.Message) []time.Time {
	switch m.Num {
	case typedef.MesgNumFileId:
		return []time.Time{mesgdef.NewFileId(m).TimeCreated}
	case typedef.MesgNumRecord:
		return []time.Time{mesgdef.NewRecord(m).Timestamp}
	case typedef.MesgNumEvent:
		return []time.Time{mesgdef.NewEvent(m).Timestamp}
	case typedef.MesgNumLap:
		l := mesgdef.NewLap(m)
		return []time.Time{l.Timestamp, l.StartTime}
	case typedef.MesgNumSession:
		s := mesgdef.NewSession(m)
		return []time.Time{s.Timestamp, s.StartTime}
	case typedef.MesgNumActivity:
		return []time.Time{mesgdef.NewActivity(m).Timestamp}
	default:
		return nil
	}
}

// scoreCompatibility applies the Garmin Connect acceptance heuristics. The
// deductions were tuned against real upload rejections; keep them in sync
// with the issue checks above but do not fold the two together.
func (v *Validator) scoreCompatibility(res *Result, msgs []proto.Message) {
	score := 100

	for _, name := range requiredMessages {
		if res.MessageCounts[name] == 0 {
			score -= 30
		}
	}
	for _, name := range recommendedMessages {
		if res.MessageCounts[name] == 0 {
			score -= 10
		}
	}

	var hasPower, hasHR, hasManufacturer, hasProduct, hasSport bool
	var duration float64
	var firstRecord, lastRecord time.Time
	for _, m := range msgs {
		switch m.Num {
		case typedef.MesgNumRecord:
			rec := mesgdef.NewRecord(&m)
			if rec.Power != basetype.Uint16Invalid {
				hasPower = true
			}
			if rec.HeartRate != basetype.Uint8Invalid {
				hasHR = true
			}
			if !rec.Timestamp.IsZero() {
				if firstRecord.IsZero() {
					firstRecord = rec.Timestamp
				}
				lastRecord = rec.Timestamp
			}
		case typedef.MesgNumFileId:
			f := mesgdef.NewFileId(&m)
			if uint16(f.Manufacturer) != basetype.Uint16Invalid {
				hasManufacturer = true
			}
			if f.Product != basetype.Uint16Invalid {
				hasProduct = true
			}
		case typedef.MesgNumSession:
			s := mesgdef.NewSession(&m)
			if uint8(s.Sport) != basetype.Uint8Invalid {
				hasSport = true
			}
			if s.TotalElapsedTime != basetype.Uint32Invalid {
				duration = s.TotalElapsedTimeScaled()
			}
		}
	}
	if duration == 0 && !firstRecord.IsZero() {
		duration = lastRecord.Sub(firstRecord).Seconds()
	}

	if !hasPower && !hasHR {
		score -= 15
	}
	if !hasManufacturer {
		score -= 10
	}
	if !hasProduct {
		score -= 10
	}
	if !hasSport {
		score -= 15
	}
	if duration < 60 {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	res.CompatibilityScore = score
}
