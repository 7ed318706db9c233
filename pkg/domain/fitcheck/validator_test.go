package fitcheck

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"
)

var testStart = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func encode(t *testing.T, msgs []proto.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := encoder.New(&buf).Encode(&proto.FIT{Messages: msgs}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func fileIdMesg() proto.Message {
	return mesgdef.NewFileId(nil).
		SetType(typedef.FileActivity).
		SetManufacturer(typedef.ManufacturerDevelopment).
		SetProduct(1001).
		SetSerialNumber(123456789).
		SetTimeCreated(testStart).
		ToMesg(nil)
}

func recordMesg(offset int, power uint16) proto.Message {
	return mesgdef.NewRecord(nil).
		SetTimestamp(testStart.Add(time.Duration(offset) * time.Second)).
		SetPower(power).
		SetHeartRate(135).
		ToMesg(nil)
}

// completeActivity builds a file that should validate clean.
func completeActivity(t *testing.T) []byte {
	msgs := []proto.Message{
		fileIdMesg(),
		mesgdef.NewDeviceInfo(nil).
			SetTimestamp(testStart).
			SetManufacturer(typedef.ManufacturerDevelopment).
			SetProduct(1001).
			ToMesg(nil),
		mesgdef.NewEvent(nil).
			SetTimestamp(testStart).
			SetEvent(typedef.EventTimer).
			SetEventType(typedef.EventTypeStart).
			ToMesg(nil),
	}
	for i := 0; i < 90; i++ {
		msgs = append(msgs, recordMesg(i, 180))
	}
	stop := testStart.Add(89 * time.Second)
	msgs = append(msgs,
		mesgdef.NewEvent(nil).
			SetTimestamp(stop).
			SetEvent(typedef.EventTimer).
			SetEventType(typedef.EventTypeStop).
			ToMesg(nil),
		mesgdef.NewLap(nil).
			SetTimestamp(stop).
			SetStartTime(testStart).
			SetTotalElapsedTime(89000).
			SetTotalTimerTime(89000).
			SetSport(typedef.SportCycling).
			ToMesg(nil),
		mesgdef.NewSession(nil).
			SetTimestamp(stop).
			SetStartTime(testStart).
			SetTotalElapsedTime(89000).
			SetTotalTimerTime(89000).
			SetSport(typedef.SportCycling).
			ToMesg(nil),
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetTotalTimerTime(89000).
			SetNumSessions(1).
			SetType(typedef.ActivityManual).
			ToMesg(nil),
	)
	return encode(t, msgs)
}

func TestValidateCleanFile(t *testing.T) {
	res := New().ValidateBytes(completeActivity(t))
	if !res.IsValid {
		t.Fatalf("expected valid, errors: %+v", res.Errors())
	}
	if res.CompatibilityScore != 100 {
		t.Errorf("score = %d, want 100", res.CompatibilityScore)
	}
	if !res.IsCompatible {
		t.Error("expected compatible")
	}
	if res.MessageCounts["record"] != 90 {
		t.Errorf("record count = %d", res.MessageCounts["record"])
	}
}

func TestValidateSwappedRecordTimestamps(t *testing.T) {
	msgs := []proto.Message{
		fileIdMesg(),
		recordMesg(5, 180),
		recordMesg(2, 180), // goes backwards
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetNumSessions(1).
			ToMesg(nil),
	}
	res := New().ValidateBytes(encode(t, msgs))

	var found bool
	for _, w := range res.Warnings() {
		if strings.Contains(w.Message, "ascending order") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ascending-order warning, got %+v", res.Issues)
	}
}

func TestValidateMissingActivity(t *testing.T) {
	msgs := []proto.Message{
		fileIdMesg(),
		recordMesg(0, 180),
	}
	res := New().ValidateBytes(encode(t, msgs))

	if res.IsValid {
		t.Fatal("file without activity message must be invalid")
	}
	var found bool
	for _, e := range res.Errors() {
		if e.MessageType == "activity" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected missing-activity error, got %+v", res.Errors())
	}
}

func TestValidateCorruptFile(t *testing.T) {
	res := New().ValidateBytes([]byte("definitely not a FIT file"))
	if res.IsValid {
		t.Fatal("corrupt input must be invalid")
	}
	if len(res.Issues) != 1 || res.Issues[0].Severity != SeverityError {
		t.Errorf("expected a single parse error, got %+v", res.Issues)
	}
}

func TestValidateMissingFile(t *testing.T) {
	res := New().ValidateFile("/nonexistent/path.fit")
	if res.IsValid {
		t.Fatal("unreadable file must be invalid")
	}
}

func TestValidateFirstMessageNotFileId(t *testing.T) {
	msgs := []proto.Message{
		recordMesg(0, 180),
		fileIdMesg(),
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetNumSessions(1).
			ToMesg(nil),
	}
	res := New().ValidateBytes(encode(t, msgs))

	var found bool
	for _, e := range res.Errors() {
		if strings.Contains(e.Message, "first message") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected first-message error, got %+v", res.Errors())
	}
}

func TestValidateRangeWarnings(t *testing.T) {
	msgs := []proto.Message{
		fileIdMesg(),
		mesgdef.NewRecord(nil).
			SetTimestamp(testStart).
			SetPower(2500). // beyond 2000W
			ToMesg(nil),
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetNumSessions(1).
			ToMesg(nil),
	}
	res := New().ValidateBytes(encode(t, msgs))

	var found bool
	for _, w := range res.Warnings() {
		if w.Field == "power" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected power range warning, got %+v", res.Issues)
	}
}

func TestValidateShortActivityWarning(t *testing.T) {
	msgs := []proto.Message{
		fileIdMesg(),
		recordMesg(0, 180),
		recordMesg(1, 180),
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetNumSessions(1).
			ToMesg(nil),
	}
	res := New().ValidateBytes(encode(t, msgs))

	var found bool
	for _, w := range res.Warnings() {
		if strings.Contains(w.Message, "very short activity") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected short-activity warning, got %+v", res.Warnings())
	}
}

func TestCompatibilityScoreDeductions(t *testing.T) {
	// FileId + Activity only: all 5 recommended types missing (-50), no
	// power/HR (-15), no sport (-15), duration under a minute (-20).
	msgs := []proto.Message{
		fileIdMesg(),
		mesgdef.NewActivity(nil).
			SetTimestamp(testStart).
			SetNumSessions(1).
			ToMesg(nil),
	}
	res := New().ValidateBytes(encode(t, msgs))

	if res.CompatibilityScore != 0 {
		t.Errorf("score = %d, want 0", res.CompatibilityScore)
	}
	if res.IsCompatible {
		t.Error("expected incompatible")
	}
	// Manufacturer and product are present, so the file is structurally
	// valid despite the terrible score.
	if !res.IsValid {
		t.Errorf("completeness warnings must not be errors: %+v", res.Errors())
	}
}

func TestWriteReport(t *testing.T) {
	res := New().ValidateBytes(completeActivity(t))
	var buf bytes.Buffer
	res.WriteReport(&buf)
	out := buf.String()
	if !strings.Contains(out, "Compatibility score:") {
		t.Errorf("report missing score line:\n%s", out)
	}
	if !strings.Contains(out, "record") {
		t.Errorf("report missing message counts:\n%s", out)
	}
}
