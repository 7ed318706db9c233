package device

import (
	"math"
	"testing"
)

func TestIdentifyRogueEchoBike(t *testing.T) {
	p := Identify("bike", "Rogue Echo Bike")
	if p.ProductID != 1001 {
		t.Errorf("ProductID = %d, want 1001", p.ProductID)
	}
	if p.ManufacturerID != 65534 {
		t.Errorf("ManufacturerID = %d, want 65534", p.ManufacturerID)
	}
	if p.Sport != SportCycling || p.SubSport != SubSportIndoorCycling {
		t.Errorf("sport = %d/%d", p.Sport, p.SubSport)
	}
}

func TestIdentifyRogueEchoRower(t *testing.T) {
	p := Identify("rower", "ROGUE ECHO ROWER V2")
	if p.ProductID != 1002 {
		t.Errorf("ProductID = %d, want 1002", p.ProductID)
	}
	if p.DeviceType != TypeRower {
		t.Errorf("DeviceType = %s", p.DeviceType)
	}
}

func TestIdentifyGenericFallbacks(t *testing.T) {
	if p := Identify("rower", ""); p.ProductID != 1004 {
		t.Errorf("rower without device name: ProductID = %d, want 1004", p.ProductID)
	}
	if p := Identify("cycling", ""); p.ProductID != 1003 {
		t.Errorf("cycling: ProductID = %d, want 1003", p.ProductID)
	}
	// Unknown workout types fall back to the generic bike.
	if p := Identify("elliptical", ""); p.ProductID != 1003 {
		t.Errorf("unknown type: ProductID = %d, want 1003", p.ProductID)
	}
}

func TestIdentifyDeviceNameBeatsWorkoutType(t *testing.T) {
	p := Identify("bike", "Echo Row Machine")
	if p.ProductID != 1002 {
		t.Errorf("device name should win: ProductID = %d, want 1002", p.ProductID)
	}
}

func TestWorkoutIntensityPowerBased(t *testing.T) {
	// 200W at 250 FTP: 0.8/1.5 of the capped scale.
	got := WorkoutIntensity(200, 0, 0, 0, 250, 0)
	want := (200.0 / 250.0) / 1.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWorkoutIntensityCapAt150PercentFTP(t *testing.T) {
	got := WorkoutIntensity(600, 0, 0, 0, 200, 0)
	if got != 1.0 {
		t.Errorf("intensity above 150%% FTP must cap at 1.0, got %v", got)
	}
}

func TestWorkoutIntensityHeartRateBased(t *testing.T) {
	// HR 150 with max 180: (150-60)/(180-60) = 0.75.
	got := WorkoutIntensity(0, 0, 150, 0, 0, 180)
	if math.Abs(got-0.75) > 1e-9 {
		t.Errorf("got %v, want 0.75", got)
	}
}

func TestWorkoutIntensityAveragesPowerAndHR(t *testing.T) {
	power := (200.0 / 250.0) / 1.5
	hr := 0.75
	got := WorkoutIntensity(200, 0, 150, 0, 250, 180)
	want := (power + hr) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestWorkoutIntensityFallbackChain(t *testing.T) {
	// No thresholds: avg/max power ratio scaled by 1.2, capped at 1.0.
	got := WorkoutIntensity(100, 200, 0, 0, 0, 0)
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("fallback: got %v, want 0.6", got)
	}
	if got := WorkoutIntensity(190, 200, 0, 0, 0, 0); got != 1.0 {
		t.Errorf("fallback cap: got %v, want 1.0", got)
	}
	// Nothing at all: moderate default.
	if got := WorkoutIntensity(0, 0, 0, 0, 0, 0); got != 0.6 {
		t.Errorf("default: got %v, want 0.6", got)
	}
}

func TestTrainingLoadMultiplier(t *testing.T) {
	bike := registry["generic_bike"]
	rower := registry["generic_rower"]

	// base x (0.5 + intensity x 1.5)
	if got := TrainingLoadMultiplier(bike, 1.0); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("bike full intensity: got %v, want 2.0", got)
	}
	if got := TrainingLoadMultiplier(bike, 0.0); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("bike zero intensity: got %v, want 0.5", got)
	}
	if got := TrainingLoadMultiplier(rower, 0.5); math.Abs(got-1.2*1.25) > 1e-9 {
		t.Errorf("rower moderate: got %v, want 1.5", got)
	}
	unknown := Profile{DeviceType: TypeUnknown}
	if got := TrainingLoadMultiplier(unknown, 0.5); math.Abs(got-0.8*1.25) > 1e-9 {
		t.Errorf("unknown: got %v, want 1.0", got)
	}
}
