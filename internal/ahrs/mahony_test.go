package ahrs

import (
	"math"
	"testing"
)

func TestNewFailsWithoutSamplePeriod(t *testing.T) {
	if _, err := New(0, 0.5); err == nil {
		t.Fatalf("expected error for non-positive sample period")
	}
}

func TestNotInitializedBeforeFirstUpdate(t *testing.T) {
	f, err := New(0.01, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Initialized() {
		t.Fatalf("filter should not be initialized before any update")
	}
}

func TestInitializedAfterFirstUpdate(t *testing.T) {
	f, _ := New(0.01, 0.5)
	f.Update([3]float64{0, 0, 0}, [3]float64{0, 0, 9.8}, [3]float64{}, false, 0.01)
	if !f.Initialized() {
		t.Fatalf("expected initialized after update")
	}
}

func TestYawDegAlwaysInRange(t *testing.T) {
	f, _ := New(0.01, 0.5)
	inputs := [][2][3]float64{
		{{0, 0, 0}, {0, 0, 9.8}},
		{{1000, -1000, 500}, {0, 0, 0}},
		{{0.001, 0.001, 0.001}, {1, 1, 1}},
		{{-50, 50, -50}, {9.8, 0, 0}},
	}
	for _, in := range inputs {
		f.Update(in[0], in[1], [3]float64{}, false, 0.01)
		yaw := f.YawDeg()
		if yaw < 0 || yaw >= 360 {
			t.Fatalf("yaw out of range: %v", yaw)
		}
	}
}

func TestUpdateToleratesVerySmallAndLargeDt(t *testing.T) {
	f, _ := New(0.01, 0.5)
	f.Update([3]float64{1, 2, 3}, [3]float64{0, 0, 9.8}, [3]float64{}, false, 1e-9)
	f.Update([3]float64{1, 2, 3}, [3]float64{0, 0, 9.8}, [3]float64{}, false, 1.0)
	if math.IsNaN(f.YawDeg()) {
		t.Fatalf("yaw became NaN")
	}
}

func TestUpdateWithMagnetometer(t *testing.T) {
	f, _ := New(0.01, 0.5)
	f.Update([3]float64{0, 0, 0}, [3]float64{0, 0, 9.8}, [3]float64{30, 0, 40}, true, 0.01)
	if !f.Initialized() {
		t.Fatalf("expected initialized after 9DOF update")
	}
}

func TestZeroAccelDoesNotPanic(t *testing.T) {
	f, _ := New(0.01, 0.5)
	f.Update([3]float64{1, 1, 1}, [3]float64{0, 0, 0}, [3]float64{}, false, 0.01)
	if !f.Initialized() {
		t.Fatalf("expected initialized even with degenerate accel")
	}
}
