package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"navit-daemon/internal/imu"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")
	cal := Calibration{
		GyroBias:    imu.Vec3{0.1, 0.2, 0.3},
		AccelOffset: imu.Vec3{1, 2, 3},
		MagBias:     imu.Vec3{4, 5, 6},
	}
	if err := Save(path, cal); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got := Load(path)
	if got != cal {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cal)
	}
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if got != (Calibration{}) {
		t.Fatalf("expected zero calibration, got %+v", got)
	}
}

func TestLoadMalformedFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got := Load(path)
	if got != (Calibration{}) {
		t.Fatalf("expected zero calibration, got %+v", got)
	}
}

func TestSaveDoesNotLeaveTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")
	if err := Save(path, Calibration{}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "calibration.json" {
		t.Fatalf("expected only the final file, got %+v", entries)
	}
}
