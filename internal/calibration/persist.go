package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads a Calibration from path. A missing file or malformed JSON
// yields the zero-value Calibration rather than an error, matching the
// "never crash on a bad calibration file" requirement; any individually
// missing field within a present file also defaults to zero.
func Load(path string) Calibration {
	var cal Calibration
	b, err := os.ReadFile(path)
	if err != nil {
		return cal
	}
	_ = json.Unmarshal(b, &cal)
	return cal
}

// Save writes cal to path atomically: the new content is written to a
// temporary file in the same directory and then renamed over path, so a
// crash mid-write never corrupts the previously saved calibration.
func Save(path string, cal Calibration) error {
	b, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".calibration-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
