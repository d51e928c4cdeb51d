package calibration

import (
	"fmt"
	"sync"

	"navit-daemon/internal/imu"
)

// Manager owns the live Calibration and any in-progress gyro-bias Run, and
// applies Calibration to raw IMU samples on behalf of a wrapped source.
type Manager struct {
	mu        sync.RWMutex
	cal       Calibration
	run       Run
	imuRateHz float64
	savePath  string
}

// NewManager constructs a Manager seeded with cal (loaded at startup, or the
// zero value), the configured IMU sample rate, and an optional persistence
// path (empty disables saving).
func NewManager(cal Calibration, imuRateHz float64, savePath string) *Manager {
	return &Manager{
		cal:       cal,
		run:       Run{Status: StatusIdle},
		imuRateHz: imuRateHz,
		savePath:  savePath,
	}
}

// Get returns the current calibration and run state.
func (m *Manager) Get() (Calibration, Run) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cal, m.run
}

// Set replaces any of the three calibration fields that are non-nil,
// leaving the others untouched, and persists if a save path is configured.
func (m *Manager) Set(gyroBias, accelOffset, magBias *imu.Vec3) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gyroBias != nil {
		m.cal.GyroBias = *gyroBias
	}
	if accelOffset != nil {
		m.cal.AccelOffset = *accelOffset
	}
	if magBias != nil {
		m.cal.MagBias = *magBias
	}
	return m.saveLocked()
}

// StartGyroRun begins an online gyro-bias estimation over the given
// duration in seconds (clamped to [0.5, 60]). Returns the number of samples
// the run will collect.
func (m *Manager) StartGyroRun(seconds float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := SamplesNeededFor(seconds, m.imuRateHz)
	m.run = Run{Status: StatusCollecting, SamplesNeeded: n}
	return n
}

// AddGyroSample feeds one raw (uncalibrated) gyro reading into an active
// run. If this sample completes the run, the resulting mean becomes the new
// gyro bias, the run returns to idle, and the calibration is persisted if
// configured.
func (m *Manager) AddGyroSample(gyro imu.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run.Status != StatusCollecting {
		return
	}
	m.run.accumulator = m.run.accumulator.Add(gyro)
	m.run.SamplesTaken++
	if m.run.SamplesTaken >= m.run.SamplesNeeded {
		m.cal.GyroBias = m.run.accumulator.Scale(1.0 / float64(m.run.SamplesTaken))
		m.run = Run{Status: StatusIdle}
		_ = m.saveLocked()
	}
}

// Apply applies the current calibration to s, also feeding an active gyro
// run with the raw gyro value.
func (m *Manager) Apply(s imu.Sample) imu.Sample {
	m.mu.RLock()
	cal := m.cal
	collecting := m.run.Status == StatusCollecting
	m.mu.RUnlock()

	if collecting {
		m.AddGyroSample(s.Gyro)
	}
	return cal.Apply(s)
}

func (m *Manager) saveLocked() error {
	if m.savePath == "" {
		return nil
	}
	if err := Save(m.savePath, m.cal); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}
