// Package calibration holds static sensor bias/offset correction and the
// online gyro-bias estimation run, with atomic file persistence and a
// line-oriented JSON control server.
package calibration

import (
	"math"

	"navit-daemon/internal/imu"
)

// Calibration holds the static bias/offset correction applied to every raw
// inertial sample.
type Calibration struct {
	GyroBias     imu.Vec3 `json:"gyro_bias"`
	AccelOffset  imu.Vec3 `json:"accel_offset"`
	MagBias      imu.Vec3 `json:"magnetometer_bias"`
}

// Apply subtracts the calibration from a raw sample. Magnetometer bias is
// only applied when the sample actually carries a magnetometer reading.
func (c Calibration) Apply(s imu.Sample) imu.Sample {
	out := s
	out.Accel = s.Accel.Sub(c.AccelOffset)
	out.Gyro = s.Gyro.Sub(c.GyroBias)
	if s.HasMag {
		out.Magnetometer = s.Magnetometer.Sub(c.MagBias)
	}
	return out
}

// RunStatus is the state of an online gyro-bias calibration run.
type RunStatus string

const (
	StatusIdle       RunStatus = "idle"
	StatusCollecting RunStatus = "collecting"
)

// Run tracks an in-progress gyro-bias estimation.
type Run struct {
	Status         RunStatus
	SamplesNeeded  int
	SamplesTaken   int
	accumulator    imu.Vec3
}

// SamplesNeededFor computes the sample count for a calibration run of the
// given duration at the given IMU sample rate. seconds is clamped to
// [0.5, 60]; the result is always at least 1.
func SamplesNeededFor(seconds, imuRateHz float64) int {
	if seconds < 0.5 {
		seconds = 0.5
	}
	if seconds > 60 {
		seconds = 60
	}
	if imuRateHz <= 0 {
		return 1
	}
	n := int(math.Round(seconds * imuRateHz))
	if n < 1 {
		n = 1
	}
	return n
}
