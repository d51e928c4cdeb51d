// Package ahrs fuses gyroscope, accelerometer, and optional magnetometer
// samples into an orientation estimate, exposed as a heading in degrees.
package ahrs

import (
	"errors"
	"math"
)

// Filter is the contract any backing AHRS integrator must satisfy. The
// only implementation wired by default is Mahony; the interface exists so
// a different integrator can be substituted without touching callers.
type Filter interface {
	// Update advances the filter by one sample. gyroDegPS is deg/s,
	// accelMPS2 is m/s^2, magUT is microtesla and ignored when hasMag is
	// false. dtS is the elapsed time in seconds since the previous call.
	Update(gyroDegPS, accelMPS2, magUT [3]float64, hasMag bool, dtS float64)

	// Initialized reports whether Update has succeeded at least once.
	Initialized() bool

	// YawDeg returns the current yaw in [0, 360). Undefined before
	// Initialized returns true.
	YawDeg() float64
}

// New constructs the default backing Filter implementation. samplePeriodS
// is the nominal interval between Update calls (informational; the actual
// dt passed to Update governs integration); gain is the Mahony
// proportional feedback gain. An error is returned rather than a nil
// Filter so a missing backend fails loudly at construction, not silently
// later.
func New(samplePeriodS, gain float64) (Filter, error) {
	if samplePeriodS <= 0 {
		return nil, errors.New("ahrs: sample period must be positive")
	}
	return NewMahony(gain), nil
}

// normalizeDeg wraps deg into [0, 360).
func normalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360.0)
	if d < 0 {
		d += 360.0
	}
	return d
}
