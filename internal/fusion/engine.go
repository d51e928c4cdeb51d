// Package fusion runs the IMU/GPS/emit loops that turn inertial samples and
// GPS fixes into a continuous stream of NMEA sentences.
package fusion

import (
	"context"
	"sync"
	"time"

	"navit-daemon/internal/ahrs"
	"navit-daemon/internal/calibration"
	"navit-daemon/internal/gps"
	"navit-daemon/internal/imu"
	"navit-daemon/internal/nmea"
)

// headingSpeedThresholdMS is the GPS ground speed above which GPS track is
// trusted over the AHRS yaw estimate.
const headingSpeedThresholdMS = 0.5

// gpsPollInterval is how often the emit-independent GPS loop checks the
// GPS source for a fresh fix. The underlying source (gpsd client or remote
// ingest server) already updates asynchronously in its own goroutine; this
// loop just publishes whatever it currently holds.
const gpsPollInterval = 100 * time.Millisecond

// Engine owns the AHRS state and last-known fix, and drives the three
// cooperating loops described by the fusion design: IMU updates at
// imuRateHz, GPS polling, and NMEA emission at outputRateHz.
type Engine struct {
	IMUSource    imu.Source
	GPSSource    gps.Source
	Calibration  *calibration.Manager
	AHRS         ahrs.Filter
	Broadcast    *nmea.BroadcastServer
	IMURateHz    float64
	OutputRateHz float64

	mu      sync.RWMutex
	lastFix gps.Fix
	haveFix bool
}

// Run starts all three loops and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.runIMULoop(ctx) }()
	go func() { defer wg.Done(); e.runGPSLoop(ctx) }()
	go func() { defer wg.Done(); e.runEmitLoop(ctx) }()
	wg.Wait()
}

func (e *Engine) runIMULoop(ctx context.Context) {
	period := time.Duration(float64(time.Second) / e.IMURateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	dt := 1.0 / e.IMURateHz
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, ok := e.IMUSource.Read()
			if !ok {
				continue
			}
			calibrated := e.Calibration.Apply(sample)
			e.AHRS.Update(calibrated.Gyro, calibrated.Accel, calibrated.Magnetometer, calibrated.HasMag, dt)
		}
	}
}

func (e *Engine) runGPSLoop(ctx context.Context) {
	ticker := time.NewTicker(gpsPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fix, ok := e.GPSSource.Read()
			if !ok || !fix.Valid {
				continue
			}
			e.mu.Lock()
			e.lastFix = fix
			e.haveFix = true
			e.mu.Unlock()
		}
	}
}

func (e *Engine) runEmitLoop(ctx context.Context) {
	period := time.Duration(float64(time.Second) / e.OutputRateHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.emit()
		}
	}
}

func (e *Engine) emit() {
	e.mu.RLock()
	fix := e.lastFix
	haveFix := e.haveFix
	e.mu.RUnlock()

	if !haveFix || !fix.Valid {
		return
	}

	heading := e.selectHeading(fix)
	gga := nmea.BuildGGA(fix)
	rmc := nmea.BuildRMC(fix, heading)
	e.Broadcast.Send(gga)
	e.Broadcast.Send(rmc)
}

// selectHeading implements the heading-selection policy: trust GPS track
// when moving fast enough for it to be reliable, otherwise prefer AHRS yaw
// once initialized, falling back to GPS track (possibly zero) otherwise.
func (e *Engine) selectHeading(fix gps.Fix) float64 {
	if fix.SpeedMS > headingSpeedThresholdMS {
		return fix.TrackDeg
	}
	if e.AHRS.Initialized() {
		return e.AHRS.YawDeg()
	}
	return fix.TrackDeg
}

// LastFix returns the most recently observed fix, for diagnostics.
func (e *Engine) LastFix() (gps.Fix, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFix, e.haveFix
}
