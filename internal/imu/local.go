package imu

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const iioBase = "/sys/bus/iio/devices"

// gyroRadiansThreshold is the heuristic below which a gyro scale factor is
// assumed to express radians/s rather than degrees/s.
const gyroRadiansThreshold = 0.01

const radToDeg = 57.29577951308232

// axisSet holds the per-axis scale and offset loaded from one IIO device
// directory for one channel kind ("accel", "anglvel", "magn").
type axisSet struct {
	scale  [3]float64
	offset [3]float64
}

func loadAxisSet(devicePath, prefix string) axisSet {
	a := axisSet{scale: [3]float64{1, 1, 1}}
	if shared, ok := readFloat(filepath.Join(devicePath, fmt.Sprintf("in_%s_scale", prefix))); ok {
		a.scale = [3]float64{shared, shared, shared}
	}
	axes := [3]string{"x", "y", "z"}
	for i, ax := range axes {
		if v, ok := readFloat(filepath.Join(devicePath, fmt.Sprintf("in_%s_%s_scale", prefix, ax))); ok {
			a.scale[i] = v
		}
		if v, ok := readFloat(filepath.Join(devicePath, fmt.Sprintf("in_%s_%s_offset", prefix, ax))); ok {
			a.offset[i] = v
		}
	}
	return a
}

func readFloat(path string) (float64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readRaw(devicePath, prefix, axis string) (float64, bool) {
	return readFloat(filepath.Join(devicePath, fmt.Sprintf("in_%s_%s_raw", prefix, axis)))
}

func hasChannels(devicePath, prefix string) bool {
	for _, ax := range [3]string{"x", "y", "z"} {
		if _, err := os.Stat(filepath.Join(devicePath, fmt.Sprintf("in_%s_%s_raw", prefix, ax))); err != nil {
			return false
		}
	}
	return true
}

// discoverDevices lists iio:deviceN directories under iioBase, sorted by
// name for deterministic selection.
func discoverDevices() []string {
	entries, err := os.ReadDir(iioBase)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "iio:device") {
			out = append(out, filepath.Join(iioBase, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

func findDevice(explicit, prefix string) string {
	if explicit != "" {
		if hasChannels(explicit, prefix) {
			return explicit
		}
		return ""
	}
	for _, d := range discoverDevices() {
		if hasChannels(d, prefix) {
			return d
		}
	}
	return ""
}

// IIOReader reads accelerometer, gyroscope, and optional magnetometer
// channels directly from the kernel's Industrial I/O sysfs tree.
type IIOReader struct {
	accelPath string
	gyroPath  string
	magPath   string

	accel axisSet
	gyro  axisSet
	mag   axisSet
	hasMag bool
}

// NewIIOReader resolves accel/gyro/magnetometer device paths, preferring any
// explicit override, falling back to sysfs discovery, and loading each
// channel's scale/offset. Accel and gyro are required; an error is returned
// if either cannot be located. Magnetometer is optional.
func NewIIOReader(accelPathOverride, gyroPathOverride, magPathOverride string) (*IIOReader, error) {
	accelPath := findDevice(accelPathOverride, "accel")
	if accelPath == "" {
		return nil, fmt.Errorf("no accelerometer IIO device found")
	}
	gyroPath := findDevice(gyroPathOverride, "anglvel")
	if gyroPath == "" {
		// A combo IMU chip may expose gyro channels on the accel device.
		if hasChannels(accelPath, "anglvel") {
			gyroPath = accelPath
		} else {
			return nil, fmt.Errorf("no gyroscope IIO device found")
		}
	}
	magPath := findDevice(magPathOverride, "magn")
	if magPath == "" && hasChannels(accelPath, "magn") {
		magPath = accelPath
	}

	r := &IIOReader{
		accelPath: accelPath,
		gyroPath:  gyroPath,
		magPath:   magPath,
		accel:     loadAxisSet(accelPath, "accel"),
		gyro:      loadAxisSet(gyroPath, "anglvel"),
	}
	if magPath != "" {
		r.mag = loadAxisSet(magPath, "magn")
		r.hasMag = true
	}
	return r, nil
}

func (r *IIOReader) readAxes(devicePath, prefix string, a axisSet) (Vec3, bool) {
	var v Vec3
	for i, ax := range [3]string{"x", "y", "z"} {
		raw, ok := readRaw(devicePath, prefix, ax)
		if !ok {
			return Vec3{}, false
		}
		v[i] = (raw + a.offset[i]) * a.scale[i]
	}
	return v, true
}

// ReadAccel returns the current accelerometer reading in m/s^2.
func (r *IIOReader) ReadAccel() (Vec3, bool) {
	return r.readAxes(r.accelPath, "accel", r.accel)
}

// ReadGyro returns the current gyroscope reading in deg/s, converting from
// rad/s when the device's scale factor indicates a radian-scaled channel.
func (r *IIOReader) ReadGyro() (Vec3, bool) {
	v, ok := r.readAxes(r.gyroPath, "anglvel", r.gyro)
	if !ok {
		return Vec3{}, false
	}
	maxScale := r.gyro.scale[0]
	for _, s := range r.gyro.scale {
		if s > maxScale {
			maxScale = s
		}
	}
	if maxScale < gyroRadiansThreshold {
		v = v.Scale(radToDeg)
	}
	return v, true
}

// ReadMagnetometer returns the current magnetometer reading in microtesla,
// or ok=false if no magnetometer device was located.
func (r *IIOReader) ReadMagnetometer() (Vec3, bool) {
	if !r.hasMag {
		return Vec3{}, false
	}
	return r.readAxes(r.magPath, "magn", r.mag)
}

// LocalSource reads a Sample directly from an IIOReader on each call.
type LocalSource struct {
	reader *IIOReader
}

// NewLocalSource wraps reader as a Source.
func NewLocalSource(reader *IIOReader) *LocalSource {
	return &LocalSource{reader: reader}
}

// Read implements Source.
func (s *LocalSource) Read() (Sample, bool) {
	accel, ok := s.reader.ReadAccel()
	if !ok {
		return Sample{}, false
	}
	gyro, ok := s.reader.ReadGyro()
	if !ok {
		return Sample{}, false
	}
	out := Sample{Accel: accel, Gyro: gyro}
	if mag, ok := s.reader.ReadMagnetometer(); ok {
		out.Magnetometer = mag
		out.HasMag = true
	}
	return out, true
}
