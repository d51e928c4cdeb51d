// Package config assembles daemon configuration from CLI flags, optionally
// layered over an on-disk YAML file of defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source selects where IMU and GPS samples come from.
type Source string

const (
	SourceLinux  Source = "linux"
	SourceRemote Source = "remote"
	SourceAuto   Source = "auto"
)

// Config holds every runtime-tunable value the fusion daemon needs.
type Config struct {
	Source Source `yaml:"source"`

	GpsdHost string `yaml:"gpsd_host"`
	GpsdPort int    `yaml:"gpsd_port"`

	RemoteHost string `yaml:"remote_host"`
	RemotePort int    `yaml:"remote_port"`

	NMEAHost string `yaml:"nmea_host"`
	NMEAPort int     `yaml:"nmea_port"`

	IMURateHz    float64 `yaml:"imu_rate_hz"`
	OutputRateHz float64 `yaml:"output_rate_hz"`
	FusionGain   float64 `yaml:"fusion_gain"`

	AccelPath        string `yaml:"accel_path"`
	GyroPath         string `yaml:"gyro_path"`
	MagnetometerPath string `yaml:"magnetometer_path"`

	CalibrationFile string `yaml:"calibration_file"`
	CalibrationPort int    `yaml:"calibration_port"`

	Debug bool `yaml:"debug"`
}

func defaults() Config {
	return Config{
		Source:       SourceLinux,
		GpsdHost:     "127.0.0.1",
		GpsdPort:     2947,
		RemoteHost:   "0.0.0.0",
		RemotePort:   2949,
		NMEAHost:     "127.0.0.1",
		NMEAPort:     2948,
		IMURateHz:    100.0,
		OutputRateHz: 5.0,
		FusionGain:   0.5,
	}
}

// Parse registers flags against fs and parses args. If a -config file is
// named in args, it is unmarshalled first and
// becomes the baseline that flag defaults are drawn from, so any flag the
// caller actually passes on the command line still wins.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaults()
	if path := scanConfigFlag(args); path != "" {
		if err := loadYAMLOverDefaults(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	var discardPath string
	fs.StringVar(&discardPath, "config", "", "optional path to a YAML config file")
	fs.StringVar((*string)(&cfg.Source), "source", string(cfg.Source), "imu/gps source: linux, remote, or auto")
	fs.StringVar(&cfg.GpsdHost, "gpsd-host", cfg.GpsdHost, "gpsd host")
	fs.IntVar(&cfg.GpsdPort, "gpsd-port", cfg.GpsdPort, "gpsd port")
	fs.StringVar(&cfg.RemoteHost, "remote-host", cfg.RemoteHost, "remote ingest bind host")
	fs.IntVar(&cfg.RemotePort, "remote-port", cfg.RemotePort, "remote ingest bind port")
	fs.StringVar(&cfg.NMEAHost, "nmea-host", cfg.NMEAHost, "NMEA broadcast bind host")
	fs.IntVar(&cfg.NMEAPort, "nmea-port", cfg.NMEAPort, "NMEA broadcast bind port")
	fs.Float64Var(&cfg.IMURateHz, "imu-rate", cfg.IMURateHz, "IMU sample rate in Hz")
	fs.Float64Var(&cfg.OutputRateHz, "output-rate", cfg.OutputRateHz, "NMEA emit rate in Hz")
	fs.Float64Var(&cfg.FusionGain, "fusion-gain", cfg.FusionGain, "AHRS proportional gain")
	fs.StringVar(&cfg.AccelPath, "accel-path", cfg.AccelPath, "sysfs IIO accelerometer device path override")
	fs.StringVar(&cfg.GyroPath, "gyro-path", cfg.GyroPath, "sysfs IIO gyroscope device path override")
	fs.StringVar(&cfg.MagnetometerPath, "magnetometer-path", cfg.MagnetometerPath, "sysfs IIO magnetometer device path override")
	fs.StringVar(&cfg.CalibrationFile, "calibration-file", cfg.CalibrationFile, "path to persisted calibration JSON")
	fs.IntVar(&cfg.CalibrationPort, "calibration-port", cfg.CalibrationPort, "calibration control port (0 disables)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// scanConfigFlag looks for -config/--config in args without registering it
// on a flag.FlagSet, so the YAML file (if any) can be loaded before the
// real flag defaults are established.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

func loadYAMLOverDefaults(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

func validate(cfg Config) error {
	switch cfg.Source {
	case SourceLinux, SourceRemote, SourceAuto:
	default:
		return fmt.Errorf("invalid source %q: must be linux, remote, or auto", cfg.Source)
	}
	if strings.TrimSpace(cfg.GpsdHost) == "" {
		return fmt.Errorf("gpsd-host must not be empty")
	}
	if strings.TrimSpace(cfg.NMEAHost) == "" {
		return fmt.Errorf("nmea-host must not be empty")
	}
	if cfg.IMURateHz <= 0 {
		return fmt.Errorf("imu-rate must be > 0")
	}
	if cfg.OutputRateHz <= 0 {
		return fmt.Errorf("output-rate must be > 0")
	}
	return nil
}
