package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"navit-daemon/internal/ahrs"
	"navit-daemon/internal/calibration"
	"navit-daemon/internal/config"
	"navit-daemon/internal/fusion"
	"navit-daemon/internal/gps"
	"navit-daemon/internal/imu"
	"navit-daemon/internal/nmea"
	"navit-daemon/internal/remote"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var startCal calibration.Calibration
	if cfg.CalibrationFile != "" {
		startCal = calibration.Load(cfg.CalibrationFile)
	}
	calMgr := calibration.NewManager(startCal, cfg.IMURateHz, cfg.CalibrationFile)

	ahrsFilter, err := ahrs.New(1.0/cfg.IMURateHz, cfg.FusionGain)
	if err != nil {
		log.Fatalf("ahrs: %v", err)
	}

	imuSource, gpsSource, closeSources, err := buildSources(ctx, cfg)
	if err != nil {
		log.Fatalf("sources: %v", err)
	}
	defer closeSources()

	broadcast := nmea.NewBroadcastServer(net.JoinHostPort(cfg.NMEAHost, fmt.Sprintf("%d", cfg.NMEAPort)))
	if err := broadcast.Start(); err != nil {
		log.Fatalf("nmea broadcast listen: %v", err)
	}
	defer broadcast.Close()

	if cfg.CalibrationPort != 0 {
		calServer := calibration.NewServer(net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", cfg.CalibrationPort)), calMgr)
		if err := calServer.Start(); err != nil {
			log.Fatalf("calibration server listen: %v", err)
		}
		defer calServer.Close()
		log.Printf("navit-daemon: calibration control on port %d", cfg.CalibrationPort)
	}

	engine := &fusion.Engine{
		IMUSource:    imuSource,
		GPSSource:    gpsSource,
		Calibration:  calMgr,
		AHRS:         ahrsFilter,
		Broadcast:    broadcast,
		IMURateHz:    cfg.IMURateHz,
		OutputRateHz: cfg.OutputRateHz,
	}

	log.Printf("navit-daemon starting source=%s nmea=%s:%d imu-rate=%.1fHz output-rate=%.1fHz",
		cfg.Source, cfg.NMEAHost, cfg.NMEAPort, cfg.IMURateHz, cfg.OutputRateHz)

	go engine.Run(ctx)

	<-ctx.Done()
	log.Printf("navit-daemon stopping")
}

// buildSources resolves the configured source into concrete imu.Source and
// gps.Source implementations, starting any background servers/clients they
// need, and returns a cleanup function that closes everything it started.
func buildSources(ctx context.Context, cfg config.Config) (imu.Source, gps.Source, func(), error) {
	switch cfg.Source {
	case config.SourceRemote:
		return startRemote(ctx, cfg)
	case config.SourceLinux:
		return startLinux(ctx, cfg)
	case config.SourceAuto:
		if imuSrc, gpsSrc, closer, err := startLinux(ctx, cfg); err == nil {
			return imuSrc, gpsSrc, closer, nil
		}
		log.Printf("navit-daemon: local IMU/GPS unavailable, falling back to remote ingest")
		return startRemote(ctx, cfg)
	default:
		return nil, nil, func() {}, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func startLinux(ctx context.Context, cfg config.Config) (imu.Source, gps.Source, func(), error) {
	reader, err := imu.NewIIOReader(cfg.AccelPath, cfg.GyroPath, cfg.MagnetometerPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("local IMU unavailable: %w", err)
	}
	gpsd := gps.NewGPSD(net.JoinHostPort(cfg.GpsdHost, fmt.Sprintf("%d", cfg.GpsdPort)))
	if err := gpsd.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("gpsd client: %w", err)
	}
	return imu.NewLocalSource(reader), gpsd, func() { gpsd.Close() }, nil
}

func startRemote(ctx context.Context, cfg config.Config) (imu.Source, gps.Source, func(), error) {
	rs := remote.NewServer(net.JoinHostPort(cfg.RemoteHost, fmt.Sprintf("%d", cfg.RemotePort)))
	if err := rs.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("remote ingest listen: %w", err)
	}
	return rs.IMUSource(), rs.GPSSource(), func() { rs.Close() }, nil
}
