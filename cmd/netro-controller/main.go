package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/api"
	"github.com/thatsimonsguy/netro-controller/internal/config"
	"github.com/thatsimonsguy/netro-controller/internal/coordinator"
	"github.com/thatsimonsguy/netro-controller/internal/datadog"
	"github.com/thatsimonsguy/netro-controller/internal/env"
	"github.com/thatsimonsguy/netro-controller/internal/history"
	"github.com/thatsimonsguy/netro-controller/internal/logging"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
	"github.com/thatsimonsguy/netro-controller/internal/runner"
	"github.com/thatsimonsguy/netro-controller/internal/slowdown"
	"github.com/thatsimonsguy/netro-controller/internal/weather"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg

	log.Info().
		Int("controllers", len(cfg.Controllers)).
		Int("sensors", len(cfg.Sensors)).
		Str("history_file", cfg.HistoryFile).
		Msg("Starting Netro controller")

	datadog.InitMetrics()

	windows, err := slowdown.Prepare(cfg.SlowdownFactors)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid slowdown windows")
	}

	hist, err := history.Open(cfg.HistoryFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer hist.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := runner.New(hist)
	server := api.NewServer(run, hist)

	var reporter *weather.Reporter
	if cfg.Weather.Enabled {
		fetcher := weather.NewFetcher(cfg.Weather.Latitude, cfg.Weather.Longitude)
		reporter = weather.NewReporter(fetcher, time.Duration(cfg.Weather.IntervalHours)*time.Hour)
	}

	timeout := time.Duration(cfg.Netro.TimeoutSeconds) * time.Second

	for _, c := range cfg.Controllers {
		client := netro.NewClient(cfg.Netro.BaseURL, c.Key, timeout)

		name, hwVersion, swVersion := c.Name, c.HWVersion, c.SWVersion
		if name == "" || hwVersion == "" || swVersion == "" {
			// Fill identity gaps from the device itself before the first
			// scheduled poll.
			info, err := client.GetInfo(ctx)
			if err != nil {
				log.Fatal().Err(err).Str("serial", c.Serial).Msg("Failed to discover controller identity")
			}
			device := info.Data.Device
			if name == "" {
				name = device.Name
			}
			if hwVersion == "" {
				hwVersion = device.Version
			}
			if swVersion == "" {
				swVersion = device.SWVersion
			}
		}

		coord := coordinator.NewController(client, coordinator.ControllerConfig{
			SerialNumber:    c.Serial,
			DeviceName:      name,
			HWVersion:       hwVersion,
			SWVersion:       swVersion,
			RefreshInterval: time.Duration(c.RefreshIntervalMinutes) * time.Minute,
			SlowdownWindows: windows,
			MonthsBefore:    c.ScheduleMonthsBefore,
			MonthsAfter:     c.ScheduleMonthsAfter,
		})
		run.Add(coord)
		server.AddController(coord)
		if reporter != nil {
			reporter.AddTarget(c.Serial, client)
		}

		log.Info().
			Str("serial", c.Serial).
			Str("name", name).
			Msg("Registered controller")
	}

	for _, s := range cfg.Sensors {
		client := netro.NewClient(cfg.Netro.BaseURL, s.Key, timeout)
		coord := coordinator.NewSensor(client, coordinator.SensorConfig{
			SerialNumber:    s.Serial,
			DeviceName:      s.Name,
			HWVersion:       s.HWVersion,
			SWVersion:       s.SWVersion,
			RefreshInterval: time.Duration(s.RefreshIntervalMinutes) * time.Minute,
			DaysBeforeToday: s.DaysBeforeToday,
		})
		run.Add(coord)
		server.AddSensor(coord)

		log.Info().
			Str("serial", s.Serial).
			Str("name", s.Name).
			Msg("Registered sensor")
	}

	if reporter != nil {
		go reporter.Run(ctx)
	}

	go func() {
		if err := server.Start(cfg.HTTPPort); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	run.Start(ctx)
	log.Info().Msg("Shutdown complete")
}
