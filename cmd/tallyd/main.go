package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/tallyd/internal/actuator"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/events"
	"github.com/jmylchreest/tallyd/internal/midi"
	"github.com/jmylchreest/tallyd/internal/reconcile"
	"github.com/jmylchreest/tallyd/internal/registry"
	"github.com/jmylchreest/tallyd/internal/server"
	"github.com/jmylchreest/tallyd/internal/utils"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set up Viper for configuration
	v := viper.New()
	v.SetEnvPrefix("TALLYD")
	v.AutomaticEnv()

	// Set up command line flags
	pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
	pflag.String("log-format", "text", "Log format (text, json)")
	pflag.String("config", "", "Path to config file")
	pflag.Duration("discovery-interval", 0, "Background discovery sweep interval")
	pflag.Parse()

	// Bind flags to Viper - this ensures flags take precedence
	v.BindPFlag("logging.level", pflag.Lookup("log-level"))
	v.BindPFlag("logging.format", pflag.Lookup("log-format"))
	v.BindPFlag("discovery.interval", pflag.Lookup("discovery-interval"))

	// Load configuration
	cfg, err := config.Load(config.DaemonConfigFilename, v.GetString("config"))
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Command line flags override config file values
	level := cfg.Logging.Level
	if v.GetString("logging.level") != "" {
		level = v.GetString("logging.level")
	}
	format := cfg.Logging.Format
	if v.GetString("logging.format") != "" {
		format = v.GetString("logging.format")
	}

	logger, levelVar := utils.SetupLeveledLogger(level, format)
	slog.SetDefault(logger)

	logger.Info("Starting tallyd",
		"version", version,
		"commit", commit,
		"buildDate", buildDate,
		"devices", len(cfg.Devices),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	reg := registry.New(logger, bus, cfg.Devices, registry.Options{
		DiscoveryTimeout: cfg.Discovery.Timeout,
		RefreshInterval:  cfg.Discovery.Interval,
		DeviceTimeout:    cfg.Actuation.DeviceTimeout,
		BulbBrightness:   cfg.Actuation.BulbBrightness,
	})

	act := actuator.New(logger, bus, reg, cfg.Actuation.DeviceTimeout)
	loop := reconcile.New(logger, bus, act, cfg.MIDI.Debounce)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reg.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	// Warm the handle cache so the first transport event doesn't pay the
	// discovery cost.
	go func() {
		if err := reg.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("initial discovery sweep failed", "error", err)
		}
	}()

	srv := server.New(logger, cfg, reg, act, loop, bus, levelVar, server.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", "error", err)
		cancel()
		os.Exit(1)
	}

	listener := midi.NewListener(logger, cfg.MIDI, loop.Submit)
	if err := listener.Start(); err != nil {
		logger.Error("Failed to start MIDI listener", "error", err)
		srv.Stop()
		cancel()
		os.Exit(1)
	}
	srv.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")

	// Inbound side first so no new events arrive while the loop drains
	if err := listener.Close(); err != nil {
		logger.Error("Error closing MIDI listener", "error", err)
	}
	srv.Stop()
	cancel()
	wg.Wait()

	logger.Info("tallyd stopped")
}
