// Command haldexd runs the interceptor between the coupling unit bus and the
// vehicle bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/notnil/haldex/canbus"
	"github.com/notnil/haldex/haldex"
	"github.com/notnil/haldex/internal/bridge"
	"github.com/notnil/haldex/internal/config"
	"github.com/notnil/haldex/internal/logging"
	"github.com/notnil/haldex/nvstore"
)

func main() {
	var (
		configPath = flag.String("config", "/etc/haldex/haldexd.toml", "Path to the TOML configuration file")
		logLevel   = flag.String("log-level", "", "Override log_level (trace|debug|info|warn|error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "haldexd: %v\n", err)
		os.Exit(2)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := logging.New("haldexd", cfg.LogLevel, cfg.LogFormat == "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "haldexd: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("haldexd terminated")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	dev, err := nvstore.Open(cfg.Storage.Options())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer dev.Close()
	store, err := nvstore.NewStore(dev)
	if err != nil {
		return err
	}
	stored, err := store.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Stringer("mode", stored.Mode).
		Float32("pedal_threshold", stored.PedalThreshold).
		Msg("configuration loaded")

	coupling, err := canbus.Open(cfg.Coupling.Driver, cfg.Coupling.Device, cfg.Coupling.Options())
	if err != nil {
		return fmt.Errorf("open coupling bus %s: %w", cfg.Coupling.Device, err)
	}
	defer coupling.Close()
	vehicle, err := canbus.Open(cfg.Vehicle.Driver, cfg.Vehicle.Device, cfg.Vehicle.Options())
	if err != nil {
		return fmt.Errorf("open vehicle bus %s: %w", cfg.Vehicle.Device, err)
	}
	defer vehicle.Close()
	logger.Info().
		Str("coupling", cfg.Coupling.Driver+":"+cfg.Coupling.Device).
		Str("vehicle", cfg.Vehicle.Driver+":"+cfg.Vehicle.Device).
		Msg("buses open")

	ic := haldex.New(stored, logger)
	b := bridge.New(coupling, vehicle, ic, store, bridge.Options{
		FlushInterval:  cfg.FlushInterval,
		TxTimeout:      cfg.TxTimeout,
		StatusInterval: cfg.StatusInterval,
		TraceFrames:    cfg.TraceFrames,
	}, logger)
	return b.Run(ctx)
}
