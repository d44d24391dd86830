package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"openjack/internal/config"
	"openjack/internal/dealer"
	"openjack/internal/events"
	"openjack/internal/httpapi"
	"openjack/internal/registry"
)

func main() {
	cfg := config.LoadDealer()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("dealer failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.DealerConfig, logger *slog.Logger) error {
	logger.Info("starting dealer", "name", cfg.DealerName, "offer_port", cfg.OfferPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := dealer.Deps{Logger: logger}

	if cfg.RedisURL != "" {
		client, err := registry.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Registry = registry.NewRedisRegistry(client, 2*cfg.IdleTimeout, logger)
		logger.Info("connected to redis", "addr", cfg.RedisURL)
	}

	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, "openjack-dealer-"+cfg.DealerName)
		if err != nil {
			return err
		}
		defer nc.Drain()
		deps.Events = events.NewNATSPublisher(nc, logger)
		logger.Info("connected to nats", "url", cfg.NATSURL)
	}

	if cfg.HTTPPort > 0 {
		deps.Hub = httpapi.NewHub(logger)
	}

	d, err := dealer.New(cfg, deps)
	if err != nil {
		return err
	}
	if addr := d.HTTPAddr(); addr != nil {
		logger.Info("management API enabled", "addr", addr.String())
	}

	if err := d.Run(ctx); err != nil {
		return err
	}
	stop()

	// A second signal abandons the remaining sessions.
	waitCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	logger.Info("waiting for running sessions to finish")
	if err := d.Wait(waitCtx); err != nil {
		logger.Warn("sessions abandoned", "err", err)
	}
	logger.Info("dealer stopped")
	return nil
}

func newLogger(level slog.Level) *slog.Logger {
	plogger := pterm.DefaultLogger.WithLevel(ptermLevel(level))
	return slog.New(pterm.NewSlogHandler(plogger))
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pterm.LogLevelDebug
	case level <= slog.LevelInfo:
		return pterm.LogLevelInfo
	case level <= slog.LevelWarn:
		return pterm.LogLevelWarn
	default:
		return pterm.LogLevelError
	}
}
