package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"jumpcut/internal/config"
	"jumpcut/internal/daemon"
	"jumpcut/internal/logging"
	"jumpcut/internal/metrics"
	"jumpcut/internal/project"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := project.Open(cfg)
	if err != nil {
		logger.Error("open project store", logging.Error(err))
		return
	}

	collector := metrics.New()
	manager := project.NewManager(cfg, store, collector, logger)

	d, err := daemon.New(cfg, store, manager, collector, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("jumpcutd shutting down")
}
