package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cardioml-web/internal/api"
	"github.com/cardioml-web/internal/config"
	"github.com/cardioml-web/internal/logging"
	"github.com/cardioml-web/internal/setup"
	"github.com/cardioml-web/internal/store"
	"github.com/cardioml-web/pkg/predictor"
	"github.com/sirupsen/logrus"
)

func main() {
	// Pick up a local .env before reading the environment
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	backend := predictor.NewResilientClient(cfg.Backend, logger)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "check" {
		cli := setup.NewCLI(cfg, configManager, backend, configManager.GetDatabaseURL(), logger, os.Stdout)
		if err := cli.Run(ctx, os.Args[2:]); err != nil {
			stop()
			os.Exit(1)
		}
		return
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	resultStore, err := store.New(ctx, cfg, configManager.GetDatabaseURL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open result store")
	}
	defer resultStore.Close()

	server, err := api.NewServer(api.Dependencies{
		Config:    cfg,
		Predictor: backend,
		Store:     resultStore,
		Logger:    logger,
		Metrics:   api.NewMetrics(),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"backend": cfg.Backend.BaseURL,
		"store":   cfg.Store.Driver,
	}).Info("Starting CardioML web server")

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		resultStore.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
