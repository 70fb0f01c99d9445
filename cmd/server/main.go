package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/whistbroker/internal/api"
	"github.com/mcoot/whistbroker/internal/broker"
	"github.com/mcoot/whistbroker/internal/factory"
	redisstorage "github.com/mcoot/whistbroker/internal/storage/redis"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	cfg := factory.Config{
		Logger:      logger,
		StorageType: os.Getenv("STORAGE_TYPE"),
		SavePath:    os.Getenv("SAVE_PATH"),
	}

	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app.AccountService.Load(context.Background())

	// Bind the broker's TCP listener
	brokerCfg := broker.DefaultConfig()
	if addr := os.Getenv("BROKER_ADDR"); addr != "" {
		brokerCfg.Addr = addr
	}
	loop, err := broker.Listen(brokerCfg, app.Dispatcher, logger)
	if err != nil {
		logger.Error("failed to bind broker listener", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create the admin HTTP server
	apiRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AccountService: app.AccountService,
	})
	server := api.NewServer(apiRouter, api.DefaultServerConfig(), logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	brokerErrCh := make(chan error, 1)
	go func() {
		brokerErrCh <- loop.Run(ctx)
	}()

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("broker_addr", loop.Addr().String()),
		slog.String("http_addr", server.Addr()))

	select {
	case err := <-brokerErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("broker error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		// Give the broker loop a tick to notify clients
		select {
		case <-brokerErrCh:
		case <-time.After(2 * broker.DefaultTickInterval):
		}
	}

	logger.Info("server stopped")
}
