package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codepad/internal/api"
	"codepad/internal/bus"
	"codepad/internal/config"
	"codepad/internal/executor"
	"codepad/internal/monitor"
	"codepad/internal/session"
	"codepad/internal/store"
	"codepad/pkg/seccomp"
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Materialise the sandbox profile if the operator has not shipped one.
	if cfg.Sandbox.Binary != "" {
		if err := seccomp.EnsureProfile(cfg.Sandbox.Profile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Sandbox.Profile).Msg("could not write sandbox profile")
		}
	} else {
		log.Warn().Msg("sandbox binary not configured, executions run unconfined (development only)")
	}

	// Redis backs both the job store and the message bus.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
	}
	pingCancel()
	defer func() { _ = rdb.Close() }()

	metrics := monitor.NewMetrics()
	jobStore := store.NewRedisStore(rdb, cfg.Redis.JobTTL, cfg.Redis.TokenTTL)
	jobBus := bus.NewRedisBus(rdb)
	registry := executor.NewRegistry(executor.OptionsFromConfig(cfg))
	orchestrator := session.NewOrchestrator(jobStore, jobBus, registry, cfg, metrics)

	server := api.NewServer(cfg, jobStore, orchestrator, rdb, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
		cancel()
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
