package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carecast/internal/adapter/repo"
	"carecast/internal/http/handlers"
	"carecast/internal/http/httpapi"
	"carecast/internal/infra"
	"carecast/internal/infra/geoip"
	"carecast/internal/providers/avatar"
	"carecast/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		bootLogger := infra.NewLogger("development")
		bootLogger.Fatal().Err(err).Msg("api: load config")
	}

	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: connect database")
	}
	defer pool.Close()

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}

	client, err := avatar.NewClient(avatar.Options{
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: configure provider client")
	}

	jobs := service.NewJobService(
		repo.NewJobRepository(pool),
		repo.NewProfileRepository(pool),
		client,
		logger,
		cfg.StalenessThreshold,
	)

	app := handlers.NewApp(jobs, logger, cfg.WebhookSharedSecret)
	router := httpapi.NewRouter(cfg, app, logger, geo)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown")
		os.Exit(1)
	}
}
