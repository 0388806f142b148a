package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"carecast/internal/adapter/repo"
	"carecast/internal/infra"
	"carecast/internal/providers/avatar"
	"carecast/internal/service"
)

// The sweeper is the fallback for jobs whose webhook never arrived and whose
// owner never polled. It runs as its own process so a wedged API deploy
// cannot take the cleanup path down with it.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		bootLogger := infra.NewLogger("development")
		bootLogger.Fatal().Err(err).Msg("sweeper: load config")
	}

	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: connect database")
	}
	defer pool.Close()

	client, err := avatar.NewClient(avatar.Options{
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("sweeper: configure provider client")
	}

	jobs := service.NewJobService(
		repo.NewJobRepository(pool),
		repo.NewProfileRepository(pool),
		client,
		logger,
		cfg.StalenessThreshold,
	)

	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("max_age", cfg.SweepMaxAge).
		Int("batch_size", cfg.SweepBatchSize).
		Msg("sweeper: started")

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sweeper: shutting down")
			return
		case <-ticker.C:
			swept, err := jobs.SweepStale(ctx, cfg.SweepMaxAge, cfg.SweepBatchSize)
			if err != nil {
				logger.Error().Err(err).Msg("sweeper: sweep failed")
				continue
			}
			if swept > 0 {
				logger.Info().Int("swept", swept).Msg("sweeper: finalized stale jobs")
			}
		}
	}
}
