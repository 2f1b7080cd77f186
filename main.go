package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"olx-scout/config"
	"olx-scout/pipeline"
	"olx-scout/scraper/browser"
	"olx-scout/scraper/ceneo"
	"olx-scout/scraper/olx"
	"olx-scout/storage"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.Load()
	if len(cfg.CategoryPaths) == 0 {
		logger.Fatal().Msg("OLX_START_URL must list at least one category path")
	}
	logger.Info().
		Strs("categories", cfg.CategoryPaths).
		Int("price_batch", cfg.PriceBatchSize).
		Int("sold_batch", cfg.SoldBatchSize).
		Msg("Deal-scout crawler starting")

	store, err := storage.NewPostgresStore(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer store.Close()

	session, err := browser.NewSession(browser.Options{
		UserAgent:   cfg.UserAgent,
		ChromeBin:   cfg.ChromeBin,
		NavTimeout:  time.Duration(cfg.NavTimeoutSec) * time.Second,
		WaitTimeout: time.Duration(cfg.WaitTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to launch browser session")
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crawler := olx.New(session, logger)
	prober := ceneo.New(session, logger)

	pipeline.New(cfg, logger, store, crawler, prober).Run(ctx)

	logger.Info().Msg("Crawler stopped")
}
