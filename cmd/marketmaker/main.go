package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/erain9/runebook/pkg/logging"
	"github.com/erain9/runebook/pkg/marketmaker"
)

func main() {
	_ = godotenv.Load()

	logCfg := logging.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logCfg.Level = level
	}
	logCfg.Pretty = os.Getenv("LOG_FORMAT") == "pretty"
	logger := logging.Setup(logCfg)

	cfg, err := marketmaker.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orderPlacer, err := marketmaker.NewGRPCOrderPlacer(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create order placer")
	}
	defer orderPlacer.Close()

	priceFetcher, err := marketmaker.NewPriceFetcher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create price fetcher")
	}
	defer priceFetcher.Close()

	strategy := marketmaker.NewLayeredSymmetricQuoting(cfg, logger)
	mm := marketmaker.NewMarketMaker(cfg, logger, orderPlacer, priceFetcher, strategy)

	if err := mm.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start market maker")
	}
	logger.Info().
		Str("rune_id", cfg.RuneID).
		Str("maker", cfg.MakerAddress).
		Int("levels", cfg.NumLevels).
		Msg("Market maker running")

	<-ctx.Done()
	logger.Info().Msg("Received shutdown signal")

	// the signal context is gone; quotes are withdrawn on a fresh one
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mm.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return
	}
	logger.Info().Msg("Market maker service stopped successfully")
}
