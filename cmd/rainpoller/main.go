// rainpoller runs the rainfall ingest cycle standalone, either once
// (--once) or on the configured interval. It shares the server's database,
// which is safe under WAL mode.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/config"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/database"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/service"
)

func main() {
	once := flag.Bool("once", false, "run a single ingest cycle and exit")
	flag.Parse()

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if cfg.CWAAPIKey == "" {
		logger.Fatal("CWA_API_KEY not set, cannot download rainfall data")
	}

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	fetcher := service.NewCWAClient(cfg.CWABaseURL, cfg.CWAAPIKey)
	rainfallService := service.NewRainfallService(repository.NewRainfallRepository(db), fetcher, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := rainfallService.RunOnce(ctx); err != nil {
			logger.Fatal("rainfall ingest failed", zap.Error(err))
		}
		return
	}

	rainfallService.StartPoller(ctx, cfg.RainfallPollInterval)
	<-ctx.Done()
	logger.Info("rainfall poller stopped")
}
