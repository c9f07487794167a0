package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/api"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/bot"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/cctv"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/config"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/conversion"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/corridor"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/database"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/handler"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/line"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/rainfall"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/report"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/repository"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/service"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Data stores.
	corridors := corridor.Load(cfg.LinesPath, logger)
	cameras := cctv.Load(cfg.CCTVPath, logger)

	// Services.
	eventService := service.NewEventService(repository.NewEventRepository(db))
	rainfallRepo := repository.NewRainfallRepository(db)
	fetcher := service.NewCWAClient(cfg.CWABaseURL, cfg.CWAAPIKey)
	rainfallService := service.NewRainfallService(rainfallRepo, fetcher, logger)

	if cfg.CWAAPIKey != "" {
		rainfallService.StartPoller(context.Background(), cfg.RainfallPollInterval)
	} else {
		logger.Warn("CWA_API_KEY not set, rainfall ingestion disabled")
	}

	// Chat topics, in dispatch order.
	lineClient := line.NewClient(cfg.LineChannelToken)
	topics := bot.NewTopicStore()
	dispatcher := bot.NewDispatcher(topics, logger)

	conversionMachine := conversion.NewMachine(corridors, conversion.NewSessionStore(), topics, logger)
	rainfallTopic := rainfall.NewTopic(rainfallService, topics, cfg.RainfallPageURL(), logger)
	cctvTopic := cctv.NewTopic(cameras, topics, cfg.CCTVPageURL())
	reportTopic := report.NewTopic(eventService, lineClient, corridors, topics, cfg.PicturesDir, cfg.EventsPageURL(), logger)

	dispatcher.OnText(reportTopic, conversionMachine, rainfallTopic, cctvTopic)
	dispatcher.OnLocation(reportTopic, conversionMachine, rainfallTopic, cctvTopic)
	dispatcher.OnImage(reportTopic)

	router := api.SetupRouter(cfg, api.Handlers{
		Webhook:  handler.NewWebhookHandler(cfg.LineChannelSecret, dispatcher, lineClient, logger),
		Events:   handler.NewEventHandler(eventService),
		Rainfall: handler.NewRainfallHandler(rainfallService),
		CCTV:     handler.NewCCTVHandler(cameras),
		Auth:     handler.NewAuthHandler(cfg),
	}, logger)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := router.Run(cfg.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
