package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"tickalert/internal/application/service"
	"tickalert/internal/application/usecase/watch"
	"tickalert/internal/infrastructure/config"
	"tickalert/internal/infrastructure/feed"
	"tickalert/internal/infrastructure/feed/dhan"
	"tickalert/internal/infrastructure/logger"
	"tickalert/internal/infrastructure/telegram"
)

func main() {
	logger.Setup()
	_ = godotenv.Load() // optional .env for local runs

	configPath := flag.String("config", "config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.SetLevel(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier := telegram.NewClient("", cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.AlertInterval())
	alerts := service.NewAlertService(notifier, cfg.AlertInterval())

	dialer := dhan.NewFeed(cfg.Feed.WsURL,
		dhan.Credentials{
			ClientID:    cfg.Dhan.ClientID,
			AccessToken: cfg.Dhan.AccessToken,
		},
		[]dhan.Instrument{{
			ExchangeSegment: cfg.Instrument.ExchangeSegment,
			SecurityID:      cfg.Instrument.SecurityID,
		}})

	svc := watch.NewService(watch.ServiceDeps{
		Dialer:         dialer,
		Normalize:      feed.Normalize,
		Alerter:        alerts,
		SecurityID:     cfg.Instrument.SecurityID,
		DisplayName:    cfg.Instrument.DisplayName,
		InitialBackoff: cfg.InitialBackoff(),
		MaxBackoff:     cfg.MaxBackoff(),
	})

	log.Info().
		Str("config", *configPath).
		Str("security_id", cfg.Instrument.SecurityID).
		Int("interval_s", cfg.App.IntervalSeconds).
		Msg("tickalert started")

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("watch service exited")
	}
	log.Info().Msg("exit")
}
