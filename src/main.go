package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"personal/cheesebot/src/bot"
	"personal/cheesebot/src/client"
	"personal/cheesebot/src/config"
	"personal/cheesebot/src/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cheese := bot.New(nil, log)
	discord := client.NewBot(cfg.Token, cheese,
		client.WithLogger(log),
		client.WithAPIURL(cfg.APIURL),
		client.WithGatewayVersion(cfg.GatewayVersion),
		client.WithIntents(cfg.Intents),
		client.WithDevice(cfg.Device),
		client.WithCompression(cfg.Compress),
		client.WithMaxMissedAcks(cfg.MaxMissedAcks),
	)
	cheese.SetAPI(discord)

	if cfg.Intents.Privileged() {
		log.Warn("privileged intents requested, they must be enabled for the application")
	}
	log.Info("starting bot", "intents", uint64(cfg.Intents), "gateway_version", cfg.GatewayVersion)

	err = discord.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot stopped", "error", err)
		stop()
		closeLog()
		os.Exit(1)
	}
	log.Info("bot stopped")
}
