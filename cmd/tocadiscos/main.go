package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tocadiscos/internal/config"
	"tocadiscos/internal/discord"
	"tocadiscos/internal/logger"
	"tocadiscos/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	log.Info().Msg("starting tocadiscos")

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer store.Close()

	bot, err := discord.New(cfg, store, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("bot exited cleanly")
	return nil
}
