// Package main is the entry point for the chat game bot.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-game-bot/internal/command"
	"chat-game-bot/internal/config"
	"chat-game-bot/internal/dispatch"
	"chat-game-bot/internal/game"
	"chat-game-bot/internal/pkg/db"
	"chat-game-bot/internal/pkg/lock"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/platform/telegram"
	"chat-game-bot/internal/repository"
	"chat-game-bot/internal/sched"
	"chat-game-bot/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	scoreRepo := repository.NewScoreRepository(dbPool.Pool)

	registry := session.New()
	pending := dispatch.NewPendingResponses()
	locks := lock.New()

	// The client, dispatcher and router reference each other; the
	// late-bound closures below are safe because no update flows before
	// client.Start.
	var (
		dispatcher *dispatch.Dispatcher
		router     *command.Router
		scheduler  *sched.Scheduler
	)

	client, err := telegram.New(&cfg.Bot, telegram.Handlers{
		OnMessage:  func(ev platform.MessageEvent) { dispatcher.HandleMessage(ev) },
		OnReaction: func(ev platform.ReactionEvent) { dispatcher.HandleReaction(ev) },
		OnConnectivity: func(ev platform.ConnectivityEvent) {
			scheduler.OnConnectivity(ev)
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat client")
	}

	registry.SetUpdateFunc(func(g game.Game) {
		renderCtx, renderCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer renderCancel()
		err := client.Edit(renderCtx, g.ChannelID(), g.MessageID(), g.Render(), nil)
		if err != nil && !errors.Is(err, platform.ErrMessageNotFound) {
			log.Warn().Err(err).
				Str("game", g.Name()).
				Int64("channel_id", g.ChannelID()).
				Msg("Could not render removed game")
		}
	})

	dispatcher = dispatch.New(dispatch.Dependencies{
		Registry:  registry,
		Pending:   pending,
		Locks:     locks,
		Messenger: client,
		Commands: dispatch.CommandsFunc(func(ctx context.Context, ev platform.MessageEvent) bool {
			return router.Dispatch(ctx, ev)
		}),
		Scores: scoreRepo,
	})

	router = command.New(command.Dependencies{
		Config:    cfg,
		Registry:  registry,
		Pending:   pending,
		Locks:     locks,
		Messenger: client,
		Scores:    scoreRepo,
		DMs:       dispatcher,
	})

	scheduler = sched.New(sched.Config{
		SweepInterval:    cfg.Sched.SweepInterval,
		WatchdogInterval: cfg.Sched.WatchdogInterval,
		ReconnectWait:    cfg.Sched.ReconnectWait,
		RestartHour:      cfg.Sched.RestartHour,
		RestartMinute:    cfg.Sched.RestartMinute,
	}, sched.Dependencies{
		Registry:  registry,
		Messenger: client,
		PrepareRestart: func(ctx context.Context) error {
			client.Stop()
			return nil
		},
	})

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler stopped")
		}
	}()

	go func() {
		log.Info().Msg("Bot is starting...")
		client.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	client.Stop()
	log.Info().Msg("Bot stopped gracefully")
}
