// Package sched runs the bot's background maintenance loops: the
// periodic expiry sweep over idle game instances, the gateway
// connectivity watchdog, and the scheduled daily restart. Each loop is
// independent; a stop request shuts all of them down together.
package sched

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/session"
)

// reconnectPollInterval is how often the watchdog re-checks a downed
// gateway while waiting it out. Variable so tests can shorten it.
var reconnectPollInterval = 5 * time.Second

// Config carries the scheduler's timing knobs.
type Config struct {
	// SweepInterval is how often idle instances are checked for expiry.
	SweepInterval time.Duration
	// WatchdogInterval is how often gateway connectivity is checked.
	WatchdogInterval time.Duration
	// ReconnectWait bounds how long a disconnected gateway may stay down
	// before the process gives up and asks the supervisor for a restart.
	ReconnectWait time.Duration
	// RestartHour and RestartMinute place the daily scheduled restart,
	// in local time.
	RestartHour   int
	RestartMinute int
}

// Dependencies holds the scheduler's collaborators.
type Dependencies struct {
	Registry  *session.Registry
	Messenger platform.Messenger
	// PrepareRestart runs right before a scheduled restart exits the
	// process, for flushing state. Optional.
	PrepareRestart func(ctx context.Context) error
	// Exit terminates the process with the given code. Defaults to
	// os.Exit; injectable for tests.
	Exit func(code int)
}

// Scheduler owns the maintenance loops.
type Scheduler struct {
	cfg            Config
	registry       *session.Registry
	messenger      platform.Messenger
	prepareRestart func(ctx context.Context) error
	exit           func(code int)

	mu        sync.Mutex
	connected map[int]bool // shardID -> connected
	downSince time.Time    // zero while all shards are up
}

// New creates a scheduler.
func New(cfg Config, deps Dependencies) *Scheduler {
	exit := deps.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &Scheduler{
		cfg:            cfg,
		registry:       deps.Registry,
		messenger:      deps.Messenger,
		prepareRestart: deps.PrepareRestart,
		exit:           exit,
		connected:      make(map[int]bool),
	}
}

// Run starts all loops and blocks until ctx is cancelled or a loop
// fails.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sweepLoop(ctx) })
	g.Go(func() error { return s.watchdogLoop(ctx) })
	g.Go(func() error { return s.restartLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// OnConnectivity records a shard connecting to or dropping from the
// gateway. The watchdog consumes this state.
func (s *Scheduler) OnConnectivity(ev platform.ConnectivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected[ev.ShardID] = ev.Connected
	if ev.Connected {
		log.Info().Int("shard", ev.ShardID).Msg("Gateway connected")
	} else {
		log.Warn().Int("shard", ev.ShardID).Msg("Gateway disconnected")
	}

	if s.allConnectedLocked() {
		s.downSince = time.Time{}
	} else if s.downSince.IsZero() {
		s.downSince = time.Now()
	}
}

func (s *Scheduler) allConnectedLocked() bool {
	for _, up := range s.connected {
		if !up {
			return false
		}
	}
	return true
}

func (s *Scheduler) healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downSince.IsZero()
}

// sweepLoop cancels and removes instances idle past their expiry.
func (s *Scheduler) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep marks expired instances cancelled, removes them in bulk without
// firing per-instance update callbacks, then best-effort renders their
// final boards. A board whose message was deleted is skipped quietly.
func (s *Scheduler) sweep(ctx context.Context) {
	now := time.Now()
	expired := lo.Filter(s.registry.All(), func(g game.Game, _ int) bool {
		if g.State().Terminal() || g.Expiry() <= 0 {
			return false
		}
		if _, persistent := g.(game.UserGame); persistent {
			return false
		}
		return now.Sub(g.LastPlayed()) >= g.Expiry()
	})
	if len(expired) == 0 {
		return
	}

	for _, g := range expired {
		g.Cancel()
		s.registry.Remove(g, false)
	}
	log.Info().Int("count", len(expired)).Msg("Swept expired games")

	for _, g := range expired {
		err := s.messenger.Edit(ctx, g.ChannelID(), g.MessageID(), g.Render(), nil)
		switch {
		case errors.Is(err, platform.ErrMessageNotFound):
			// The board was deleted by a user; nothing to render.
		case err != nil:
			log.Warn().Err(err).
				Str("game", g.Name()).
				Int64("channel_id", g.ChannelID()).
				Msg("Could not render expired game")
		}
	}
}

// watchdogLoop restarts the process when the gateway stays down past
// the reconnect bound. Reconnection is the client library's job; the
// watchdog only refuses to run zombie-disconnected forever.
func (s *Scheduler) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.healthy() {
				continue
			}
			if s.awaitReconnect(ctx) {
				continue
			}
			log.Error().
				Dur("waited", s.cfg.ReconnectWait).
				Msg("Gateway did not reconnect; requesting restart")
			s.exit(platform.ExitReconnectTimeout)
			return nil
		}
	}
}

// awaitReconnect polls connectivity for up to the reconnect bound and
// reports whether it was restored.
func (s *Scheduler) awaitReconnect(ctx context.Context) bool {
	deadline := time.Now().Add(s.cfg.ReconnectWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return true
		case <-time.After(reconnectPollInterval):
			if s.healthy() {
				return true
			}
		}
	}
	return s.healthy()
}

// restartLoop exits the process at the configured local time each day,
// after running the prepare hook. If the next slot is less than an hour
// away at startup it is skipped, so crash-loop restarts near the slot
// don't restart twice.
func (s *Scheduler) restartLoop(ctx context.Context) error {
	next := s.nextRestart(time.Now())
	log.Info().Time("at", next).Msg("Scheduled daily restart")

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.performRestart(ctx)
	return nil
}

// performRestart runs the prepare hook and exits with the scheduled
// restart code.
func (s *Scheduler) performRestart(ctx context.Context) {
	log.Info().Msg("Performing scheduled restart")
	if s.prepareRestart != nil {
		if err := s.prepareRestart(ctx); err != nil {
			log.Error().Err(err).Msg("Restart preparation failed")
		}
	}
	s.exit(platform.ExitScheduledRestart)
}

// nextRestart returns the first daily restart slot at least an hour
// after now.
func (s *Scheduler) nextRestart(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.RestartHour, s.cfg.RestartMinute, 0, 0, now.Location())
	if next.Sub(now) < time.Hour {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
