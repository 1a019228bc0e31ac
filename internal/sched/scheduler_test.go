package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/game/rpg"
	"chat-game-bot/internal/game/tictactoe"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/session"
)

type fakeMessenger struct {
	mu      sync.Mutex
	edits   int
	editErr error
}

func (f *fakeMessenger) BotID() int64 { return 999 }

func (f *fakeMessenger) Send(context.Context, int64, string, []string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeMessenger) Edit(context.Context, int64, int64, string, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	return f.editErr
}

func (f *fakeMessenger) ClearControls(context.Context, int64, int64) error { return nil }
func (f *fakeMessenger) CreateDM(context.Context, int64) (int64, error)    { return 0, nil }
func (f *fakeMessenger) RequestMembers(context.Context, int64) error       { return nil }

func (f *fakeMessenger) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edits
}

func defaultConfig() Config {
	return Config{
		SweepInterval:    time.Minute,
		WatchdogInterval: time.Minute,
		ReconnectWait:    time.Minute,
		RestartHour:      4,
		RestartMinute:    30,
	}
}

func newTestScheduler(cfg Config) (*Scheduler, *session.Registry, *fakeMessenger, *int) {
	registry := session.New()
	fm := &fakeMessenger{}
	exitCode := -1
	s := New(cfg, Dependencies{
		Registry:  registry,
		Messenger: fm,
		Exit:      func(code int) { exitCode = code },
	})
	return s, registry, fm, &exitCode
}

func TestSweepCancelsAndRemovesExpired(t *testing.T) {
	s, registry, fm, _ := newTestScheduler(defaultConfig())

	expired := tictactoe.New(1, [2]int64{10, 20}, 999, 5*time.Minute)
	expired.SetMessageID(7)
	expired.SetLastPlayed(time.Now().Add(-10 * time.Minute))
	require.NoError(t, registry.Add(expired))

	fresh := tictactoe.New(2, [2]int64{30, 40}, 999, 5*time.Minute)
	fresh.SetMessageID(8)
	require.NoError(t, registry.Add(fresh))

	s.sweep(context.Background())

	assert.Equal(t, game.Cancelled, expired.State())
	assert.Equal(t, game.Active, fresh.State())
	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, 1, fm.editCount(), "expired board rendered once")
}

func TestSweepExemptsUserGames(t *testing.T) {
	s, registry, _, _ := newTestScheduler(defaultConfig())

	adventure := rpg.New(1, 10, "hero")
	adventure.SetLastPlayed(time.Now().Add(-365 * 24 * time.Hour))
	require.NoError(t, registry.Add(adventure))

	s.sweep(context.Background())

	assert.Equal(t, game.Active, adventure.State())
	assert.Equal(t, 1, registry.Count())
}

func TestSweepToleratesDeletedBoards(t *testing.T) {
	s, registry, fm, _ := newTestScheduler(defaultConfig())
	fm.editErr = platform.ErrMessageNotFound

	expired := tictactoe.New(1, [2]int64{10, 20}, 999, 5*time.Minute)
	expired.SetLastPlayed(time.Now().Add(-10 * time.Minute))
	require.NoError(t, registry.Add(expired))

	assert.NotPanics(t, func() { s.sweep(context.Background()) })
	assert.Equal(t, 0, registry.Count())
}

func TestWatchdogExitsAfterReconnectWindow(t *testing.T) {
	oldPoll := reconnectPollInterval
	reconnectPollInterval = 5 * time.Millisecond
	defer func() { reconnectPollInterval = oldPoll }()

	cfg := defaultConfig()
	cfg.WatchdogInterval = 10 * time.Millisecond
	cfg.ReconnectWait = 30 * time.Millisecond

	s, _, _, exitCode := newTestScheduler(cfg)
	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: false})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.watchdogLoop(ctx)

	assert.Equal(t, platform.ExitReconnectTimeout, *exitCode)
}

func TestWatchdogSparesRecoveredConnection(t *testing.T) {
	oldPoll := reconnectPollInterval
	reconnectPollInterval = 5 * time.Millisecond
	defer func() { reconnectPollInterval = oldPoll }()

	cfg := defaultConfig()
	cfg.WatchdogInterval = 10 * time.Millisecond
	cfg.ReconnectWait = 200 * time.Millisecond

	s, _, _, exitCode := newTestScheduler(cfg)
	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: false})

	// Restore connectivity while the watchdog is waiting it out.
	go func() {
		time.Sleep(40 * time.Millisecond)
		s.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: true})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	_ = s.watchdogLoop(ctx)

	assert.Equal(t, -1, *exitCode, "no restart once the gateway recovered")
}

func TestPerformRestartRunsHookAndExits(t *testing.T) {
	registry := session.New()
	exitCode := -1
	hookRan := false
	s := New(defaultConfig(), Dependencies{
		Registry:  registry,
		Messenger: &fakeMessenger{},
		PrepareRestart: func(context.Context) error {
			hookRan = true
			return nil
		},
		Exit: func(code int) { exitCode = code },
	})

	s.performRestart(context.Background())

	assert.True(t, hookRan)
	assert.Equal(t, platform.ExitScheduledRestart, exitCode)
}

func TestNextRestartSkipsImminentSlot(t *testing.T) {
	s, _, _, _ := newTestScheduler(defaultConfig())

	early := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 28, 4, 30, 0, 0, time.UTC), s.nextRestart(early))

	// Less than an hour away: pushed to the next day.
	near := time.Date(2026, 8, 28, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 4, 30, 0, 0, time.UTC), s.nextRestart(near))

	late := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 4, 30, 0, 0, time.UTC), s.nextRestart(late))
}

func TestConnectivityTracking(t *testing.T) {
	s, _, _, _ := newTestScheduler(defaultConfig())

	assert.True(t, s.healthy(), "healthy before any events")

	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 0, Connected: true})
	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 1, Connected: true})
	assert.True(t, s.healthy())

	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 1, Connected: false})
	assert.False(t, s.healthy())

	s.OnConnectivity(platform.ConnectivityEvent{ShardID: 1, Connected: true})
	assert.True(t, s.healthy())
}
