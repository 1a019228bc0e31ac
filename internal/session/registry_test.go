package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/game/rpg"
	"chat-game-bot/internal/game/snake"
	"chat-game-bot/internal/game/tictactoe"
)

const botID = int64(999)

func newTTT(channelID int64, players [2]int64) *tictactoe.Game {
	return tictactoe.New(channelID, players, botID, time.Minute)
}

func TestAddRejectsOccupiedChannel(t *testing.T) {
	r := New()

	require.NoError(t, r.Add(newTTT(1, [2]int64{10, 20})))
	assert.ErrorIs(t, r.Add(newTTT(1, [2]int64{30, 40})), ErrSlotConflict)
	assert.Equal(t, 1, r.Count())
}

func TestAddIgnoresTerminalOccupant(t *testing.T) {
	r := New()

	g := newTTT(1, [2]int64{10, 20})
	require.NoError(t, r.Add(g))
	g.Cancel()

	assert.NoError(t, r.Add(newTTT(1, [2]int64{30, 40})))
}

func TestUserGameOccupiesOwnerSlot(t *testing.T) {
	r := New()

	require.NoError(t, r.Add(rpg.New(1, 10, "hero")))

	// A second adventure for the same owner conflicts, even elsewhere.
	assert.ErrorIs(t, r.Add(rpg.New(2, 10, "hero")), ErrSlotConflict)

	// A channel game involving the same user does not: different slot.
	assert.NoError(t, r.Add(newTTT(1, [2]int64{10, 20})))
}

func TestConcurrentAddsExactlyOneWins(t *testing.T) {
	r := New()

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.Add(newTTT(1, [2]int64{int64(i*2 + 100), int64(i*2 + 101)})) == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, r.Count())
}

func TestRemoveIsIdempotentAndNotifies(t *testing.T) {
	r := New()

	var notified atomic.Int32
	r.SetUpdateFunc(func(game.Game) { notified.Add(1) })

	g := newTTT(1, [2]int64{10, 20})
	require.NoError(t, r.Add(g))

	r.Remove(g, true)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, int32(1), notified.Load())

	// Removing again is a no-op and fires nothing.
	r.Remove(g, true)
	assert.Equal(t, int32(1), notified.Load())
}

func TestRemoveWithoutNotifySkipsCallback(t *testing.T) {
	r := New()

	var notified atomic.Int32
	r.SetUpdateFunc(func(game.Game) { notified.Add(1) })

	g := newTTT(1, [2]int64{10, 20})
	require.NoError(t, r.Add(g))
	r.Remove(g, false)

	assert.Equal(t, int32(0), notified.Load())
}

func TestFindFiltersByCapability(t *testing.T) {
	r := New()

	s := snake.New(1, 10, time.Minute)
	require.NoError(t, r.Add(s))

	// Snake takes reactions, not messages.
	_, ok := Find[game.MessageGame](r, 1)
	assert.False(t, ok)

	rg, ok := Find[game.ReactionGame](r, 1)
	require.True(t, ok)
	assert.Same(t, s, rg)

	_, ok = Find[game.ReactionGame](r, 2)
	assert.False(t, ok, "wrong channel")
}

func TestFindPrefersChannelBoundOverSummoned(t *testing.T) {
	r := New()

	// The adventure sits in channel 1 and was registered first.
	adventure := rpg.New(1, 10, "hero")
	require.NoError(t, r.Add(adventure))

	board := newTTT(1, [2]int64{10, 20})
	require.NoError(t, r.Add(board))

	got, ok := Find[game.MessageGame](r, 1)
	require.True(t, ok)
	assert.Same(t, board, got, "the channel-bound game is not shadowed")

	// With the board gone the summoned game answers again.
	r.Remove(board, false)
	got, ok = Find[game.MessageGame](r, 1)
	require.True(t, ok)
	assert.Same(t, adventure, got)
}

func TestFindByMessage(t *testing.T) {
	r := New()

	s := snake.New(1, 10, time.Minute)
	s.SetMessageID(42)
	require.NoError(t, r.Add(s))

	got, ok := r.FindByMessage(42)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.FindByMessage(43)
	assert.False(t, ok)
}

func TestFindByParticipant(t *testing.T) {
	r := New()

	g := rpg.New(1, 10, "hero")
	require.NoError(t, r.Add(g))
	require.NoError(t, r.Add(newTTT(2, [2]int64{10, 20})))

	got, ok := r.FindByParticipant(10)
	require.True(t, ok)
	assert.Same(t, g, got)

	_, ok = r.FindByParticipant(20)
	assert.False(t, ok, "channel games are not user-owned")
}
