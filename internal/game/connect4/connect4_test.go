package connect4

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-game-bot/internal/game"
)

const (
	alice = int64(100)
	bob   = int64(200)
	botID = int64(999)
)

func play(t *testing.T, g *Game, moves ...string) {
	t.Helper()
	ctx := context.Background()
	players := [2]int64{alice, bob}
	for i, col := range moves {
		require.NoError(t, g.Input(ctx, col, players[i%2]), "move %d (%s)", i, col)
	}
}

func TestVerticalWin(t *testing.T) {
	g := New(1, [2]int64{alice, bob}, botID, time.Minute)
	play(t, g, "1", "2", "1", "2", "1", "2", "1")

	assert.Equal(t, game.Win, g.State())
	assert.Equal(t, alice, g.Winner())
}

func TestHorizontalWin(t *testing.T) {
	g := New(1, [2]int64{alice, bob}, botID, time.Minute)
	play(t, g, "1", "1", "2", "2", "3", "3", "4")

	assert.Equal(t, game.Win, g.State())
	assert.Equal(t, alice, g.Winner())
}

func TestDiagonalWin(t *testing.T) {
	g := New(1, [2]int64{alice, bob}, botID, time.Minute)
	// Staircase for alice: (5,0) (4,1) (3,2) (2,3).
	play(t, g,
		"1",
		"2", "2",
		"3", "3",
		"4", "3",
		"4", "4",
		"1", "4",
	)

	assert.Equal(t, game.Win, g.State())
	assert.Equal(t, alice, g.Winner())
}

func TestInputValidation(t *testing.T) {
	g := New(1, [2]int64{alice, bob}, botID, time.Minute)
	ctx := context.Background()

	assert.False(t, g.IsInput("1", bob), "not bob's turn")
	assert.False(t, g.IsInput("8", alice), "column out of range")
	assert.ErrorIs(t, g.Input(ctx, "1", bob), ErrNotYourTurn)
	assert.ErrorIs(t, g.Input(ctx, "8", alice), ErrBadColumn)

	// Fill a column and confirm it rejects a seventh disc.
	play(t, g, "1", "1", "1", "1", "1", "1")
	assert.Equal(t, game.Active, g.State())
	assert.False(t, g.IsInput("1", alice))
	assert.ErrorIs(t, g.Input(ctx, "1", alice), ErrBadColumn)
}

func TestBotPrefersCenter(t *testing.T) {
	g := New(1, [2]int64{alice, botID}, botID, time.Minute)
	ctx := context.Background()

	require.NoError(t, g.Input(ctx, "1", alice))
	require.True(t, g.IsBotTurn())
	require.NoError(t, g.BotInput(ctx))

	assert.True(t, strings.Contains(g.Render(), discs[1]), "bot disc should be on the board")
	assert.False(t, g.IsBotTurn())
}

func TestBotBlocksVerticalThreat(t *testing.T) {
	g := New(1, [2]int64{alice, botID}, botID, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Input(ctx, "1", alice))
		require.NoError(t, g.BotInput(ctx))
	}

	// Alice's column was capped by the third bot move; stacking a fourth
	// disc there no longer wins.
	require.NoError(t, g.Input(ctx, "1", alice))
	assert.Equal(t, game.Active, g.State())
}
