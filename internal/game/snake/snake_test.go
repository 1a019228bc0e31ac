package snake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-game-bot/internal/game"
)

const owner = int64(100)

func TestControls(t *testing.T) {
	g := New(1, owner, time.Minute)
	assert.Equal(t, []string{Left, Up, Down, Right}, g.Controls())
}

func TestReactionValidation(t *testing.T) {
	g := New(1, owner, time.Minute)
	ctx := context.Background()

	ok, err := g.IsReactionInput(ctx, Up, owner)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsReactionInput(ctx, Up, owner+1)
	require.NoError(t, err)
	assert.False(t, ok, "only the owner steers")

	ok, err = g.IsReactionInput(ctx, "🙂", owner)
	require.NoError(t, err)
	assert.False(t, ok, "unknown emoji")
}

func TestWallCollisionLoses(t *testing.T) {
	g := New(1, owner, time.Minute)
	ctx := context.Background()

	// Head starts at the center; Size/2 steps reach the wall, one more
	// hits it.
	for i := 0; i <= Size/2; i++ {
		require.NoError(t, g.ReactionInput(ctx, Left, owner))
	}

	assert.Equal(t, game.Lose, g.State())

	ok, err := g.IsReactionInput(ctx, Left, owner)
	require.NoError(t, err)
	assert.False(t, ok, "terminal game rejects input")
}

func TestEatingAppleGrowsAndScores(t *testing.T) {
	g := New(1, owner, time.Minute)
	ctx := context.Background()

	g.apple = point{Size/2 - 1, Size / 2} // directly left of the head

	require.NoError(t, g.ReactionInput(ctx, Left, owner))
	assert.Equal(t, int64(1), g.Score())
	assert.Len(t, g.body, 2)
	assert.NotEqual(t, point{Size/2 - 1, Size / 2}, g.apple, "apple relocates")
}

func TestReachingWinScoreWins(t *testing.T) {
	g := New(1, owner, time.Minute)
	ctx := context.Background()

	g.score = WinScore - 1
	g.apple = point{Size/2 + 1, Size / 2} // directly right of the head

	require.NoError(t, g.ReactionInput(ctx, Right, owner))
	assert.Equal(t, game.Win, g.State())
	assert.Equal(t, int64(WinScore), g.Score())
}

func TestMissingAppleMovesWithoutGrowing(t *testing.T) {
	g := New(1, owner, time.Minute)
	ctx := context.Background()

	g.apple = point{0, 0}
	head := g.body[len(g.body)-1]

	require.NoError(t, g.ReactionInput(ctx, Down, owner))
	assert.Len(t, g.body, 1)
	assert.Equal(t, point{head.x, head.y + 1}, g.body[len(g.body)-1])
	assert.Equal(t, int64(0), g.Score())
}
