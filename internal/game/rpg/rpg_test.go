package rpg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-game-bot/internal/game"
)

const owner = int64(100)

func TestInputValidation(t *testing.T) {
	g := New(1, owner, "hero")

	assert.True(t, g.IsInput("fight", owner))
	assert.True(t, g.IsInput("  HEAL  ", owner), "input is normalized")
	assert.False(t, g.IsInput("fight", owner+1), "only the owner plays")
	assert.False(t, g.IsInput("dance", owner))
}

func TestActionPreconditions(t *testing.T) {
	g := New(1, owner, "hero")
	ctx := context.Background()

	assert.ErrorIs(t, g.Input(ctx, "attack", owner), ErrNoEnemy)
	assert.ErrorIs(t, g.Input(ctx, "flee", owner), ErrNoEnemy)

	require.NoError(t, g.Input(ctx, "fight", owner))
	assert.ErrorIs(t, g.Input(ctx, "fight", owner), ErrInCombat)
	assert.ErrorIs(t, g.Input(ctx, "heal", owner), ErrInCombat)

	require.NoError(t, g.Input(ctx, "flee", owner))
	require.NoError(t, g.Input(ctx, "heal", owner))
}

func TestCombatResolves(t *testing.T) {
	g := New(1, owner, "hero")
	ctx := context.Background()

	require.NoError(t, g.Input(ctx, "fight", owner))
	require.NotNil(t, g.enemy)

	// A level-1 character always meets a beatable low-level enemy; keep
	// attacking until the encounter ends one way or the other.
	for g.enemy != nil {
		require.NoError(t, g.Input(ctx, "attack", owner))
	}

	// Either the enemy died (exp gained) or the character respawned at
	// full life with zero exp. Both leave the instance active.
	assert.Equal(t, game.Active, g.State())
	assert.Positive(t, g.Life())
}

func TestDefeatRespawnsWithoutEndingInstance(t *testing.T) {
	g := New(1, owner, "hero")
	ctx := context.Background()

	require.NoError(t, g.Input(ctx, "fight", owner))
	g.life = 1
	g.enemy.life = 1000000 // cannot be killed before the counterattack lands

	require.NoError(t, g.Input(ctx, "attack", owner))
	assert.Equal(t, game.Active, g.State())
	assert.Equal(t, g.maxLife(), g.Life())
	assert.Equal(t, 0, g.Exp())
	assert.Nil(t, g.enemy)
}

func TestLevelCurve(t *testing.T) {
	g := New(1, owner, "hero")

	g.gainExp(4) // exactly one level at level 1
	assert.Equal(t, 2, g.Level())
	assert.Equal(t, 0, g.Exp())
	assert.Equal(t, 30, g.maxLife())

	g.gainExp(11) // 8 to reach level 3, 3 left over
	assert.Equal(t, 3, g.Level())
	assert.Equal(t, 3, g.Exp())
}

func TestMoveToFollowsPlayer(t *testing.T) {
	g := New(1, owner, "hero")
	g.SetMessageID(10)

	g.MoveTo(42, 11)
	assert.Equal(t, int64(42), g.ChannelID())
	assert.Equal(t, int64(11), g.MessageID())
}

func TestRenderShowsEncounter(t *testing.T) {
	g := New(1, owner, "hero")
	ctx := context.Background()

	assert.Contains(t, g.Render(), "hero")
	require.NoError(t, g.Input(ctx, "fight", owner))
	assert.Contains(t, g.Render(), g.enemy.name)
}
