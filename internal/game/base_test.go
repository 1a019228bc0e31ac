package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStateTerminal(t *testing.T) {
	assert.False(t, Active.Terminal())
	assert.True(t, Win.Terminal())
	assert.True(t, Lose.Terminal())
	assert.True(t, Tie.Terminal())
	assert.True(t, Cancelled.Terminal())
}

func TestBaseFinishIsMonotone(t *testing.T) {
	b := NewBase("test", 1, []int64{10, 20}, time.Minute)
	assert.Equal(t, Active, b.State())

	b.Finish(Win)
	assert.Equal(t, Win, b.State())

	// Later transitions, including cancellation, are ignored.
	b.Cancel()
	assert.Equal(t, Win, b.State())
	b.Finish(Lose)
	assert.Equal(t, Win, b.State())
}

func TestBaseFinishIgnoresNonTerminal(t *testing.T) {
	b := NewBase("test", 1, []int64{10}, time.Minute)
	b.Finish(Active)
	assert.Equal(t, Active, b.State())
}

func TestBaseAdvanceTurnWraps(t *testing.T) {
	b := NewBase("test", 1, []int64{10, 20, 30}, time.Minute)

	assert.Equal(t, int64(10), b.CurrentPlayer())
	b.AdvanceTurn()
	assert.Equal(t, int64(20), b.CurrentPlayer())
	b.AdvanceTurn()
	assert.Equal(t, int64(30), b.CurrentPlayer())
	b.AdvanceTurn()
	assert.Equal(t, int64(10), b.CurrentPlayer())
}

func TestBaseAdvanceTurnRefreshesActivity(t *testing.T) {
	b := NewBase("test", 1, []int64{10, 20}, time.Minute)
	stale := time.Now().Add(-time.Hour)
	b.SetLastPlayed(stale)

	b.AdvanceTurn()
	assert.True(t, b.LastPlayed().After(stale))
}

// TestBaseFirstTerminalStateWinsProperty checks that for any sequence of
// state transitions, the first terminal one sticks.
func TestBaseFirstTerminalStateWinsProperty(t *testing.T) {
	terminals := []State{Win, Lose, Tie, Cancelled}

	rapid.Check(t, func(t *rapid.T) {
		b := NewBase("test", 1, []int64{10}, time.Minute)

		n := rapid.IntRange(1, 10).Draw(t, "n")
		var first State
		for i := 0; i < n; i++ {
			s := terminals[rapid.IntRange(0, len(terminals)-1).Draw(t, "state")]
			if first == Active {
				first = s
			}
			b.Finish(s)
		}

		if b.State() != first {
			t.Fatalf("expected state %v to stick, got %v", first, b.State())
		}
	})
}
