// Package snake implements a single-player grid game steered with
// control emoji on the rendered message. Each control press advances the
// snake one step; eating an apple grows it and scores a point.
package snake

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"chat-game-bot/internal/game"
)

const (
	Size = 7 // board is Size x Size

	// WinScore ends the game with a win once reached.
	WinScore = 15

	// DefaultExpiry is how long an instance may sit idle before the
	// sweep cancels it.
	DefaultExpiry = 3 * time.Minute
)

// Control emoji understood by the game.
const (
	Up    = "⬆️"
	Down  = "⬇️"
	Left  = "⬅️"
	Right = "➡️"
)

var ErrBadControl = errors.New("snake: unknown control")

type point struct{ x, y int }

// Game is a running snake instance owned by a single player.
type Game struct {
	game.Base

	owner int64
	body  []point // head last
	apple point
	score int64
}

// New creates an instance in the given channel for owner.
func New(channelID, owner int64, expiry time.Duration) *Game {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	g := &Game{
		Base:  game.NewBase("snake", channelID, []int64{owner}, expiry),
		owner: owner,
		body:  []point{{Size / 2, Size / 2}},
	}
	g.placeApple()
	return g
}

// Controls returns the control emoji attached to the rendered message.
func (g *Game) Controls() []string {
	return []string{Left, Up, Down, Right}
}

// Score returns the number of apples eaten.
func (g *Game) Score() int64 { return g.score }

// IsReactionInput reports whether emoji is a known control pressed by
// the owning player while the game is active.
func (g *Game) IsReactionInput(ctx context.Context, emoji string, userID int64) (bool, error) {
	if g.State().Terminal() || userID != g.owner {
		return false, nil
	}
	_, ok := delta(emoji)
	return ok, nil
}

// ReactionInput advances the snake one step in the pressed direction.
// The dispatcher guarantees exclusive access for the duration of the call.
func (g *Game) ReactionInput(ctx context.Context, emoji string, userID int64) error {
	d, ok := delta(emoji)
	if !ok {
		return ErrBadControl
	}

	head := g.body[len(g.body)-1]
	next := point{head.x + d.x, head.y + d.y}

	if next.x < 0 || next.x >= Size || next.y < 0 || next.y >= Size || g.occupied(next) {
		g.Finish(game.Lose)
		g.Touch()
		return nil
	}

	g.body = append(g.body, next)
	if next == g.apple {
		g.score++
		if g.score >= WinScore {
			g.Finish(game.Win)
		} else {
			g.placeApple()
		}
	} else {
		g.body = g.body[1:] // tail follows unless growing
	}
	g.Touch()
	return nil
}

func (g *Game) occupied(p point) bool {
	// The tail cell is vacated this step unless the snake grows into the
	// apple, which cannot also be the tail.
	for _, b := range g.body[1:] {
		if b == p {
			return true
		}
	}
	return false
}

func (g *Game) placeApple() {
	for {
		p := point{rand.Intn(Size), rand.Intn(Size)}
		if !g.occupied(p) && p != g.body[len(g.body)-1] {
			g.apple = p
			return
		}
	}
}

// Render returns the board as chat text.
func (g *Game) Render() string {
	cells := make(map[point]string, len(g.body)+1)
	cells[g.apple] = "🍎"
	for _, b := range g.body {
		cells[b] = "🟩"
	}
	cells[g.body[len(g.body)-1]] = "🐍"

	var sb strings.Builder
	fmt.Fprintf(&sb, "Snake — score %d\n", g.score)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			if c, ok := cells[point{x, y}]; ok {
				sb.WriteString(c)
			} else {
				sb.WriteString("⬛")
			}
		}
		sb.WriteByte('\n')
	}

	switch g.State() {
	case game.Win:
		sb.WriteString("You win! 🎉")
	case game.Lose:
		sb.WriteString("Game over!")
	case game.Cancelled:
		sb.WriteString("Game cancelled.")
	default:
		sb.WriteString("Steer with the controls below.")
	}
	return sb.String()
}

func delta(emoji string) (point, bool) {
	switch emoji {
	case Up:
		return point{0, -1}, true
	case Down:
		return point{0, 1}, true
	case Left:
		return point{-1, 0}, true
	case Right:
		return point{1, 0}, true
	default:
		return point{}, false
	}
}
