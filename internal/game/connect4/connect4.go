// Package connect4 implements the 7x6 drop game. Moves arrive as chat
// messages carrying a column number (1-7); one seat may be played by
// the bot itself.
package connect4

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-game-bot/internal/game"
)

const (
	Columns = 7
	Rows    = 6

	// DefaultExpiry is how long an instance may sit idle before the
	// sweep cancels it.
	DefaultExpiry = 5 * time.Minute
)

var (
	ErrNotYourTurn = errors.New("connect4: not this player's turn")
	ErrBadColumn   = errors.New("connect4: column is out of range or full")
)

var discs = [2]string{"🔴", "🟡"}

const emptySlot = "⚪"

// Game is a running Connect Four match between two participants, the
// second of which may be the bot.
type Game struct {
	game.Base

	botID  int64
	board  [Rows][Columns]int // 0 empty, 1 first player, 2 second player
	winner int64
}

// New creates a match in the given channel. players holds the two seats
// in turn order; a seat equal to botID is played automatically.
func New(channelID int64, players [2]int64, botID int64, expiry time.Duration) *Game {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Game{
		Base:  game.NewBase("connect4", channelID, players[:], expiry),
		botID: botID,
	}
}

// Winner returns the id of the winning participant, or 0 before a win.
func (g *Game) Winner() int64 { return g.winner }

// IsInput reports whether content names a non-full column and the author
// holds the current turn. It never mutates state.
func (g *Game) IsInput(content string, userID int64) bool {
	if g.State().Terminal() || userID != g.CurrentPlayer() || userID == g.botID {
		return false
	}
	col, err := parseColumn(content)
	if err != nil {
		return false
	}
	return g.board[0][col] == 0
}

// Input applies a move for userID. The dispatcher guarantees exclusive
// access for the duration of the call.
func (g *Game) Input(ctx context.Context, content string, userID int64) error {
	if userID != g.CurrentPlayer() {
		return ErrNotYourTurn
	}
	col, err := parseColumn(content)
	if err != nil {
		return err
	}
	return g.drop(col, userID)
}

// IsBotTurn reports whether the automated seat holds the current turn.
func (g *Game) IsBotTurn() bool {
	return !g.State().Terminal() && g.CurrentPlayer() == g.botID
}

// BotInput plays one automated move: win if possible, block an imminent
// loss, otherwise prefer columns closest to the center.
func (g *Game) BotInput(ctx context.Context) error {
	me := g.Turn() + 1
	opponent := 3 - me

	col := g.findWinningColumn(me)
	if col < 0 {
		col = g.findWinningColumn(opponent)
	}
	if col < 0 {
		for _, c := range [Columns]int{3, 2, 4, 1, 5, 0, 6} {
			if g.board[0][c] == 0 {
				col = c
				break
			}
		}
	}
	return g.drop(col, g.botID)
}

// drop places a disc for userID in the given column, evaluates terminal
// conditions and advances the turn pointer.
func (g *Game) drop(col int, userID int64) error {
	if col < 0 || col >= Columns || g.board[0][col] != 0 {
		return ErrBadColumn
	}
	row := Rows - 1
	for row >= 0 && g.board[row][col] != 0 {
		row--
	}
	mark := g.Turn() + 1
	g.board[row][col] = mark

	switch {
	case g.wins(mark, row, col):
		g.winner = userID
		g.Finish(game.Win)
	case g.full():
		g.Finish(game.Tie)
	}
	g.AdvanceTurn()
	return nil
}

// wins reports whether the disc just placed at (row, col) completes a
// line of four for mark.
func (g *Game) wins(mark, row, col int) bool {
	dirs := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+sign*d[0], col+sign*d[1]
			for r >= 0 && r < Rows && c >= 0 && c < Columns && g.board[r][c] == mark {
				count++
				r += sign * d[0]
				c += sign * d[1]
			}
		}
		if count >= 4 {
			return true
		}
	}
	return false
}

func (g *Game) full() bool {
	for c := 0; c < Columns; c++ {
		if g.board[0][c] == 0 {
			return false
		}
	}
	return true
}

// findWinningColumn returns a playable column that completes a line of
// four for mark, or -1 if none exists.
func (g *Game) findWinningColumn(mark int) int {
	for col := 0; col < Columns; col++ {
		if g.board[0][col] != 0 {
			continue
		}
		row := Rows - 1
		for row >= 0 && g.board[row][col] != 0 {
			row--
		}
		g.board[row][col] = mark
		won := g.wins(mark, row, col)
		g.board[row][col] = 0
		if won {
			return col
		}
	}
	return -1
}

// Render returns the board as chat text.
func (g *Game) Render() string {
	var sb strings.Builder
	sb.WriteString("Connect Four\n")
	for row := 0; row < Rows; row++ {
		for col := 0; col < Columns; col++ {
			switch g.board[row][col] {
			case 0:
				sb.WriteString(emptySlot)
			default:
				sb.WriteString(discs[g.board[row][col]-1])
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("1️⃣2️⃣3️⃣4️⃣5️⃣6️⃣7️⃣\n")

	switch g.State() {
	case game.Win:
		fmt.Fprintf(&sb, "%s wins!", discs[g.markOf(g.winner)-1])
	case game.Tie:
		sb.WriteString("It's a tie!")
	case game.Cancelled:
		sb.WriteString("Game cancelled.")
	default:
		fmt.Fprintf(&sb, "Turn: %s — send a column number (1-7)", discs[g.Turn()])
	}
	return sb.String()
}

func (g *Game) markOf(userID int64) int {
	for i, p := range g.Players() {
		if p == userID {
			return i + 1
		}
	}
	return 1
}

func parseColumn(content string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || n < 1 || n > Columns {
		return 0, ErrBadColumn
	}
	return n - 1, nil
}
