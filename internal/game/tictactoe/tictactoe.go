// Package tictactoe implements the 3x3 grid game. Moves arrive as chat
// messages carrying a free cell number (1-9); one seat may be played by
// the bot itself.
package tictactoe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chat-game-bot/internal/game"
)

// DefaultExpiry is how long an instance may sit idle before the sweep
// cancels it.
const DefaultExpiry = 5 * time.Minute

var (
	ErrNotYourTurn = errors.New("tictactoe: not this player's turn")
	ErrBadCell     = errors.New("tictactoe: cell is out of range or taken")
)

var marks = [2]string{"❌", "⭕"}

const emptyCell = "▫️"

// Game is a running tic-tac-toe match between two participants, the
// second of which may be the bot.
type Game struct {
	game.Base

	botID  int64
	board  [9]int // 0 empty, 1 first player, 2 second player
	winner int64
}

// New creates a match in the given channel. players holds the two seats
// in turn order; a seat equal to botID is played automatically.
func New(channelID int64, players [2]int64, botID int64, expiry time.Duration) *Game {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Game{
		Base:  game.NewBase("tictactoe", channelID, players[:], expiry),
		botID: botID,
	}
}

// Winner returns the id of the winning participant, or 0 before a win.
func (g *Game) Winner() int64 { return g.winner }

// IsInput reports whether content names a free cell and the author holds
// the current turn. It never mutates state.
func (g *Game) IsInput(content string, userID int64) bool {
	if g.State().Terminal() || userID != g.CurrentPlayer() || userID == g.botID {
		return false
	}
	cell, err := parseCell(content)
	if err != nil {
		return false
	}
	return g.board[cell] == 0
}

// Input applies a move for userID. The dispatcher guarantees exclusive
// access for the duration of the call.
func (g *Game) Input(ctx context.Context, content string, userID int64) error {
	if userID != g.CurrentPlayer() {
		return ErrNotYourTurn
	}
	cell, err := parseCell(content)
	if err != nil {
		return err
	}
	return g.place(cell, userID)
}

// IsBotTurn reports whether the automated seat holds the current turn.
func (g *Game) IsBotTurn() bool {
	return !g.State().Terminal() && g.CurrentPlayer() == g.botID
}

// BotInput plays one automated move: win if possible, block an imminent
// loss, otherwise prefer center, corners, then edges.
func (g *Game) BotInput(ctx context.Context) error {
	me := g.Turn() + 1
	opponent := 3 - me

	cell := g.findWinningCell(me)
	if cell < 0 {
		cell = g.findWinningCell(opponent)
	}
	if cell < 0 {
		for _, c := range [9]int{4, 0, 2, 6, 8, 1, 3, 5, 7} {
			if g.board[c] == 0 {
				cell = c
				break
			}
		}
	}
	return g.place(cell, g.botID)
}

// place marks a cell for userID, evaluates terminal conditions and
// advances the turn pointer.
func (g *Game) place(cell int, userID int64) error {
	if cell < 0 || cell > 8 || g.board[cell] != 0 {
		return ErrBadCell
	}
	mark := g.Turn() + 1
	g.board[cell] = mark

	switch {
	case g.wins(mark):
		g.winner = userID
		g.Finish(game.Win)
	case g.full():
		g.Finish(game.Tie)
	}
	g.AdvanceTurn()
	return nil
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func (g *Game) wins(mark int) bool {
	for _, l := range lines {
		if g.board[l[0]] == mark && g.board[l[1]] == mark && g.board[l[2]] == mark {
			return true
		}
	}
	return false
}

func (g *Game) full() bool {
	for _, c := range g.board {
		if c == 0 {
			return false
		}
	}
	return true
}

// findWinningCell returns a free cell that completes a line for mark,
// or -1 if none exists.
func (g *Game) findWinningCell(mark int) int {
	for _, l := range lines {
		free, count := -1, 0
		for _, c := range l {
			switch g.board[c] {
			case mark:
				count++
			case 0:
				free = c
			}
		}
		if count == 2 && free >= 0 {
			return free
		}
	}
	return -1
}

// Render returns the board as chat text.
func (g *Game) Render() string {
	var sb strings.Builder
	sb.WriteString("Tic-Tac-Toe\n")
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			switch g.board[row*3+col] {
			case 0:
				sb.WriteString(emptyCell)
			default:
				sb.WriteString(marks[g.board[row*3+col]-1])
			}
		}
		sb.WriteByte('\n')
	}

	switch g.State() {
	case game.Win:
		fmt.Fprintf(&sb, "%s wins!", marks[g.markOf(g.winner)-1])
	case game.Tie:
		sb.WriteString("It's a tie!")
	case game.Cancelled:
		sb.WriteString("Game cancelled.")
	default:
		fmt.Fprintf(&sb, "Turn: %s — send a free cell number (1-9)", marks[g.Turn()])
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

func parseCell(content string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(content))
	if err != nil || n < 1 || n > 9 {
		return 0, ErrBadCell
	}
	return n - 1, nil
}
