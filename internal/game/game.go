// Package game defines the state-machine contract shared by all game
// instances and the capability interfaces the dispatcher routes on.
// Concrete games live in subpackages and compose these capabilities.
package game

import (
	"context"
	"time"
)

// State is the lifecycle state of a game instance. Transitions are
// monotone: once a terminal state is reached the instance never
// returns to Active.
type State int

const (
	Active State = iota
	Win
	Lose
	Tie
	Cancelled
)

// Terminal reports whether the state ends the game.
func (s State) Terminal() bool {
	return s != Active
}

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Win:
		return "win"
	case Lose:
		return "lose"
	case Tie:
		return "tie"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Game is the minimal surface every running instance exposes to the
// session registry, the dispatcher and the scheduler. Instances never
// hold a reference back into the registry; removal is registry-initiated.
type Game interface {
	// ID is a process-unique instance identity, fixed at creation. The
	// dispatcher keys its exclusivity guard by it; unlike the message id
	// it never changes while an input is in flight.
	ID() int64

	// Name returns the game's short name (e.g. "tictactoe").
	Name() string

	// ChannelID returns the channel the instance is bound to,
	// or 0 for instances owned by participants only.
	ChannelID() int64

	// MessageID returns the id of the message being edited to show the
	// board. It is 0 until the first render has been posted.
	MessageID() int64
	SetMessageID(id int64)

	// Players returns the ordered participant list. Index order is
	// turn order.
	Players() []int64

	State() State

	// Cancel moves an active instance to Cancelled. It is a no-op on
	// instances that already reached a terminal state.
	Cancel()

	// LastPlayed is the time of the last accepted input.
	LastPlayed() time.Time

	// Expiry is how long the instance may sit idle before the sweep
	// cancels it.
	Expiry() time.Duration

	// Render returns the current board as chat text.
	Render() string
}

// MessageGame accepts plain chat messages as input.
type MessageGame interface {
	Game

	// IsInput reports whether content is valid input from userID for the
	// current turn. It must not mutate state; the dispatcher calls it
	// both before committing to an instance and again under the
	// instance's exclusivity guard.
	IsInput(content string, userID int64) bool

	// Input applies the move. The dispatcher guarantees it is never
	// called concurrently for the same instance.
	Input(ctx context.Context, content string, userID int64) error
}

// ReactionGame accepts control-emoji input on its rendered message.
type ReactionGame interface {
	Game

	// Controls returns the control emoji to attach to the rendered message.
	Controls() []string

	// IsReactionInput reports whether emoji is valid input from userID.
	// Validity may require a platform round-trip, hence the context and
	// error return.
	IsReactionInput(ctx context.Context, emoji string, userID int64) (bool, error)

	// ReactionInput applies the control press. Same exclusivity guarantee
	// as MessageGame.Input.
	ReactionInput(ctx context.Context, emoji string, userID int64) error
}

// Multiplayer is implemented by games where a seat may be filled by the
// bot itself. After each human input the dispatcher resolves automated
// turns eagerly: it loops BotInput while IsBotTurn holds, before any
// other human input is admitted.
type Multiplayer interface {
	Game

	IsBotTurn() bool
	BotInput(ctx context.Context) error
}

// UserGame marks persistent instances owned by a single user (e.g. an
// adventure character). They occupy a participant slot rather than a
// channel slot and are exempt from expiry sweeping and terminal removal.
type UserGame interface {
	Game

	OwnerID() int64
}

// Scored is implemented by games whose terminal, non-cancelled outcomes
// are recorded in the score store.
type Scored interface {
	Game

	Score() int64
}
