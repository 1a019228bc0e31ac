// Package command implements the bot's prefixed text commands: starting
// games, cancelling and bumping them, and the informational commands.
// The dispatcher hands a message here only after the pending-response
// waiters and the channel's game have both declined it.
package command

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"chat-game-bot/internal/config"
	"chat-game-bot/internal/dispatch"
	"chat-game-bot/internal/model"
	"chat-game-bot/internal/pkg/lock"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/session"
)

// ScoreStore is the read side of the score table consumed by the
// leaderboard command.
type ScoreStore interface {
	Top(ctx context.Context, game string, limit int) ([]model.ScoreEntry, error)

	// UserBest returns the user's best recorded entry for a game, or nil
	// when there is none.
	UserBest(ctx context.Context, game string, userID int64) (*model.ScoreEntry, error)
}

// DMOpener opens direct channels, used by games that can follow their
// player into private messages.
type DMOpener interface {
	DMChannel(ctx context.Context, userID int64) (int64, error)
}

type handlerFunc func(ctx context.Context, ev platform.MessageEvent, args []string) error

// Dependencies holds the router's collaborators.
type Dependencies struct {
	Config    *config.Config
	Registry  *session.Registry
	Pending   *dispatch.PendingResponses
	Locks     *lock.KeyedLock
	Messenger platform.Messenger
	Scores    ScoreStore // optional
	DMs       DMOpener   // optional
}

// Router resolves prefixed messages to command handlers.
type Router struct {
	cfg       *config.Config
	registry  *session.Registry
	pending   *dispatch.PendingResponses
	locks     *lock.KeyedLock
	messenger platform.Messenger
	scores    ScoreStore
	dms       DMOpener

	handlers map[string]handlerFunc
}

// New creates a command router with all handlers registered.
func New(deps Dependencies) *Router {
	r := &Router{
		cfg:       deps.Config,
		registry:  deps.Registry,
		pending:   deps.Pending,
		locks:     deps.Locks,
		messenger: deps.Messenger,
		scores:    deps.Scores,
		dms:       deps.DMs,
	}
	r.handlers = map[string]handlerFunc{
		"ttt":       r.handleTicTacToe,
		"tictactoe": r.handleTicTacToe,
		"c4":        r.handleConnect4,
		"connect4":  r.handleConnect4,
		"snake":     r.handleSnake,
		"rpg":       r.handleRPG,
		"cancel":    r.handleCancel,
		"bump":      r.handleBump,
		"stats":     r.handleStats,
		"top":       r.handleTop,
		"help":      r.handleHelp,
	}
	return r
}

// Dispatch resolves and runs the command named by ev, reporting whether
// the message matched one. Handler failures are logged and answered with
// a generic apology; the message still counts as consumed.
func (r *Router) Dispatch(ctx context.Context, ev platform.MessageEvent) bool {
	content := strings.TrimSpace(ev.Content)
	if !strings.HasPrefix(content, r.cfg.Bot.Prefix) {
		return false
	}

	fields := strings.Fields(strings.TrimPrefix(content, r.cfg.Bot.Prefix))
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	h, ok := r.handlers[name]
	if !ok {
		return false
	}

	log.Debug().
		Str("command", name).
		Int64("user_id", ev.AuthorID).
		Int64("channel_id", ev.ChannelID).
		Msg("Command")

	if err := h(ctx, ev, fields[1:]); err != nil {
		log.Warn().Err(err).
			Str("command", name).
			Int64("channel_id", ev.ChannelID).
			Msg("Command failed")
		r.reply(ctx, ev, "Something went wrong, sorry. Try again in a moment.")
	}
	return true
}

// reply sends a plain response in the command's channel; failures are
// logged, never surfaced.
func (r *Router) reply(ctx context.Context, ev platform.MessageEvent, text string) {
	if _, err := r.messenger.Send(ctx, ev.ChannelID, text, nil); err != nil {
		log.Warn().Err(err).
			Int64("channel_id", ev.ChannelID).
			Msg("Could not send reply")
	}
}
