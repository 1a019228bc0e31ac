// Package dispatch routes inbound chat events to the component that
// claims them. Messages walk a priority chain — pending-response waits,
// then the channel's message game, then ordinary commands — stopping at
// the first match; reactions go straight to the game rendering the
// reacted-to message. Every event is handled on its own goroutine so a
// slow or failing handler never blocks the event source, and input for
// any single game instance is serialized behind a per-instance guard.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"chat-game-bot/internal/game"
	"chat-game-bot/internal/model"
	"chat-game-bot/internal/pkg/lock"
	"chat-game-bot/internal/platform"
	"chat-game-bot/internal/session"
)

// memberRefreshInterval throttles guild member downloads.
const memberRefreshInterval = 30 * time.Minute

// Commands resolves and executes ordinary chat commands. It reports
// whether the message matched a command.
type Commands interface {
	Dispatch(ctx context.Context, ev platform.MessageEvent) bool
}

// CommandsFunc adapts a function to the Commands interface.
type CommandsFunc func(ctx context.Context, ev platform.MessageEvent) bool

// Dispatch implements Commands.
func (f CommandsFunc) Dispatch(ctx context.Context, ev platform.MessageEvent) bool {
	return f(ctx, ev)
}

// ScoreRecorder persists terminal outcomes of score-eligible games.
type ScoreRecorder interface {
	Record(ctx context.Context, entry model.ScoreEntry) error
}

// Dependencies holds everything the dispatcher needs.
type Dependencies struct {
	Registry  *session.Registry
	Pending   *PendingResponses
	Locks     *lock.KeyedLock
	Messenger platform.Messenger
	Commands  Commands
	Scores    ScoreRecorder // optional
}

// Dispatcher owns input routing and the per-instance exclusivity guard.
type Dispatcher struct {
	registry  *session.Registry
	pending   *PendingResponses
	locks     *lock.KeyedLock
	messenger platform.Messenger
	commands  Commands
	scores    ScoreRecorder

	// Priority-ordered handlers for message events; the first to claim
	// the event wins.
	messageChain []func(ctx context.Context, ev platform.MessageEvent) bool

	dmMu       sync.Mutex
	dmChannels map[int64]int64 // userID -> DM channel

	memberMu    sync.Mutex
	lastMembers map[int64]time.Time // guildID -> last refresh
}

// New creates a dispatcher.
func New(deps Dependencies) *Dispatcher {
	d := &Dispatcher{
		registry:    deps.Registry,
		pending:     deps.Pending,
		locks:       deps.Locks,
		messenger:   deps.Messenger,
		commands:    deps.Commands,
		scores:      deps.Scores,
		dmChannels:  make(map[int64]int64),
		lastMembers: make(map[int64]time.Time),
	}
	d.messageChain = []func(ctx context.Context, ev platform.MessageEvent) bool{
		d.tryPending,
		d.tryMessageGame,
		d.tryCommand,
	}
	return d
}

// HandleMessage is the gateway-facing entry point for message events.
// It filters events the bot must ignore and offloads the rest; it never
// blocks the caller.
func (d *Dispatcher) HandleMessage(ev platform.MessageEvent) {
	if ev.IsBot || ev.AuthorID == d.messenger.BotID() || !ev.CanRespond {
		return
	}
	go d.dispatchMessage(ev)
}

// HandleReaction is the gateway-facing entry point for reaction events,
// addition and removal alike.
func (d *Dispatcher) HandleReaction(ev platform.ReactionEvent) {
	if ev.UserID == d.messenger.BotID() {
		return
	}
	go d.dispatchReaction(ev)
}

func (d *Dispatcher) dispatchMessage(ev platform.MessageEvent) {
	defer d.recoverPanic("message", ev.ChannelID, ev.AuthorID)

	ctx := context.Background()
	for _, try := range d.messageChain {
		if try(ctx, ev) {
			break
		}
	}
	if ev.GuildID != 0 {
		go d.ensureMembers(ev.GuildID)
	}
}

func (d *Dispatcher) dispatchReaction(ev platform.ReactionEvent) {
	defer d.recoverPanic("reaction", ev.ChannelID, ev.UserID)

	ctx := context.Background()

	// Only the bot's own rendered boards are registered, so a match also
	// establishes that the reacted-to message belongs to the bot.
	g, ok := d.registry.FindByMessage(ev.MessageID)
	if !ok {
		return
	}
	d.applyReactionInput(ctx, g, ev)

	if ev.GuildID != 0 {
		go d.ensureMembers(ev.GuildID)
	}
}

// applyReactionInput runs one control press under the instance's guard:
// re-validate, apply, then settle and re-render.
func (d *Dispatcher) applyReactionInput(ctx context.Context, g game.ReactionGame, ev platform.ReactionEvent) {
	key := g.ID()
	d.locks.Lock(key)
	defer d.locks.Unlock(key)

	valid, err := g.IsReactionInput(ctx, ev.Emoji, ev.UserID)
	if err != nil {
		log.Warn().Err(err).
			Int64("channel_id", ev.ChannelID).
			Int64("user_id", ev.UserID).
			Msg("Could not validate reaction input")
		return
	}
	if !valid {
		// Stale or foreign input; the board already reflects whichever
		// event won the race.
		return
	}

	log.Debug().
		Str("game", g.Name()).
		Str("emoji", ev.Emoji).
		Int64("user_id", ev.UserID).
		Int64("channel_id", ev.ChannelID).
		Msg("Reaction input")

	if err := g.ReactionInput(ctx, ev.Emoji, ev.UserID); err != nil {
		log.Warn().Err(err).
			Str("game", g.Name()).
			Int64("channel_id", ev.ChannelID).
			Msg("Reaction input failed")
		return
	}
	d.settle(ctx, g, ev.UserID, ev.UserName)
}

// tryPending hands the message to the pending-response waiter set.
func (d *Dispatcher) tryPending(_ context.Context, ev platform.MessageEvent) bool {
	return d.pending.Offer(ev)
}

// tryMessageGame routes the message to the channel's message-accepting
// game, if the content is valid input for the current turn.
func (d *Dispatcher) tryMessageGame(ctx context.Context, ev platform.MessageEvent) bool {
	g, ok := session.Find[game.MessageGame](d.registry, ev.ChannelID)
	if !ok || !g.IsInput(ev.Content, ev.AuthorID) {
		return false
	}
	d.applyMessageInput(ctx, g, ev)
	return true
}

func (d *Dispatcher) tryCommand(ctx context.Context, ev platform.MessageEvent) bool {
	return d.commands != nil && d.commands.Dispatch(ctx, ev)
}

// applyMessageInput runs one input step under the instance's guard:
// apply, resolve automated turns, then settle and re-render.
func (d *Dispatcher) applyMessageInput(ctx context.Context, g game.MessageGame, ev platform.MessageEvent) {
	key := g.ID()
	d.locks.Lock(key)
	defer d.locks.Unlock(key)

	// Re-validate under the guard: the turn may have moved on while
	// another event held it. Stale input is dropped, not queued.
	if !g.IsInput(ev.Content, ev.AuthorID) {
		log.Debug().
			Str("game", g.Name()).
			Int64("user_id", ev.AuthorID).
			Msg("Dropped input that went stale in flight")
		return
	}

	log.Debug().
		Str("game", g.Name()).
		Str("input", ev.Content).
		Int64("user_id", ev.AuthorID).
		Int64("channel_id", ev.ChannelID).
		Msg("Message input")

	if err := g.Input(ctx, ev.Content, ev.AuthorID); err != nil {
		log.Warn().Err(err).
			Str("game", g.Name()).
			Int64("channel_id", ev.ChannelID).
			Msg("Message input failed")
		return
	}

	d.driveBotTurns(ctx, g)
	d.settle(ctx, g, ev.AuthorID, ev.AuthorName)
}

// driveBotTurns resolves automated turns eagerly after a human input,
// before the instance's guard is released, so no other human input can
// interleave.
func (d *Dispatcher) driveBotTurns(ctx context.Context, g game.Game) {
	mp, ok := g.(game.Multiplayer)
	if !ok {
		return
	}
	for mp.IsBotTurn() {
		if err := mp.BotInput(ctx); err != nil {
			log.Warn().Err(err).
				Str("game", g.Name()).
				Int64("channel_id", g.ChannelID()).
				Msg("Automated move failed")
			return
		}
	}
}

// settle finishes an input step: removes terminal instances from the
// registry (persistent user games stay), records eligible scores,
// re-renders, and strips controls from finished boards.
func (d *Dispatcher) settle(ctx context.Context, g game.Game, actorID int64, actorName string) {
	terminal := g.State().Terminal()
	if terminal {
		if _, persistent := g.(game.UserGame); !persistent {
			// No notify: the render below is this step's update.
			d.registry.Remove(g, false)
		}
		d.recordScore(ctx, g, actorID, actorName)
	}

	d.render(ctx, g)

	if terminal {
		if rg, ok := g.(game.ReactionGame); ok {
			if err := d.messenger.ClearControls(ctx, rg.ChannelID(), rg.MessageID()); err != nil {
				log.Debug().Err(err).
					Int64("channel_id", rg.ChannelID()).
					Msg("Could not clear controls")
			}
		}
	}
}

func (d *Dispatcher) recordScore(ctx context.Context, g game.Game, actorID int64, actorName string) {
	sc, ok := g.(game.Scored)
	if !ok || g.State() == game.Cancelled || d.scores == nil {
		return
	}
	entry := model.ScoreEntry{
		Game:      g.Name(),
		UserID:    actorID,
		Username:  actorName,
		Score:     sc.Score(),
		Outcome:   g.State().String(),
		ChannelID: g.ChannelID(),
		PlayedAt:  time.Now(),
	}
	if err := d.scores.Record(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("game", g.Name()).
			Int64("user_id", actorID).
			Msg("Could not record score")
	}
}

// render edits the instance's message to the current board. A deleted
// target message is tolerated; other failures are logged.
func (d *Dispatcher) render(ctx context.Context, g game.Game) {
	var controls []string
	if rg, ok := g.(game.ReactionGame); ok && !g.State().Terminal() {
		controls = rg.Controls()
	}
	err := d.messenger.Edit(ctx, g.ChannelID(), g.MessageID(), g.Render(), controls)
	switch {
	case errors.Is(err, platform.ErrMessageNotFound):
		log.Debug().
			Str("game", g.Name()).
			Int64("channel_id", g.ChannelID()).
			Msg("Render target is gone")
	case err != nil:
		log.Warn().Err(err).
			Str("game", g.Name()).
			Int64("channel_id", g.ChannelID()).
			Msg("Render failed")
	}
}

// ensureMembers asks the gateway to populate a guild's member list, at
// most once per refresh interval per guild.
func (d *Dispatcher) ensureMembers(guildID int64) {
	defer d.recoverPanic("members", 0, 0)

	d.memberMu.Lock()
	last, seen := d.lastMembers[guildID]
	if seen && time.Since(last) < memberRefreshInterval {
		d.memberMu.Unlock()
		return
	}
	d.lastMembers[guildID] = time.Now()
	d.memberMu.Unlock()

	if err := d.messenger.RequestMembers(context.Background(), guildID); err != nil {
		log.Debug().Err(err).Int64("guild_id", guildID).Msg("Member download failed")
		return
	}
	log.Debug().Int64("guild_id", guildID).Msg("Requested guild members")
}

// DMChannel opens (or returns the cached) direct channel with a user.
func (d *Dispatcher) DMChannel(ctx context.Context, userID int64) (int64, error) {
	d.dmMu.Lock()
	if id, ok := d.dmChannels[userID]; ok {
		d.dmMu.Unlock()
		return id, nil
	}
	d.dmMu.Unlock()

	id, err := d.messenger.CreateDM(ctx, userID)
	if err != nil {
		return 0, err
	}

	d.dmMu.Lock()
	d.dmChannels[userID] = id
	d.dmMu.Unlock()
	return id, nil
}

// recoverPanic isolates per-event failures: one crashed handler must
// never stop future events from being processed.
func (d *Dispatcher) recoverPanic(kind string, channelID, userID int64) {
	if r := recover(); r != nil {
		log.Error().
			Interface("panic", r).
			Str("event", kind).
			Int64("channel_id", channelID).
			Int64("user_id", userID).
			Msg("Recovered from input handler panic")
	}
}
