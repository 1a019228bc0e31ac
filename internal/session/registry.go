// Package session holds the authoritative set of active game instances,
// keyed by the slots they occupy: a channel for channel-bound games, the
// owning participants for user-bound ones. All lookups and mutations are
// safe under concurrent use; callers hold no external locks.
package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"chat-game-bot/internal/game"
)

// ErrSlotConflict reports an insertion into a slot already occupied by a
// non-terminal instance. Surfaced to the command layer as "a game is
// already running here".
var ErrSlotConflict = errors.New("session: a game is already running in this slot")

type slotKind int

const (
	slotChannel slotKind = iota
	slotUser
)

type slot struct {
	kind slotKind
	id   int64
}

// slotsOf derives the slot keys an instance occupies. Persistent user
// games occupy their owner's slot wherever they are rendered; other
// games occupy their channel, or their participants when channel-free.
func slotsOf(g game.Game) []slot {
	if ug, ok := g.(game.UserGame); ok {
		return []slot{{slotUser, ug.OwnerID()}}
	}
	if cid := g.ChannelID(); cid != 0 {
		return []slot{{slotChannel, cid}}
	}
	return lo.Map(g.Players(), func(p int64, _ int) slot {
		return slot{slotUser, p}
	})
}

// Registry is the in-memory index of active game instances.
type Registry struct {
	mu       sync.Mutex
	games    []game.Game
	onUpdate func(game.Game)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// SetUpdateFunc installs the callback fired by Remove when notify is
// set, typically a best-effort re-render of the departing instance.
// Must be called before the registry is shared.
func (r *Registry) SetUpdateFunc(fn func(game.Game)) {
	r.onUpdate = fn
}

// Add inserts an instance. The conflict check and insertion are a single
// atomic step: of two racing Adds for the same slot, exactly one wins.
func (r *Registry) Add(g game.Game) error {
	slots := slotsOf(g)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.games {
		if existing.State().Terminal() {
			continue
		}
		if len(lo.Intersect(slotsOf(existing), slots)) > 0 {
			return ErrSlotConflict
		}
	}
	r.games = append(r.games, g)

	log.Debug().
		Str("game", g.Name()).
		Int64("channel_id", g.ChannelID()).
		Int("active", len(r.games)).
		Msg("Game added")
	return nil
}

// Remove deletes an instance unconditionally; removing an instance that
// is not present is a no-op. When notify is set the update callback
// fires after removal; bulk sweeps suppress it and batch their own
// updates.
func (r *Registry) Remove(g game.Game, notify bool) {
	r.mu.Lock()
	before := len(r.games)
	r.games = lo.Without(r.games, g)
	removed := len(r.games) < before
	r.mu.Unlock()

	if !removed {
		return
	}
	log.Debug().
		Str("game", g.Name()).
		Int64("channel_id", g.ChannelID()).
		Str("state", g.State().String()).
		Msg("Game removed")
	if notify && r.onUpdate != nil {
		r.onUpdate(g)
	}
}

// All returns a point-in-time snapshot for iteration by the scheduler
// and statistics commands.
func (r *Registry) All() []game.Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]game.Game, len(r.games))
	copy(out, r.games)
	return out
}

// Count returns the number of registered instances.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games)
}

// Find returns the instance bound to channelID that satisfies the
// capability T, e.g. Find[game.MessageGame] for games that accept text
// input. Channel-slotted instances take precedence: a user game summoned
// into the channel is returned only when no board game is running there,
// so it can never shadow one from the dispatcher's input routing.
func Find[T game.Game](r *Registry, channelID int64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var summoned T
	found := false
	for _, g := range r.games {
		if g.ChannelID() != channelID {
			continue
		}
		t, ok := g.(T)
		if !ok {
			continue
		}
		if _, user := g.(game.UserGame); !user {
			return t, true
		}
		if !found {
			summoned, found = t, true
		}
	}
	return summoned, found
}

// FindByMessage returns the reaction-accepting instance whose rendered
// message matches messageID. Only the bot's own renders are registered,
// so a match implies the reacted-to message belongs to the bot.
func (r *Registry) FindByMessage(messageID int64) (game.ReactionGame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		rg, ok := g.(game.ReactionGame)
		if ok && rg.MessageID() == messageID {
			return rg, true
		}
	}
	return nil, false
}

// FindByParticipant returns the persistent user-owned instance belonging
// to userID.
func (r *Registry) FindByParticipant(userID int64) (game.UserGame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.games {
		ug, ok := g.(game.UserGame)
		if ok && ug.OwnerID() == userID {
			return ug, true
		}
	}
	return nil, false
}
