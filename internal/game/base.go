package game

import (
	"sync"
	"sync/atomic"
	"time"
)

// lastInstanceID feeds process-unique instance ids.
var lastInstanceID atomic.Int64

// Base carries the bookkeeping shared by all game instances: identity,
// participants, turn pointer, activity timestamps and lifecycle state.
// Concrete games embed it and layer their board on top.
//
// Board payloads are mutated only under the dispatcher's per-instance
// exclusivity guard; Base additionally guards its own fields so that the
// scheduler and registry can read them concurrently with an input.
type Base struct {
	id        int64
	name      string
	channelID int64
	players   []int64
	expiry    time.Duration

	mu         sync.Mutex
	messageID  int64
	state      State
	turn       int
	lastPlayed time.Time
}

// NewBase initializes the shared bookkeeping for a new instance. The
// first player in players moves first.
func NewBase(name string, channelID int64, players []int64, expiry time.Duration) Base {
	return Base{
		id:         lastInstanceID.Add(1),
		name:       name,
		channelID:  channelID,
		players:    players,
		expiry:     expiry,
		state:      Active,
		lastPlayed: time.Now(),
	}
}

// ID is the instance's process-unique identity, fixed at creation.
func (b *Base) ID() int64 { return b.id }

func (b *Base) Name() string { return b.name }

func (b *Base) ChannelID() int64 { return b.channelID }

func (b *Base) MessageID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messageID
}

func (b *Base) SetMessageID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messageID = id
}

// Players returns the participant list in turn order. The slice is
// shared; callers must not modify it.
func (b *Base) Players() []int64 { return b.players }

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Finish moves the instance to a terminal state. Transitions are
// monotone: once terminal, further calls are ignored.
func (b *Base) Finish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Terminal() || !s.Terminal() {
		return
	}
	b.state = s
}

func (b *Base) Cancel() {
	b.Finish(Cancelled)
}

// Turn returns the index of the participant whose turn it is.
func (b *Base) Turn() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turn
}

// CurrentPlayer returns the id of the participant whose turn it is.
func (b *Base) CurrentPlayer() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.players[b.turn]
}

// AdvanceTurn moves the turn pointer to the next participant, modulo the
// participant count, and refreshes the activity timestamp. Called once
// per accepted input, human or automated.
func (b *Base) AdvanceTurn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turn = (b.turn + 1) % len(b.players)
	b.lastPlayed = time.Now()
}

// Touch refreshes the activity timestamp without advancing the turn.
func (b *Base) Touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPlayed = time.Now()
}

func (b *Base) LastPlayed() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPlayed
}

func (b *Base) Expiry() time.Duration { return b.expiry }

// SetLastPlayed overrides the activity timestamp. Exported for expiry
// tests; production code relies on AdvanceTurn and Touch.
func (b *Base) SetLastPlayed(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPlayed = t
}
