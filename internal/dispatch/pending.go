package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-game-bot/internal/platform"
)

// PendingResponses is a registry of one-shot predicate-based waits used
// by flows that need "the next message matching X", independent of any
// game. A qualifying inbound message completes exactly one waiter, the
// first whose predicate matches; the rest keep waiting until their own
// timeout.
type PendingResponses struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]*waiter
}

type waiter struct {
	match func(platform.MessageEvent) bool
	ch    chan platform.MessageEvent // buffered; Offer never blocks
}

// NewPendingResponses creates an empty waiter set.
func NewPendingResponses() *PendingResponses {
	return &PendingResponses{
		waiters: make(map[uuid.UUID]*waiter),
	}
}

// Wait blocks the calling flow until a message satisfying match arrives
// or timeout elapses, whichever is first. It returns the message, or nil
// on timeout or caller cancellation. The waiter entry is gone by the
// time Wait returns, on every exit path.
func (p *PendingResponses) Wait(ctx context.Context, timeout time.Duration, match func(platform.MessageEvent) bool) *platform.MessageEvent {
	id := uuid.New()
	w := &waiter{match: match, ch: make(chan platform.MessageEvent, 1)}

	p.mu.Lock()
	p.waiters[id] = w
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.waiters, id)
		p.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case ev := <-w.ch:
		return &ev
	case <-ctx.Done():
		return nil
	}
}

// Offer hands an inbound message to the waiter set. It completes the
// first waiter whose predicate matches and reports whether the message
// was consumed.
func (p *PendingResponses) Offer(ev platform.MessageEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, w := range p.waiters {
		if w.match(ev) {
			delete(p.waiters, id)
			w.ch <- ev
			return true
		}
	}
	return false
}

// Len returns the number of outstanding waiters.
func (p *PendingResponses) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
