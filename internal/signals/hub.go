// Package signals implements the named one-shot signal primitive the stage
// orchestrator suspends on: a raise resolves the oldest wait registered for
// that name, first-match-wins when a wait races several names.
package signals

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/pkg/observability"
)

// Signal names shared between the tick driver, the gateway and the
// orchestrator.
const (
	Done    = "done"
	Ready   = "ready"
	Predict = "predict"
	Key     = "key"
)

// ErrReset is returned from Wait when the hub is reset underneath a pending
// wait, e.g. on a user-initiated session restart.
var ErrReset = errors.New("signals: hub reset while waiting")

// Raised is a delivered signal.
type Raised struct {
	Name    string
	Payload any
}

type waiter struct {
	names []string
	ch    chan Raised
	gen   uint64
}

// Hub routes named signals to pending waits. Raises with no pending wait are
// dropped: triggers are one-shot and never queued, which is what keeps a
// stale decision from a previous stage from resolving a later wait. The
// generation counter guards the same property across Reset.
type Hub struct {
	mu      sync.Mutex
	gen     uint64
	waiters []*waiter
}

func NewHub() *Hub {
	return &Hub{}
}

// Raise resolves the oldest wait registered for name. The payload travels
// with the signal. Raise never blocks; it is safe to call from transport
// callbacks and from the tick driver.
func (h *Hub) Raise(name string, payload any) {
	observability.SignalsTotal.WithLabelValues(name).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, w := range h.waiters {
		if w.gen != h.gen {
			continue
		}
		for _, n := range w.names {
			if n != name {
				continue
			}
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			w.ch <- Raised{Name: name, Payload: payload}
			return
		}
	}

	log.Debug().Str("signal", name).Msg("signal raised with no pending wait; dropped")
}

// Wait suspends until one of the named signals is raised, the context is
// cancelled, or the hub is reset. First raise wins; the remaining names stay
// unresolved.
func (h *Hub) Wait(ctx context.Context, names ...string) (string, any, error) {
	h.mu.Lock()
	w := &waiter{names: names, ch: make(chan Raised, 1), gen: h.gen}
	h.waiters = append(h.waiters, w)
	h.mu.Unlock()

	select {
	case r, ok := <-w.ch:
		if !ok {
			return "", nil, ErrReset
		}
		return r.Name, r.Payload, nil
	case <-ctx.Done():
		h.remove(w)
		// A raise may have slipped in between cancellation and removal.
		select {
		case r, ok := <-w.ch:
			if ok {
				return r.Name, r.Payload, nil
			}
		default:
		}
		return "", nil, ctx.Err()
	}
}

// Reset invalidates every pending wait and bumps the generation so raises
// issued against the old session state can no longer resolve anything.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen++
	for _, w := range h.waiters {
		close(w.ch)
	}
	h.waiters = nil
}

func (h *Hub) remove(target *waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, w := range h.waiters {
		if w == target {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			return
		}
	}
}
