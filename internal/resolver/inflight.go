package resolver

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrSuperseded is the cancellation cause when a newer resolve for the same
// key starts.
var ErrSuperseded = eris.New("resolver: superseded by a newer query")

// Inflight tracks one in-progress resolve per caller key. Starting a new
// resolve for a key cancels the previous one so stale results never land.
type Inflight struct {
	mu    sync.Mutex
	seq   uint64
	calls map[string]inflightCall
}

type inflightCall struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// NewInflight creates an empty tracker.
func NewInflight() *Inflight {
	return &Inflight{calls: make(map[string]inflightCall)}
}

// Begin derives a context for a resolve under key, cancelling any earlier
// resolve for the same key with ErrSuperseded. The returned done func
// releases the slot and must be called when the resolve finishes.
func (t *Inflight) Begin(ctx context.Context, key string) (context.Context, func()) {
	callCtx, cancel := context.WithCancelCause(ctx)

	t.mu.Lock()
	if prev, ok := t.calls[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	t.seq++
	id := t.seq
	t.calls[key] = inflightCall{id: id, cancel: cancel}
	t.mu.Unlock()

	return callCtx, func() {
		t.mu.Lock()
		if cur, ok := t.calls[key]; ok && cur.id == id {
			delete(t.calls, key)
		}
		t.mu.Unlock()
		cancel(nil)
	}
}

// Len returns the number of keys with a resolve in progress.
func (t *Inflight) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
