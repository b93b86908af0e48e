package state

import (
	"sync"
	"sync/atomic"
)

// #region holder
// Holder publishes AlertState snapshots. Readers get a consistent value
// without locking; writers are serialized so read-modify-write updates
// from the video loop and the API never lose each other's changes.
type Holder struct {
	mu  sync.Mutex
	cur atomic.Pointer[AlertState]
}

// NewHolder returns a holder publishing Initial().
func NewHolder() *Holder {
	h := &Holder{}
	s := Initial()
	h.cur.Store(&s)
	return h
}

// Load returns the current snapshot. Slices in the result are shared with
// the published value and must be treated as read-only.
func (h *Holder) Load() AlertState {
	return *h.cur.Load()
}

// Swap publishes next and returns the previous snapshot.
func (h *Holder) Swap(next AlertState) AlertState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.cur.Swap(&next)
}

// Update applies fn to a copy of the current snapshot and publishes the
// result atomically.
func (h *Holder) Update(fn func(AlertState) AlertState) AlertState {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := fn(*h.cur.Load())
	h.cur.Store(&next)
	return next
}
// #endregion holder
