package common

import (
	"errors"
	"sync/atomic"
)

// ErrReentrant is returned when a guarded section is entered while another
// call is still inside it.
var ErrReentrant = errors.New("reentrant call rejected")

// Guard admits at most one in-flight mutating call. A nested Enter, whether
// from a callback on the same goroutine or from elsewhere, fails immediately
// instead of blocking.
type Guard struct {
	active atomic.Bool
}

// Enter claims the guard or returns ErrReentrant.
func (g *Guard) Enter() error {
	if g == nil {
		return nil
	}
	if !g.active.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

// Exit releases the guard.
func (g *Guard) Exit() {
	if g == nil {
		return
	}
	g.active.Store(false)
}

// Active reports whether a call currently holds the guard.
func (g *Guard) Active() bool {
	if g == nil {
		return false
	}
	return g.active.Load()
}
