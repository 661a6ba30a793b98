package typelens

// handshake.go — one-shot deliver-then-block rendezvous.
//
// The load pipeline has a single point at which the Environment exists
// and is valid: after checking succeeds and before the driving call
// returns (returning tears down the pipeline's workspace). The
// Handshake is installed at that point. OnReady publishes the value and
// then blocks the pipeline goroutine until Close releases it, so the
// Environment stays valid for as long as anyone needs it.
//
// State machine: OPEN →(Close)→ CLOSED, terminal. Close is idempotent
// and callable from any goroutine. A Close that lands before OnReady
// makes the eventual OnReady return immediately without blocking, so an
// aborted bootstrap never leaks a parked goroutine.

import "sync"

// Handshake bridges a pipeline's single synchronous callback into a
// long-lived, externally releasable block.
type Handshake struct {
	deliver func(*Environment)
	done    chan struct{}
	once    sync.Once
}

// NewHandshake returns an open handshake that publishes through deliver.
// deliver may be nil.
func NewHandshake(deliver func(*Environment)) *Handshake {
	return &Handshake{deliver: deliver, done: make(chan struct{})}
}

// OnReady publishes env and blocks the calling goroutine until the
// handshake is closed. It is invoked at most once, by the pipeline's
// own goroutine. If the handshake is already closed it returns
// immediately after publishing.
func (h *Handshake) OnReady(env *Environment) {
	if h.deliver != nil {
		h.deliver(env)
	}
	<-h.done
}

// Close releases the handshake. Safe to call from any goroutine, any
// number of times.
func (h *Handshake) Close() {
	h.once.Do(func() { close(h.done) })
}

// Closed reports whether Close has been observed.
func (h *Handshake) Closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
