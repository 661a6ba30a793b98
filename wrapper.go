package typelens

// wrapper.go — lazy, exactly-once completion wrapper.
//
// A Wrapper defers first-touch resolution of its raw construct. The
// first Raw() call from any goroutine takes the Domain's completion
// lock, runs the completion probe, and swaps in a direct accessor; every
// later call reads that accessor without locking. A failed probe leaves
// the wrapper unresolved, so a caller-initiated retry is safe (the probe
// is idempotent).

import "sync/atomic"

// Wrapper presents one uniform handle over a raw construct, regardless
// of category. The value it yields is never itself a Wrapper.
type Wrapper struct {
	dom      *Domain
	deferred Raw

	resolved atomic.Pointer[Raw]
	str      atomic.Pointer[string]
}

// Wrap returns a Wrapper for raw within dom. Wrapping an existing
// Wrapper returns it unchanged, so unwrapping reaches a fixed point in
// at most one hop.
func Wrap(raw any, dom *Domain) *Wrapper {
	if w, ok := raw.(*Wrapper); ok {
		return w
	}
	return &Wrapper{dom: dom, deferred: raw}
}

// Domain returns the Domain this wrapper is addressable through.
func (w *Wrapper) Domain() *Domain { return w.dom }

// Kind reports the wrapped construct's category without forcing
// completion.
func (w *Wrapper) Kind() Kind { return KindOf(w.deferred) }

// Raw yields the completed raw construct. The first call completes it
// under the Domain's completion lock; subsequent calls are lock-free.
// Exactly one probe runs per wrapper no matter how many goroutines race
// here. A probe error propagates unchanged and leaves the wrapper
// retryable.
func (w *Wrapper) Raw() (Raw, error) {
	if r := w.resolved.Load(); r != nil {
		return *r, nil
	}
	rel := w.dom.lockCompletion()
	defer rel.Release()
	return w.rawLocked()
}

// rawLocked resolves the construct assuming the caller already holds the
// domain's completion lock. The lock is not reentrant, so facade
// operations that hold it across unwrap-delegate-wrap come through here.
func (w *Wrapper) rawLocked() (Raw, error) {
	if r := w.resolved.Load(); r != nil {
		return *r, nil
	}
	if err := complete(w.deferred); err != nil {
		return nil, err
	}
	raw := w.deferred
	w.resolved.Store(&raw)
	return raw, nil
}

// Is reports whether two wrappers refer to the identical raw construct.
// It delegates to raw identity without locking; identity comparison does
// not touch lazily-resolved state.
func (w *Wrapper) Is(other *Wrapper) bool {
	if other == nil {
		return false
	}
	return w.deferred == other.deferred
}

// String renders the construct's canonical form. Some raw constructs
// compute completion-adjacent state while stringifying, so the first
// call runs under the completion lock and the result is cached exactly
// once.
func (w *Wrapper) String() string {
	if s := w.str.Load(); s != nil {
		return *s
	}
	rel := w.dom.lockCompletion()
	defer rel.Release()
	if s := w.str.Load(); s != nil {
		return *s
	}
	s := rawString(w.deferred)
	w.str.Store(&s)
	return s
}

// Unwrap reduces x to a non-Wrapper value, completing wrappers as it
// goes. By construction a single hop suffices, but the loop guards the
// invariant rather than assuming it.
func Unwrap(x any) (any, error) {
	for {
		w, ok := x.(*Wrapper)
		if !ok {
			return x, nil
		}
		raw, err := w.Raw()
		if err != nil {
			return nil, err
		}
		x = raw
	}
}

// unwrapLocked is Unwrap for callers already holding the completion
// lock.
func unwrapLocked(x any) (any, error) {
	for {
		w, ok := x.(*Wrapper)
		if !ok {
			return x, nil
		}
		raw, err := w.rawLocked()
		if err != nil {
			return nil, err
		}
		x = raw
	}
}
