package typelens

// completer.go — the completion lock.
//
// The raw model documents a first-completion hazard: forcing a lazily
// loaded construct from two goroutines at once is not safe. One
// Completer is shared by every wrapper of a Domain, so completions are
// totally ordered with respect to each other. That trades parallelism
// during warm-up for correctness; completed wrappers never touch the
// lock again.

import "sync"

// Releasable undoes a single Lock acquisition.
type Releasable interface {
	Release()
}

// Completer serializes first-touch completion of raw constructs.
// The zero value is ready to use.
type Completer struct {
	mu sync.Mutex
}

// NewCompleter returns a fresh completion lock.
func NewCompleter() *Completer { return &Completer{} }

// Lock acquires the completion lock. Callers must hold it around any
// sequence of operations that might trigger completion and release it
// on every path.
func (c *Completer) Lock() Releasable {
	c.mu.Lock()
	return releaser{c}
}

type releaser struct{ c *Completer }

func (r releaser) Release() { r.c.mu.Unlock() }

// noRelease is handed out by domains constructed without a lock, where
// the caller has promised single-threaded use.
type noRelease struct{}

func (noRelease) Release() {}
