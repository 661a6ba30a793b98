// Package typelens provides a uniform, thread-safe handle onto a Go
// program model produced by the go/types checker.
//
// The raw model — types.Object declarations and types.Type usages loaded
// via golang.org/x/tools/go/packages — resolves parts of itself lazily
// and does not guarantee that first-touch resolution is safe under
// concurrent access. typelens wraps raw constructs so that completion
// happens exactly once, under a shared lock, and steady-state reads pay
// no locking cost.
//
// A Domain is the single entry point for queries. It is either bound to
// an Environment supplied by the caller, or resolves one lazily from a
// Supplier that runs the load pipeline on a background goroutine and
// keeps its result valid until released.
package typelens

import (
	"fmt"
	"go/types"
)

// Kind discriminates the two raw construct categories.
type Kind int

const (
	KindInvalid Kind = iota
	KindDecl         // a declaration: types.Object
	KindType         // a type usage: types.Type
)

func (k Kind) String() string {
	switch k {
	case KindDecl:
		return "declaration"
	case KindType:
		return "type"
	default:
		return "invalid"
	}
}

// Raw is an opaque, externally-owned construct: a types.Object or a
// types.Type. typelens never creates raw constructs, only observes them.
type Raw any

// KindOf probes the category of a raw construct. The type switch does
// not touch any lazily-resolved state, so it is safe without the lock.
func KindOf(raw Raw) Kind {
	switch raw.(type) {
	case types.Object:
		return KindDecl
	case types.Type:
		return KindType
	default:
		return KindInvalid
	}
}

// complete forces full resolution of a raw construct's structural data.
// For a type usage, Underlying() is the minimal call that expands a
// lazily-loaded named type; for a declaration, Type() plays that role.
// The go/types layer reports broken import data by panicking, so the
// panic is converted into an error here and the caller decides whether
// to retry. complete must be invoked while holding the completion lock.
func complete(raw Raw) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("complete %s construct: %v", KindOf(raw), r)
		}
	}()
	switch c := raw.(type) {
	case types.Object:
		t := c.Type()
		if t != nil {
			_ = t.Underlying()
		}
	case types.Type:
		_ = c.Underlying()
	default:
		return &ArgumentError{Op: "complete", Reason: fmt.Sprintf("not a construct: %T", raw)}
	}
	return nil
}

// rawString renders a raw construct's canonical string form. Some
// constructs compute completion-adjacent state while stringifying, so
// callers that may race must hold the completion lock.
func rawString(raw Raw) string {
	switch c := raw.(type) {
	case types.Object:
		return types.ObjectString(c, nil)
	case types.Type:
		return types.TypeString(c, nil)
	default:
		return fmt.Sprintf("%v", raw)
	}
}
