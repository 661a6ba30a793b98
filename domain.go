package typelens

// domain.go — the single entry point for construct queries.
//
// Every pass-through operation follows one contract: acquire the
// domain's completion lock, unwrap every Wrapper argument to its raw
// form, delegate to go/types, wrap raw results back up, release the lock
// on every path. Reference-identical arguments to SameType short-circuit
// to true without unwrapping or locking; that is load-bearing for
// categories with ambiguous equality such as unbound type parameters.
//
// A Domain is bound either to an Environment supplied by the caller
// (mode A; a nil Completer means the caller promises single-threaded
// use) or to a Supplier that resolves one lazily on a background
// goroutine (mode B).

import (
	"fmt"
	"go/types"
	"sync"
)

// Domain mediates all access to a program model.
type Domain struct {
	env       *Environment // mode A
	supplier  *Supplier    // mode B
	completer *Completer   // nil means single-threaded (mode A only)
	typeCtx   *types.Context
}

// NewDomain binds a Domain to an externally supplied Environment.
// completer may be nil when the caller guarantees single-threaded use.
func NewDomain(env *Environment, completer *Completer) *Domain {
	return &Domain{env: env, completer: completer, typeCtx: types.NewContext()}
}

// NewDeferredDomain binds a Domain to a Supplier; the Environment is
// resolved on first use. The completer must not be nil: a deferred
// domain exists precisely to be shared across goroutines.
func NewDeferredDomain(s *Supplier, completer *Completer) *Domain {
	if completer == nil {
		panic("typelens: deferred domain requires a completion lock")
	}
	return &Domain{supplier: s, completer: completer, typeCtx: types.NewContext()}
}

var (
	defaultOnce   sync.Once
	defaultDomain *Domain
)

// DefaultDomain returns the process-wide convenience domain: a deferred
// domain over a shared Supplier loading the current directory, guarded
// by a shared completion lock. Composition roots that want explicit
// wiring should construct their own Domain instead.
func DefaultDomain() *Domain {
	defaultOnce.Do(func() {
		defaultDomain = NewDeferredDomain(NewSupplier(LoadSpec{}, nil, nil), NewCompleter())
	})
	return defaultDomain
}

// Environment resolves the domain's environment, blocking in mode B
// until the background pipeline has delivered one.
func (d *Domain) Environment() (*Environment, error) {
	if d.env != nil {
		return d.env, nil
	}
	if d.supplier == nil {
		return nil, &ConfigError{Reason: "domain bound to neither environment nor supplier"}
	}
	return d.supplier.Get()
}

// Equal reports whether two domains wrap the same environment source
// under the same lock identity.
func (d *Domain) Equal(o *Domain) bool {
	if o == nil {
		return false
	}
	return d.env == o.env && d.supplier == o.supplier && d.completer == o.completer
}

// Lock acquires the domain's completion lock. Callers must hold it
// around any sequence of raw-model operations that might trigger
// completion outside the facade.
func (d *Domain) Lock() Releasable { return d.lockCompletion() }

func (d *Domain) lockCompletion() Releasable {
	if d.completer == nil {
		return noRelease{}
	}
	return d.completer.Lock()
}

// Wrap places a raw construct under this domain's completion regime.
// Wrapping a Wrapper returns it unchanged.
func (d *Domain) Wrap(raw any) *Wrapper { return Wrap(raw, d) }

// ---------------------------------------------------------------------------
// Argument plumbing
// ---------------------------------------------------------------------------

// unwrapArg reduces x to a raw construct, rejecting wrappers owned by a
// different domain. Must be called with the completion lock held.
func (d *Domain) unwrapArg(op string, x any) (Raw, error) {
	if w, ok := x.(*Wrapper); ok {
		if w.dom != d && !w.dom.Equal(d) {
			return nil, &ArgumentError{Op: op, Reason: "construct not addressable through this domain"}
		}
	}
	raw, err := unwrapLocked(x)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (d *Domain) unwrapType(op string, x any) (types.Type, error) {
	raw, err := d.unwrapArg(op, x)
	if err != nil {
		return nil, err
	}
	t, ok := raw.(types.Type)
	if !ok {
		return nil, &ArgumentError{Op: op, Reason: fmt.Sprintf("want a type usage, got %s", KindOf(raw))}
	}
	return t, nil
}

func (d *Domain) unwrapObject(op string, x any) (types.Object, error) {
	raw, err := d.unwrapArg(op, x)
	if err != nil {
		return nil, err
	}
	o, ok := raw.(types.Object)
	if !ok {
		return nil, &ArgumentError{Op: op, Reason: fmt.Sprintf("want a declaration, got %s", KindOf(raw))}
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// Relation queries
// ---------------------------------------------------------------------------

// SameType reports whether a and b denote the identical type. Reference-
// identical arguments short-circuit to true without unwrapping or
// locking.
func (d *Domain) SameType(a, b any) (bool, error) {
	if a == b {
		return true, nil
	}
	if wa, ok := a.(*Wrapper); ok {
		if wb, ok := b.(*Wrapper); ok && wa.Is(wb) {
			return true, nil
		}
	}
	rel := d.lockCompletion()
	defer rel.Release()
	ta, err := d.unwrapType("SameType", a)
	if err != nil {
		return false, err
	}
	tb, err := d.unwrapType("SameType", b)
	if err != nil {
		return false, err
	}
	return types.Identical(ta, tb), nil
}

// Subtype reports whether sub may stand where super is expected: for an
// interface super, implementation; otherwise identity or assignability.
func (d *Domain) Subtype(sub, super any) (bool, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	ts, err := d.unwrapType("Subtype", sub)
	if err != nil {
		return false, err
	}
	tt, err := d.unwrapType("Subtype", super)
	if err != nil {
		return false, err
	}
	if types.Identical(ts, tt) {
		return true, nil
	}
	if iface, ok := tt.Underlying().(*types.Interface); ok {
		return types.Implements(ts, iface), nil
	}
	return types.AssignableTo(ts, tt), nil
}

// AssignableTo reports whether a value of type v is assignable to a
// variable of type t.
func (d *Domain) AssignableTo(v, t any) (bool, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	tv, err := d.unwrapType("AssignableTo", v)
	if err != nil {
		return false, err
	}
	tt, err := d.unwrapType("AssignableTo", t)
	if err != nil {
		return false, err
	}
	return types.AssignableTo(tv, tt), nil
}

// ---------------------------------------------------------------------------
// Type transformations
// ---------------------------------------------------------------------------

// Erasure strips instantiation from t: an instantiated named type yields
// its generic origin, aliases are unwrapped. Other types pass through.
func (d *Domain) Erasure(t any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	tt, err := d.unwrapType("Erasure", t)
	if err != nil {
		return nil, err
	}
	tt = types.Unalias(tt)
	if named, ok := tt.(*types.Named); ok && named.TypeArgs() != nil {
		tt = named.Origin()
	}
	return d.Wrap(tt), nil
}

// Capture resolves t to its most concrete standalone form: aliases are
// unwrapped, untyped constants take their default type, and a type
// parameter yields its constraint.
func (d *Domain) Capture(t any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	tt, err := d.unwrapType("Capture", t)
	if err != nil {
		return nil, err
	}
	tt = types.Unalias(tt)
	switch c := tt.(type) {
	case *types.TypeParam:
		tt = c.Constraint()
	case *types.Basic:
		tt = types.Default(c)
	}
	return d.Wrap(tt), nil
}

// Declaration returns the declaration a type usage originates from
// (named types and type parameters have one).
func (d *Domain) Declaration(t any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	tt, err := d.unwrapType("Declaration", t)
	if err != nil {
		return nil, err
	}
	switch c := types.Unalias(tt).(type) {
	case *types.Named:
		return d.Wrap(types.Object(c.Obj())), nil
	case *types.TypeParam:
		return d.Wrap(types.Object(c.Obj())), nil
	default:
		return nil, &ArgumentError{Op: "Declaration", Reason: fmt.Sprintf("type %s has no declaration", tt)}
	}
}

// TypeOf returns the type usage declared by decl.
func (d *Domain) TypeOf(decl any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	o, err := d.unwrapObject("TypeOf", decl)
	if err != nil {
		return nil, err
	}
	return d.Wrap(o.Type()), nil
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// Instantiate applies type arguments to a generic declared type.
func (d *Domain) Instantiate(decl any, args ...any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	raw, err := d.unwrapArg("Instantiate", decl)
	if err != nil {
		return nil, err
	}
	var orig types.Type
	switch c := raw.(type) {
	case types.Object:
		tn, ok := c.(*types.TypeName)
		if !ok {
			return nil, &ArgumentError{Op: "Instantiate", Reason: "declaration is not a type name"}
		}
		orig = tn.Type()
	case types.Type:
		orig = c
	default:
		return nil, &ArgumentError{Op: "Instantiate", Reason: fmt.Sprintf("not a construct: %T", raw)}
	}
	targs := make([]types.Type, len(args))
	for i, a := range args {
		t, err := d.unwrapType("Instantiate", a)
		if err != nil {
			return nil, err
		}
		targs[i] = t
	}
	inst, err := types.Instantiate(d.typeCtx, orig, targs, true)
	if err != nil {
		return nil, &ArgumentError{Op: "Instantiate", Reason: err.Error()}
	}
	return d.Wrap(inst), nil
}

// SliceOf constructs a slice type usage.
func (d *Domain) SliceOf(elem any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	e, err := d.unwrapType("SliceOf", elem)
	if err != nil {
		return nil, err
	}
	return d.Wrap(types.Type(types.NewSlice(e))), nil
}

// ArrayOf constructs an array type usage of length n.
func (d *Domain) ArrayOf(n int64, elem any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	e, err := d.unwrapType("ArrayOf", elem)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &ArgumentError{Op: "ArrayOf", Reason: fmt.Sprintf("negative length %d", n)}
	}
	return d.Wrap(types.Type(types.NewArray(e, n))), nil
}

// PointerTo constructs a pointer type usage.
func (d *Domain) PointerTo(elem any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	e, err := d.unwrapType("PointerTo", elem)
	if err != nil {
		return nil, err
	}
	return d.Wrap(types.Type(types.NewPointer(e))), nil
}

// MapOf constructs a map type usage.
func (d *Domain) MapOf(key, val any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	k, err := d.unwrapType("MapOf", key)
	if err != nil {
		return nil, err
	}
	v, err := d.unwrapType("MapOf", val)
	if err != nil {
		return nil, err
	}
	if !types.Comparable(k) {
		return nil, &ArgumentError{Op: "MapOf", Reason: fmt.Sprintf("key type %s is not comparable", k)}
	}
	return d.Wrap(types.Type(types.NewMap(k, v))), nil
}

// ChanOf constructs a channel type usage.
func (d *Domain) ChanOf(dir types.ChanDir, elem any) (*Wrapper, error) {
	rel := d.lockCompletion()
	defer rel.Release()
	e, err := d.unwrapType("ChanOf", elem)
	if err != nil {
		return nil, err
	}
	return d.Wrap(types.Type(types.NewChan(dir, e))), nil
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// Lookup resolves a qualified top-level name ("import/path.Name") to its
// wrapped declaration.
func (d *Domain) Lookup(qualified string) (*Wrapper, error) {
	env, err := d.Environment()
	if err != nil {
		return nil, err
	}
	rel := d.lockCompletion()
	defer rel.Release()
	obj, err := env.Lookup(qualified)
	if err != nil {
		return nil, &ArgumentError{Op: "Lookup", Reason: err.Error()}
	}
	return d.Wrap(obj), nil
}

// LookupType resolves a qualified name that must denote a type and
// returns the wrapped type usage.
func (d *Domain) LookupType(qualified string) (*Wrapper, error) {
	w, err := d.Lookup(qualified)
	if err != nil {
		return nil, err
	}
	rel := d.lockCompletion()
	defer rel.Release()
	raw, err := w.rawLocked()
	if err != nil {
		return nil, err
	}
	tn, ok := raw.(*types.TypeName)
	if !ok {
		return nil, &ArgumentError{Op: "LookupType", Reason: fmt.Sprintf("%s is not a type", qualified)}
	}
	return d.Wrap(tn.Type()), nil
}

// LookupPackage returns the checked package for an import path.
func (d *Domain) LookupPackage(path string) (*types.Package, error) {
	env, err := d.Environment()
	if err != nil {
		return nil, err
	}
	pkg := env.Package(path)
	if pkg == nil {
		return nil, &ArgumentError{Op: "LookupPackage", Reason: fmt.Sprintf("package %q not in environment", path)}
	}
	return pkg, nil
}
