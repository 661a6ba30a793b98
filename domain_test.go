package typelens_test

import (
	"errors"
	"go/token"
	"go/types"
	"sync"
	"testing"

	"typelens"
)

// demoEnv assembles a small checked package by hand:
//
//	package demo // example.com/demo
//	type Fruit int
//	type Veg int
//	type Any interface{}
//	type Box[T any] struct{}
//	var Basket Fruit
//	func Peel(f Fruit) int
func demoEnv(t *testing.T) (*typelens.Environment, *types.Package) {
	t.Helper()
	pkg := types.NewPackage("example.com/demo", "demo")
	scope := pkg.Scope()

	fruitObj := types.NewTypeName(token.NoPos, pkg, "Fruit", nil)
	types.NewNamed(fruitObj, types.Typ[types.Int], nil)
	scope.Insert(fruitObj)

	vegObj := types.NewTypeName(token.NoPos, pkg, "Veg", nil)
	types.NewNamed(vegObj, types.Typ[types.Int], nil)
	scope.Insert(vegObj)

	anyObj := types.NewTypeName(token.NoPos, pkg, "Any", nil)
	iface := types.NewInterfaceType(nil, nil)
	iface.Complete()
	types.NewNamed(anyObj, iface, nil)
	scope.Insert(anyObj)

	boxObj := types.NewTypeName(token.NoPos, pkg, "Box", nil)
	boxNamed := types.NewNamed(boxObj, types.NewStruct(nil, nil), nil)
	constraint := types.NewInterfaceType(nil, nil)
	constraint.Complete()
	tparam := types.NewTypeParam(types.NewTypeName(token.NoPos, pkg, "T", nil), constraint)
	boxNamed.SetTypeParams([]*types.TypeParam{tparam})
	scope.Insert(boxObj)

	scope.Insert(types.NewVar(token.NoPos, pkg, "Basket", fruitObj.Type()))

	sig := types.NewSignatureType(nil, nil, nil,
		types.NewTuple(types.NewVar(token.NoPos, pkg, "f", fruitObj.Type())),
		types.NewTuple(types.NewVar(token.NoPos, pkg, "", types.Typ[types.Int])),
		false)
	scope.Insert(types.NewFunc(token.NoPos, pkg, "Peel", sig))

	pkg.MarkComplete()
	return typelens.NewEnvironment(token.NewFileSet(), pkg), pkg
}

func demoDomain(t *testing.T) *typelens.Domain {
	t.Helper()
	env, _ := demoEnv(t)
	return typelens.NewDomain(env, typelens.NewCompleter())
}

func TestSameTypeIdentical(t *testing.T) {
	dom := demoDomain(t)
	a, err := dom.LookupType("example.com/demo.Fruit")
	if err != nil {
		t.Fatalf("LookupType: %v", err)
	}
	b, err := dom.LookupType("example.com/demo.Fruit")
	if err != nil {
		t.Fatalf("LookupType: %v", err)
	}
	ok, err := dom.SameType(a, b)
	if err != nil {
		t.Fatalf("SameType: %v", err)
	}
	if !ok {
		t.Fatal("Fruit must be the same type as Fruit")
	}

	v, _ := dom.LookupType("example.com/demo.Veg")
	ok, err = dom.SameType(a, v)
	if err != nil {
		t.Fatalf("SameType: %v", err)
	}
	if ok {
		t.Fatal("Fruit must not be the same type as Veg")
	}
}

// TestSameTypeIdentityShortCircuit: reference-identical arguments
// short-circuit before any unwrapping, so the probe never runs.
func TestSameTypeIdentityShortCircuit(t *testing.T) {
	dom := demoDomain(t)
	f := &fakeType{name: "ambiguous"}
	w := dom.Wrap(f)

	ok, err := dom.SameType(w, w)
	if err != nil {
		t.Fatalf("SameType: %v", err)
	}
	if !ok {
		t.Fatal("a construct must be the same type as itself")
	}
	if n := f.probes.Load(); n != 0 {
		t.Fatalf("identity short-circuit ran %d probes, want 0", n)
	}
}

func TestSubtypeInterface(t *testing.T) {
	dom := demoDomain(t)
	fruit, _ := dom.LookupType("example.com/demo.Fruit")
	anyT, _ := dom.LookupType("example.com/demo.Any")

	ok, err := dom.Subtype(fruit, anyT)
	if err != nil {
		t.Fatalf("Subtype: %v", err)
	}
	if !ok {
		t.Fatal("every type implements the empty interface")
	}

	veg, _ := dom.LookupType("example.com/demo.Veg")
	ok, err = dom.Subtype(fruit, veg)
	if err != nil {
		t.Fatalf("Subtype: %v", err)
	}
	if ok {
		t.Fatal("Fruit must not be a subtype of Veg")
	}
}

func TestAssignableTo(t *testing.T) {
	dom := demoDomain(t)
	fruit, _ := dom.LookupType("example.com/demo.Fruit")

	slice, err := dom.SliceOf(fruit)
	if err != nil {
		t.Fatalf("SliceOf: %v", err)
	}
	slice2, _ := dom.SliceOf(fruit)
	ok, err := dom.AssignableTo(slice, slice2)
	if err != nil {
		t.Fatalf("AssignableTo: %v", err)
	}
	if !ok {
		t.Fatal("identical slice types must be assignable")
	}

	veg, _ := dom.LookupType("example.com/demo.Veg")
	ok, err = dom.AssignableTo(fruit, veg)
	if err != nil {
		t.Fatalf("AssignableTo: %v", err)
	}
	if ok {
		t.Fatal("Fruit must not be assignable to Veg")
	}
}

func TestWrongCategoryArgument(t *testing.T) {
	dom := demoDomain(t)
	decl, err := dom.Lookup("example.com/demo.Peel")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	fruit, _ := dom.LookupType("example.com/demo.Fruit")

	_, err = dom.SameType(decl, fruit)
	var argErr *typelens.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("SameType with a declaration: got %v, want ArgumentError", err)
	}
}

func TestForeignDomainArgument(t *testing.T) {
	dom1 := demoDomain(t)
	dom2 := demoDomain(t)

	foreign, err := dom2.LookupType("example.com/demo.Fruit")
	if err != nil {
		t.Fatalf("LookupType: %v", err)
	}
	local, _ := dom1.LookupType("example.com/demo.Veg")

	_, err = dom1.SameType(local, foreign)
	var argErr *typelens.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("foreign-domain construct: got %v, want ArgumentError", err)
	}
}

func TestConstruction(t *testing.T) {
	dom := demoDomain(t)
	fruit, _ := dom.LookupType("example.com/demo.Fruit")

	arr, err := dom.ArrayOf(4, fruit)
	if err != nil {
		t.Fatalf("ArrayOf: %v", err)
	}
	if got := arr.String(); got != "[4]example.com/demo.Fruit" {
		t.Errorf("ArrayOf = %q", got)
	}

	if _, err := dom.ArrayOf(-1, fruit); err == nil {
		t.Error("negative array length must be rejected")
	}

	ptr, err := dom.PointerTo(fruit)
	if err != nil {
		t.Fatalf("PointerTo: %v", err)
	}
	if got := ptr.String(); got != "*example.com/demo.Fruit" {
		t.Errorf("PointerTo = %q", got)
	}

	m, err := dom.MapOf(fruit, ptr)
	if err != nil {
		t.Fatalf("MapOf: %v", err)
	}
	if got := m.String(); got != "map[example.com/demo.Fruit]*example.com/demo.Fruit" {
		t.Errorf("MapOf = %q", got)
	}

	fn, _ := dom.Lookup("example.com/demo.Peel")
	fnType, err := dom.TypeOf(fn)
	if err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	if _, err := dom.MapOf(fnType, fruit); err == nil {
		t.Error("non-comparable map key must be rejected")
	}

	ch, err := dom.ChanOf(types.SendRecv, fruit)
	if err != nil {
		t.Fatalf("ChanOf: %v", err)
	}
	if got := ch.String(); got != "chan example.com/demo.Fruit" {
		t.Errorf("ChanOf = %q", got)
	}
}

func TestInstantiateAndErasure(t *testing.T) {
	dom := demoDomain(t)
	box, err := dom.Lookup("example.com/demo.Box")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	fruit, _ := dom.LookupType("example.com/demo.Fruit")

	inst, err := dom.Instantiate(box, fruit)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if got := inst.String(); got != "example.com/demo.Box[example.com/demo.Fruit]" {
		t.Errorf("Instantiate = %q", got)
	}

	erased, err := dom.Erasure(inst)
	if err != nil {
		t.Fatalf("Erasure: %v", err)
	}
	generic, _ := dom.TypeOf(box)
	ok, err := dom.SameType(erased, generic)
	if err != nil {
		t.Fatalf("SameType: %v", err)
	}
	if !ok {
		t.Fatal("erasing an instantiation must yield its generic origin")
	}

	// Wrong arity is a precondition violation.
	if _, err := dom.Instantiate(box, fruit, fruit); err == nil {
		t.Error("Instantiate with wrong arity must fail")
	}
}

func TestCapture(t *testing.T) {
	dom := demoDomain(t)

	w, err := dom.Capture(types.Typ[types.UntypedInt])
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if got := w.String(); got != "int" {
		t.Errorf("Capture(untyped int) = %q, want int", got)
	}
}

func TestDeclarationAndTypeOf(t *testing.T) {
	dom := demoDomain(t)
	fruitType, _ := dom.LookupType("example.com/demo.Fruit")

	decl, err := dom.Declaration(fruitType)
	if err != nil {
		t.Fatalf("Declaration: %v", err)
	}
	if decl.Kind() != typelens.KindDecl {
		t.Fatalf("Declaration kind = %v, want KindDecl", decl.Kind())
	}

	back, err := dom.TypeOf(decl)
	if err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	ok, err := dom.SameType(fruitType, back)
	if err != nil {
		t.Fatalf("SameType: %v", err)
	}
	if !ok {
		t.Fatal("TypeOf(Declaration(T)) must be T")
	}

	_, err = dom.Declaration(types.Typ[types.Int])
	var argErr *typelens.ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("Declaration(int): got %v, want ArgumentError", err)
	}
}

func TestLookupErrors(t *testing.T) {
	dom := demoDomain(t)

	if _, err := dom.Lookup("example.com/demo.NoSuch"); err == nil {
		t.Error("missing declaration must fail")
	}
	if _, err := dom.Lookup("example.com/other.Fruit"); err == nil {
		t.Error("missing package must fail")
	}
	if _, err := dom.Lookup("garbage"); err == nil {
		t.Error("malformed qualified name must fail")
	}
	if _, err := dom.LookupType("example.com/demo.Basket"); err == nil {
		t.Error("LookupType of a variable must fail")
	}
	if _, err := dom.LookupPackage("example.com/other"); err == nil {
		t.Error("LookupPackage of an unknown path must fail")
	}
}

func TestDomainEqual(t *testing.T) {
	env, _ := demoEnv(t)
	lock := typelens.NewCompleter()
	a := typelens.NewDomain(env, lock)
	b := typelens.NewDomain(env, lock)
	c := typelens.NewDomain(env, typelens.NewCompleter())

	if !a.Equal(b) {
		t.Error("domains over the same environment and lock must be equal")
	}
	if a.Equal(c) {
		t.Error("domains with different lock identity must not be equal")
	}
	if a.Equal(nil) {
		t.Error("a domain must not equal nil")
	}
}

// TestDeferredDomainConcurrentQueries: mode B, two goroutines querying
// the same wrapped type concurrently. Both must succeed, no deadlock.
func TestDeferredDomainConcurrentQueries(t *testing.T) {
	env, _ := demoEnv(t)
	sup := typelens.NewSupplierFunc(typelens.LoadSpec{}, nil, discardLogger(),
		deliverPipeline(env, nil))
	defer sup.Close()
	dom := typelens.NewDeferredDomain(sup, typelens.NewCompleter())

	w, err := dom.LookupType("example.com/demo.Fruit")
	if err != nil {
		t.Fatalf("LookupType: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := dom.SameType(w, w)
			if err != nil {
				t.Errorf("SameType: %v", err)
				return
			}
			if !ok {
				t.Error("SameType(T, T) must be true")
			}
		}()
	}
	wg.Wait()
}
