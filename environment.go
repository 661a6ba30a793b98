package typelens

// environment.go — the root handle from which construct queries start.
//
// An Environment is either assembled by the caller from already-checked
// packages (mode A) or produced by the load pipeline (mode B, see
// pipeline.go). It is a read-only index; all mutation hazards live in
// the raw model underneath it.

import (
	"fmt"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Environment indexes a checked program model: a file set plus every
// reachable *types.Package keyed by import path.
type Environment struct {
	fset   *token.FileSet
	loaded []*packages.Package
	index  map[string]*types.Package
}

// NewEnvironment builds an Environment over externally checked packages.
// Dependencies reachable through imports are indexed too.
func NewEnvironment(fset *token.FileSet, pkgs ...*types.Package) *Environment {
	env := &Environment{fset: fset, index: make(map[string]*types.Package)}
	for _, p := range pkgs {
		env.addPackage(p)
	}
	return env
}

// newLoadedEnvironment builds an Environment from a pipeline load.
func newLoadedEnvironment(fset *token.FileSet, loaded []*packages.Package) *Environment {
	env := &Environment{fset: fset, loaded: loaded, index: make(map[string]*types.Package)}
	for _, p := range loaded {
		if p.Types != nil {
			env.addPackage(p.Types)
		}
	}
	return env
}

func (e *Environment) addPackage(p *types.Package) {
	if p == nil {
		return
	}
	if _, ok := e.index[p.Path()]; ok {
		return
	}
	e.index[p.Path()] = p
	for _, imp := range p.Imports() {
		e.addPackage(imp)
	}
}

// Fset returns the environment's file set.
func (e *Environment) Fset() *token.FileSet { return e.fset }

// Loaded returns the syntax-bearing packages from the pipeline, if this
// environment came from one. Externally assembled environments return
// nil.
func (e *Environment) Loaded() []*packages.Package { return e.loaded }

// Packages returns the import paths of every indexed package, in no
// particular order.
func (e *Environment) Packages() []string {
	paths := make([]string, 0, len(e.index))
	for p := range e.index {
		paths = append(paths, p)
	}
	return paths
}

// Package returns the checked package for an import path, or nil.
func (e *Environment) Package(path string) *types.Package {
	return e.index[path]
}

// Lookup resolves a qualified top-level name of the form
// "import/path.Name" to its declaration. Import paths may themselves
// contain dots ("gopkg.in/check.v1"), but the declaration name is a
// single identifier, so the split happens at the last dot.
func (e *Environment) Lookup(qualified string) (types.Object, error) {
	path, name, err := splitQualified(qualified)
	if err != nil {
		return nil, err
	}
	pkg := e.index[path]
	if pkg == nil {
		return nil, fmt.Errorf("package %q not in environment", path)
	}
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		return nil, fmt.Errorf("no declaration %q in package %q", name, path)
	}
	return obj, nil
}

func splitQualified(qualified string) (path, name string, err error) {
	base := qualified
	slash := strings.LastIndex(qualified, "/")
	if slash >= 0 {
		base = qualified[slash+1:]
	}
	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return "", "", fmt.Errorf("malformed qualified name %q (want import/path.Name)", qualified)
	}
	if slash >= 0 {
		return qualified[:slash+1+dot], base[dot+1:], nil
	}
	return base[:dot], base[dot+1:], nil
}
