package typelens

// describe.go — declaration report for a loaded package.
//
// Describe walks a package's top-level scope through the facade's
// locking contract and produces a YAML-serializable inventory of its
// declarations. Bundle renders the report as a markdown document with
// the inventory as frontmatter, suitable for dropping into docs.

import (
	"bytes"
	"fmt"
	"go/types"
	"sort"

	"gopkg.in/yaml.v3"
)

// Report is the top-level inventory for one package. Field order
// matches the desired YAML output order; yaml.v3 respects struct field
// order.
type Report struct {
	Package   string         `yaml:"package"`
	Name      string         `yaml:"name"`
	Functions []FunctionInfo `yaml:"functions,omitempty"`
	Types     []TypeInfo     `yaml:"types,omitempty"`
	Constants []string       `yaml:"constants,omitempty"`
	Variables []string       `yaml:"variables,omitempty"`
}

// FunctionInfo describes a top-level function declaration.
type FunctionInfo struct {
	Name    string   `yaml:"name"`
	Params  []string `yaml:"params,omitempty"`
	Returns []string `yaml:"returns,omitempty"`
}

// TypeInfo describes a top-level type declaration.
type TypeInfo struct {
	Name   string      `yaml:"name"`
	Kind   string      `yaml:"kind"` // "struct" | "interface" | "alias" | "other"
	Fields []FieldInfo `yaml:"fields,omitempty"`
}

// FieldInfo describes one exported struct field.
type FieldInfo struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Describe builds the declaration report for pkgPath through d. The
// whole walk runs under the domain's completion lock: scope traversal
// forces completion of everything it touches.
func Describe(d *Domain, pkgPath string) (*Report, error) {
	pkg, err := d.LookupPackage(pkgPath)
	if err != nil {
		return nil, err
	}

	rel := d.Lock()
	defer rel.Release()

	qualifier := func(p *types.Package) string {
		if p == pkg {
			return ""
		}
		return p.Name()
	}

	r := &Report{Package: pkg.Path(), Name: pkg.Name()}
	scope := pkg.Scope()
	names := append([]string(nil), scope.Names()...)
	sort.Strings(names)
	for _, name := range names {
		switch obj := scope.Lookup(name).(type) {
		case *types.Func:
			sig, ok := obj.Type().(*types.Signature)
			if !ok {
				continue
			}
			r.Functions = append(r.Functions, functionInfo(obj.Name(), sig, qualifier))
		case *types.TypeName:
			r.Types = append(r.Types, typeInfo(obj, qualifier))
		case *types.Const:
			r.Constants = append(r.Constants, obj.Name())
		case *types.Var:
			r.Variables = append(r.Variables, obj.Name())
		}
	}
	return r, nil
}

func functionInfo(name string, sig *types.Signature, qualifier types.Qualifier) FunctionInfo {
	fn := FunctionInfo{Name: name}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		ts := types.TypeString(params.At(i).Type(), qualifier)
		if sig.Variadic() && i == params.Len()-1 {
			ts = "..." + ts
		}
		fn.Params = append(fn.Params, ts)
	}
	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		fn.Returns = append(fn.Returns, types.TypeString(results.At(i).Type(), qualifier))
	}
	return fn
}

func typeInfo(obj *types.TypeName, qualifier types.Qualifier) TypeInfo {
	ti := TypeInfo{Name: obj.Name()}
	if obj.IsAlias() {
		ti.Kind = "alias"
		return ti
	}
	switch u := obj.Type().Underlying().(type) {
	case *types.Struct:
		ti.Kind = "struct"
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !f.Exported() {
				continue
			}
			ti.Fields = append(ti.Fields, FieldInfo{
				Name: f.Name(),
				Type: types.TypeString(f.Type(), qualifier),
			})
		}
	case *types.Interface:
		ti.Kind = "interface"
	default:
		ti.Kind = "other"
	}
	return ti
}

// Bundle renders the report as a markdown document carrying the
// inventory as YAML frontmatter between --- delimiters.
func (r *Report) Bundle(body string) ([]byte, error) {
	fm, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("describe: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString(body)
	}
	return buf.Bytes(), nil
}
