package typelens

// pipeline.go — the one-shot analysis pipeline.
//
// A pipeline run is synchronous and single-use: configure the go driver,
// load and type-check, hand the Environment to the handshake, and tear
// everything down when the call returns. When the run materialized a
// temporary workspace (LoadSpec.Sources), returning deletes it — file
// positions and package data then point into a removed tree, which is
// exactly why OnReady must not return before the handshake is released.
//
// Diagnostics are escalated: any load or type error fails the run. The
// pipeline performs analysis only; nothing downstream of type checking
// is configured.

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"
)

// LoadSpec tells the pipeline what to load.
type LoadSpec struct {
	// Dir is the driver's working directory; empty means the current
	// directory. Ignored when Sources is set.
	Dir string
	// Patterns are go/packages load patterns; empty means "./...".
	Patterns []string
	// Sources, when non-empty, is a synthetic module: relative file
	// name to contents, materialized into a temporary workspace for the
	// lifetime of the run. A go.mod is synthesized if absent.
	Sources map[string]string
	// Env appends to the driver's environment.
	Env []string
}

// PipelineFunc runs one analysis pass, delivering its Environment
// through hs. Implementations must not return while the environment is
// in use: OnReady blocks until the handshake is released.
type PipelineFunc func(spec LoadSpec, settings *Settings, logger *log.Logger, hs *Handshake) error

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// runPipeline is the default PipelineFunc, backed by
// golang.org/x/tools/go/packages.
func runPipeline(spec LoadSpec, settings *Settings, logger *log.Logger, hs *Handshake) error {
	dir := spec.Dir
	if len(spec.Sources) > 0 {
		tmp, err := materializeWorkspace(spec.Sources)
		if err != nil {
			return &ConfigError{Reason: "materialize workspace", Err: err}
		}
		// Removing the workspace is what invalidates the delivered
		// environment; it must happen only after OnReady unblocks.
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	patterns := spec.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	fset := settings.fileSet()
	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  dir,
		Fset: fset,
	}
	if len(spec.Env) > 0 {
		cfg.Env = append(os.Environ(), spec.Env...)
	}

	if settings.verbose() {
		logger.Printf("pipeline: loading %v in %q", patterns, dir)
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return &ConfigError{Reason: "no usable load backend", Err: err}
	}
	if len(pkgs) == 0 {
		return &ConfigError{Reason: fmt.Sprintf("no packages matched %v", patterns)}
	}

	kept := pkgs[:0]
	for _, p := range pkgs {
		if settings.Excluded(p.PkgPath) {
			if settings.verbose() {
				logger.Printf("pipeline: excluding %s", p.PkgPath)
			}
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return &ConfigError{Reason: "every loaded package was excluded"}
	}

	var diags []string
	packages.Visit(kept, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			diags = append(diags, e.Error())
			logger.Printf("pipeline: %s: %s", p.PkgPath, e.Msg)
		}
	})
	if len(diags) > 0 {
		return &PipelineError{Diags: diags}
	}

	env := newLoadedEnvironment(fset, kept)
	if settings.verbose() {
		logger.Printf("pipeline: delivering environment (%d packages indexed)", len(env.index))
	}
	hs.OnReady(env)
	if settings.verbose() {
		logger.Printf("pipeline: released, tearing down")
	}
	return nil
}

// materializeWorkspace writes a synthetic module into a temp directory.
func materializeWorkspace(sources map[string]string) (string, error) {
	tmp, err := os.MkdirTemp("", "typelens-src-")
	if err != nil {
		return "", err
	}
	hasMod := false
	for name, content := range sources {
		if name == "go.mod" {
			hasMod = true
		}
		path := filepath.Join(tmp, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			os.RemoveAll(tmp)
			return "", err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			os.RemoveAll(tmp)
			return "", err
		}
	}
	if !hasMod {
		mod := "module typelens.probe\n\ngo 1.26\n"
		if err := os.WriteFile(filepath.Join(tmp, "go.mod"), []byte(mod), 0o644); err != nil {
			os.RemoveAll(tmp)
			return "", err
		}
	}
	return tmp, nil
}
