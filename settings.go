package typelens

// settings.go — typelens configuration loaded from .typelens/settings.yaml.
//
// Settings tune the load pipeline, not its observable results: verbose
// diagnostics, the symbol-table sharing variant, and exclude globs that
// drop matching package paths from the environment. Patterns may be
// written as bare globs ("internal/gen/**") or wrapped in a Load() verb
// ("Load(./internal/gen/**)") for symmetry with pattern arguments.

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SymbolTable selects how the pipeline stores names and positions.
type SymbolTable string

const (
	// SymbolsShared reuses one process-wide file set across rebuilds.
	// Positions stay comparable between environments; the table only
	// grows.
	SymbolsShared SymbolTable = "shared"
	// SymbolsIsolated gives each pipeline run its own file set.
	SymbolsIsolated SymbolTable = "isolated"
)

// Settings holds typelens configuration from .typelens/settings.yaml.
type Settings struct {
	// Verbose routes per-phase pipeline progress to the log sink.
	Verbose bool `yaml:"verbose"`
	// Symbols is the symbol-table variant; empty means isolated.
	Symbols SymbolTable `yaml:"symbols"`
	// Exclude lists glob patterns for package paths to drop after load.
	Exclude []string `yaml:"exclude"`
}

// LoadSettings reads .typelens/settings.yaml relative to root.
// Returns nil (not an error) if the file does not exist.
func LoadSettings(root string) (*Settings, error) {
	path := filepath.Join(root, ".typelens", "settings.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch s.Symbols {
	case "", SymbolsShared, SymbolsIsolated:
		return nil
	default:
		return fmt.Errorf("unknown symbols variant %q (want shared or isolated)", s.Symbols)
	}
}

var sharedFset = token.NewFileSet()

// fileSet returns the file set a pipeline run should use under these
// settings. Safe to call on a nil *Settings receiver.
func (s *Settings) fileSet() *token.FileSet {
	if s != nil && s.Symbols == SymbolsShared {
		return sharedFset
	}
	return token.NewFileSet()
}

// verbose reports whether verbose diagnostics are on. Safe on nil.
func (s *Settings) verbose() bool { return s != nil && s.Verbose }

// Excluded reports whether pkgPath (slash-separated import path) matches
// any exclude rule. Safe to call on a nil *Settings receiver.
func (s *Settings) Excluded(pkgPath string) bool {
	if s == nil {
		return false
	}
	for _, rule := range s.Exclude {
		if matchExcludePattern(parseExcludeRule(rule), pkgPath) {
			return true
		}
	}
	return false
}

// parseExcludeRule extracts the path glob from an exclude rule.
//
//	"Load(./internal/gen/**)" → "internal/gen/**"
//	"internal/gen/**"         → "internal/gen/**"
func parseExcludeRule(rule string) string {
	if strings.HasPrefix(rule, "Load(") && strings.HasSuffix(rule, ")") {
		rule = rule[5 : len(rule)-1]
	}
	return strings.TrimPrefix(rule, "./")
}

// matchExcludePattern reports whether path matches an exclude glob.
//
// "prefix/**" matches the prefix itself and every path beneath it. All
// other patterns use filepath.Match semantics (single * does not cross /).
func matchExcludePattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}
