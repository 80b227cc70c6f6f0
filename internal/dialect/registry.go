package dialect

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultName is the dialect used when nothing else selects one.
const DefaultName = "tex"

var ErrUnknownDialect = errors.New("unknown dialect")

// Registry maps dialect names to their specs. It starts with the
// built-in presets; custom dialects are added with Register or LoadCUE.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec, len(presets))}
	for name, s := range presets {
		r.specs[name] = s
	}
	return r
}

// Register adds or replaces a dialect. A spec naming a Base inherits every
// field it leaves unset from that dialect.
func (r *Registry) Register(name string, s Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Base != "" {
		base, ok := r.specs[s.Base]
		if !ok {
			return fmt.Errorf("dialect %q: base %q: %w", name, s.Base, ErrUnknownDialect)
		}
		s = s.Over(base)
		s.Base = ""
	}
	r.specs[name] = s
	return nil
}

// Lookup resolves a dialect by name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	s, ok := r.specs[name]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return s.Fill(name), nil
}

// Names lists registered dialects in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a built-in dialect.
func Lookup(name string) (Descriptor, error) {
	s, ok := presets[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return s.Fill(name), nil
}

// SourceExtensions maps literate source extensions to their usual dialect.
var SourceExtensions = map[string]string{
	".texw": "tex",
	".pnw":  "tex",
	".rnw":  "tex",
	".rstw": "rst",
	".mdw":  "pandoc",
	".pmd":  "pandoc",
}

// ForFile picks a dialect from a source filename, falling back to DefaultName.
func ForFile(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if name, ok := SourceExtensions[ext]; ok {
		return name
	}
	return DefaultName
}
