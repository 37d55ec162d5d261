// Package botregistry catalogues the compiled-in bot classes reachable
// via a "builtin://<name>" code_ref (spec.md §4.3 step 1, design note
// §9 option a). The registration/lookup shape mirrors the teacher's
// internal/mcp/tool_registry.go — a different domain, the same
// register-then-lookup-by-name pattern.
package botregistry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memohai/memoh/internal/botapi"
)

// Registry is a name -> botapi.Class catalogue.
type Registry struct {
	classes map[string]botapi.Class
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{classes: map[string]botapi.Class{}}
}

// Register adds a builtin bot class under name; re-registering the same
// name is an error.
func (r *Registry) Register(name string, class botapi.Class) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("botregistry: name is required")
	}
	if _, exists := r.classes[name]; exists {
		return fmt.Errorf("botregistry: already registered: %s", name)
	}
	r.classes[name] = class
	return nil
}

// Lookup resolves a "builtin://<name>" code_ref's bare name.
func (r *Registry) Lookup(name string) (botapi.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseCodeRef splits a "builtin://<name>" reference into its bare name;
// ok is false if ref does not use the builtin scheme.
func ParseCodeRef(ref string) (name string, ok bool) {
	const scheme = "builtin://"
	if !strings.HasPrefix(ref, scheme) {
		return "", false
	}
	return strings.TrimPrefix(ref, scheme), true
}
