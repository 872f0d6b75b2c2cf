package platform

import (
	"fmt"
	"strings"
)

var aliases = map[string]string{
	"enjoei":        "enjoei",
	"ml":            "ml",
	"mercadolivre":  "ml",
	"mercado livre": "ml",
	"olx":           "olx",
}

// Registry maps platform identifiers to adapters.
type Registry struct {
	adapters map[string]Adapter
	keys     []string
	def      string
}

// NewRegistry builds a registry. def must be the key of one of the adapters.
func NewRegistry(def string, adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Key()]; dup {
			return nil, fmt.Errorf("duplicate platform %q", a.Key())
		}
		r.adapters[a.Key()] = a
		r.keys = append(r.keys, a.Key())
	}
	if _, ok := r.adapters[def]; !ok {
		return nil, fmt.Errorf("default platform %q not registered", def)
	}
	r.def = def
	return r, nil
}

// Get returns the adapter for an exact platform key.
func (r *Registry) Get(key string) (Adapter, bool) {
	a, ok := r.adapters[key]
	return a, ok
}

// Resolve maps a user-typed alias ("mercado livre", "ML") to a registered key.
func (r *Registry) Resolve(input string) (string, bool) {
	norm := strings.Join(strings.Fields(strings.ToLower(input)), " ")
	key, ok := aliases[norm]
	if !ok {
		return "", false
	}
	if _, registered := r.adapters[key]; !registered {
		return "", false
	}
	return key, true
}

// Default returns the platform used when a command names none.
func (r *Registry) Default() string { return r.def }

// Keys returns the registered platform keys in registration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// ExtractHint splits a trailing platform hint off free text.
// "camisa flamengo mercado livre" yields ("camisa flamengo", "ml", true).
// The hint is never the whole text; without one the default platform is returned.
func (r *Registry) ExtractHint(text string) (keyword, platform string, found bool) {
	words := strings.Fields(text)
	n := len(words)
	if n > 2 {
		if key, ok := r.Resolve(words[n-2] + " " + words[n-1]); ok {
			return strings.Join(words[:n-2], " "), key, true
		}
	}
	if n > 1 {
		if key, ok := r.Resolve(words[n-1]); ok {
			return strings.Join(words[:n-1], " "), key, true
		}
	}
	return strings.Join(words, " "), r.def, false
}
