package model

import (
	"errors"
	"fmt"
)

// Registry holds the configured model catalog and resolves client-requested
// model names. Read-only after construction, safe for concurrent use.
type Registry struct {
	ordered []Configured
	byName  map[string]Configured
}

// NewRegistry builds a registry from the configured catalog.
// Model names must be unique and providers valid.
func NewRegistry(models []Configured) (*Registry, error) {
	if len(models) == 0 {
		return nil, errors.New("no models configured")
	}

	byName := make(map[string]Configured, len(models))
	for _, m := range models {
		if m.Name == "" {
			return nil, errors.New("model with empty name")
		}
		if !m.Provider.Valid() {
			return nil, fmt.Errorf("model %q: unknown provider %q", m.Name, m.Provider)
		}
		if _, ok := byName[m.Name]; ok {
			return nil, fmt.Errorf("duplicate model name %q", m.Name)
		}
		byName[m.Name] = m
	}

	return &Registry{ordered: models, byName: byName}, nil
}

// Resolve maps a requested model name to its configured reference.
// Returns ErrNotSupported for unknown names.
func (r *Registry) Resolve(name string) (Ref, error) {
	m, ok := r.byName[name]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrNotSupported, name)
	}
	return m.Ref(), nil
}

// Lookup returns the full catalog entry, including credentials.
// Used by the completion layer to reach the provider.
func (r *Registry) Lookup(name string) (Configured, error) {
	m, ok := r.byName[name]
	if !ok {
		return Configured{}, fmt.Errorf("%w: %q", ErrNotSupported, name)
	}
	return m, nil
}

// List returns the catalog as client-facing refs, in configured order.
func (r *Registry) List() []Ref {
	refs := make([]Ref, len(r.ordered))
	for i, m := range r.ordered {
		refs[i] = m.Ref()
	}
	return refs
}
