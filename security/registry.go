package security

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// Registry holds the authentication schemes an API supports. Schemes are
// registered during startup only; Registry is not safe for concurrent
// registration.
type Registry struct {
	schemes map[string]Security
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{
		schemes: make(map[string]Security),
	}
}

// Register records s under its name. The first registration of a name stays
// the one of record.
func (r *Registry) Register(s Security) error {
	if s == nil {
		return fmt.Errorf("%w: nil scheme", ErrInvalidScheme)
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidScheme)
	}
	if r.frozen {
		return fmt.Errorf("register %q: %w", name, ErrRegistryFrozen)
	}
	if _, ok := r.schemes[name]; ok {
		return &DuplicateSchemeError{Name: name}
	}
	r.schemes[name] = s
	return nil
}

// Schemes returns every registered scheme ordered by name.
func (r *Registry) Schemes() []Security {
	out := make([]Security, 0, len(r.schemes))
	for _, s := range r.schemes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}

func (r *Registry) Lookup(name string) (Security, bool) {
	s, ok := r.schemes[name]
	return s, ok
}

func (r *Registry) Len() int {
	return len(r.schemes)
}

// Validate checks that every name referenced by reqs is registered.
func (r *Registry) Validate(reqs ...Requirement) error {
	for _, req := range reqs {
		for _, name := range req {
			if _, ok := r.schemes[name]; !ok {
				return &UnknownSchemeError{Name: name}
			}
		}
	}
	return nil
}

// Freeze rejects any further registration.
func (r *Registry) Freeze() {
	r.frozen = true
}

func (r *Registry) Frozen() bool {
	return r.frozen
}

// Components renders the registered schemes for a document's components
// section. Each call returns fresh values.
func (r *Registry) Components() openapi3.SecuritySchemes {
	out := make(openapi3.SecuritySchemes, len(r.schemes))
	for name, s := range r.schemes {
		out[name] = &openapi3.SecuritySchemeRef{
			Value: s.Schema(),
		}
	}
	return out
}
