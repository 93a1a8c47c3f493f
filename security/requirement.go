package security

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// Requirement is an ordered set of scheme names that must all be satisfied
// to authorize a call. An empty Requirement is satisfied by anonymous callers.
type Requirement []string

// Require builds a Requirement, dropping repeated names but keeping the
// position of their first occurrence.
func Require(names ...string) Requirement {
	req := make(Requirement, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		req = append(req, name)
	}
	return req
}

// Names returns a copy of the scheme names.
func (r Requirement) Names() []string {
	return append([]string(nil), r...)
}

// OpenAPI converts the requirement into its document form.
func (r Requirement) OpenAPI() openapi3.SecurityRequirement {
	sr := openapi3.NewSecurityRequirement()
	for _, name := range r {
		sr.Authenticate(name)
	}
	return sr
}

// ToOpenAPI converts an ordered list of requirement alternatives.
func ToOpenAPI(reqs []Requirement) openapi3.SecurityRequirements {
	out := make(openapi3.SecurityRequirements, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.OpenAPI())
	}
	return out
}

// FromOpenAPI is the inverse of ToOpenAPI. Names inside one requirement come
// back sorted because the document form does not keep their order.
func FromOpenAPI(srs openapi3.SecurityRequirements) []Requirement {
	out := make([]Requirement, 0, len(srs))
	for _, sr := range srs {
		names := make([]string, 0, len(sr))
		for name := range sr {
			names = append(names, name)
		}
		sort.Strings(names)
		out = append(out, Requirement(names))
	}
	return out
}

// Clone deep-copies a list of requirements. A nil list stays nil so that
// "inherit" and "public" remain distinguishable.
func Clone(reqs []Requirement) []Requirement {
	if reqs == nil {
		return nil
	}
	out := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Requirement(r.Names()))
	}
	return out
}
