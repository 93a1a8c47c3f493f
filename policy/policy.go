// Package policy turns the security requirements of a published API
// description into per-route access decisions.
package policy

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Lovelumine/AYumeRNA/security"
)

// ErrUnknownRoute is returned for routes the description does not know.
var ErrUnknownRoute = errors.New("route is not described")

// Source yields the effective requirement of a route. It is satisfied by
// *ayumerna.Description.
type Source interface {
	EffectiveSecurity(method, path string) ([]security.Requirement, bool)
}

// RouteKey uniquely identifies an operation by HTTP method and path.
type RouteKey struct {
	Method string
	Path   string
}

// Policy is the access rule of one route. Requirements are alternatives:
// a request is admitted when every scheme of at least one of them succeeds.
type Policy struct {
	RequireAuth  bool
	Requirements []security.Requirement
}

// New derives a policy from requirement alternatives. No alternatives, or
// an empty alternative, means anonymous callers are admitted.
func New(reqs []security.Requirement) Policy {
	p := Policy{Requirements: security.Clone(reqs)}
	if len(reqs) == 0 {
		return p
	}
	for _, req := range reqs {
		if len(req) == 0 {
			return p
		}
	}
	p.RequireAuth = true
	return p
}

// For looks up the policy of a route in src.
func For(src Source, method, path string) (Policy, error) {
	reqs, ok := src.EffectiveSecurity(method, path)
	if !ok {
		return Policy{}, fmt.Errorf("%s %s: %w", method, path, ErrUnknownRoute)
	}
	return New(reqs), nil
}

// Derive computes the policies of the given routes, failing on the first
// route src does not describe.
func Derive(src Source, routes []RouteKey) (map[RouteKey]Policy, error) {
	policies := make(map[RouteKey]Policy, len(routes))
	for _, key := range routes {
		p, err := For(src, key.Method, key.Path)
		if err != nil {
			return nil, err
		}
		policies[key] = p
	}
	return policies, nil
}

// Schemes lists every scheme name the policy may need, in first-seen order.
func (p Policy) Schemes() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, req := range p.Requirements {
		for _, name := range req {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// Principal is the authenticated caller.
type Principal struct {
	ID     string
	Scheme string
	Claims map[string]any
}

// Authenticator verifies the credential of one security scheme.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(r *http.Request) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (*Principal, error) {
	return f(r)
}

// MissingAuthenticatorError reports a scheme that routes require but that
// nothing can verify.
type MissingAuthenticatorError struct {
	Scheme string
}

func (e *MissingAuthenticatorError) Error() string {
	return fmt.Sprintf("no authenticator configured for security scheme %q", e.Scheme)
}
