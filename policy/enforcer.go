package policy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lovelumine/AYumeRNA/envelope"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PrincipalKey is the gin context key holding the authenticated *Principal.
const PrincipalKey = "ayumerna.principal"

const defaultRealm = "ayumerna"

var (
	// ErrNoCredentials is wrapped by authenticators when the request carries
	// no credential for their scheme.
	ErrNoCredentials = errors.New("no credentials presented")

	ErrUnauthorized = errors.New("unauthorized")
)

// Enforcer gates requests on the policies of their routes.
type Enforcer struct {
	authenticators map[string]Authenticator
	logger         *zap.Logger
	realm          string
	onReject       []func(c *gin.Context, err error)
}

func NewEnforcer(authenticators map[string]Authenticator, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := make(map[string]Authenticator, len(authenticators))
	for name, auth := range authenticators {
		a[name] = auth
	}
	return &Enforcer{
		authenticators: a,
		logger:         logger,
		realm:          defaultRealm,
	}
}

// Check fails when p names a scheme without an authenticator. Run it for
// every route before serving so gaps surface at startup.
func (e *Enforcer) Check(p Policy) error {
	for _, name := range p.Schemes() {
		if _, ok := e.authenticators[name]; !ok {
			return &MissingAuthenticatorError{Scheme: name}
		}
	}
	return nil
}

// OnReject registers f to run for every refused request, before the 401
// is written.
func (e *Enforcer) OnReject(f func(c *gin.Context, err error)) {
	e.onReject = append(e.onReject, f)
}

// Authorize returns the caller admitted by p, or nil for anonymous callers
// on public routes.
func (e *Enforcer) Authorize(r *http.Request, p Policy) (*Principal, error) {
	if !p.RequireAuth {
		return nil, nil
	}

	type outcome struct {
		principal *Principal
		err       error
	}
	results := make(map[string]outcome)
	var lastErr error

	for _, req := range p.Requirements {
		var first *Principal
		satisfied := true
		for _, name := range req {
			res, ok := results[name]
			if !ok {
				auth, found := e.authenticators[name]
				if !found {
					res = outcome{err: &MissingAuthenticatorError{Scheme: name}}
				} else {
					principal, err := auth.Authenticate(r)
					if err == nil && principal == nil {
						err = fmt.Errorf("%s: no principal", name)
					}
					if principal != nil && principal.Scheme == "" {
						principal.Scheme = name
					}
					res = outcome{principal: principal, err: err}
				}
				results[name] = res
			}
			if res.err != nil {
				satisfied = false
				lastErr = res.err
				break
			}
			if first == nil {
				first = res.principal
			}
		}
		if satisfied {
			return first, nil
		}
	}

	if lastErr == nil {
		lastErr = ErrUnauthorized
	}
	return nil, fmt.Errorf("%w: %w", ErrUnauthorized, lastErr)
}

// Gate returns middleware admitting requests that satisfy p.
func (e *Enforcer) Gate(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := e.Authorize(c.Request, p)
		if err != nil {
			e.logger.Warn("authentication failed",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.String("remote_addr", c.ClientIP()))
			e.reject(c, err)
			return
		}
		if principal != nil {
			c.Set(PrincipalKey, principal)
		}
		c.Next()
	}
}

func (e *Enforcer) reject(c *gin.Context, err error) {
	for _, f := range e.onReject {
		f(c, err)
	}
	challenge := fmt.Sprintf(`Bearer realm="%s"`, sanitizeHeaderValue(e.realm))
	message := "missing bearer token"
	if !errors.Is(err, ErrNoCredentials) {
		challenge += `, error="invalid_token"`
		message = "invalid token or user not authenticated"
	}
	c.Header("WWW-Authenticate", challenge)
	envelope.Abort(c, http.StatusUnauthorized, message, nil)
}

// PrincipalFrom returns the caller stored by Gate.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}

// sanitizeHeaderValue removes characters that could enable header injection.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `"`, `\"`)
}
