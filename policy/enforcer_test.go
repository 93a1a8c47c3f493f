package policy

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lovelumine/AYumeRNA/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadToken = errors.New("bad token")

func headerAuth(header, want, id string) Authenticator {
	return AuthenticatorFunc(func(r *http.Request) (*Principal, error) {
		got := r.Header.Get(header)
		if got == "" {
			return nil, fmt.Errorf("%s: %w", header, ErrNoCredentials)
		}
		if got != want {
			return nil, errBadToken
		}
		return &Principal{ID: id}, nil
	})
}

func newTestServer(t *testing.T, e *Enforcer, p Policy) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/resource", e.Gate(p), func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, principal.ID+"@"+principal.Scheme)
	})
	return engine
}

func TestEnforcer_Check(t *testing.T) {
	e := NewEnforcer(map[string]Authenticator{
		"bearerAuth": headerAuth("Authorization", "Bearer ok", "u1"),
	}, nil)

	assert.NoError(t, e.Check(New([]security.Requirement{security.Require("bearerAuth")})))
	assert.NoError(t, e.Check(New([]security.Requirement{})))

	err := e.Check(New([]security.Requirement{security.Require("apiKey")}))
	var missing *MissingAuthenticatorError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "apiKey", missing.Scheme)
}

func TestEnforcer_Gate(t *testing.T) {
	e := NewEnforcer(map[string]Authenticator{
		"bearerAuth": headerAuth("Authorization", "Bearer ok", "u1"),
		"apiKey":     headerAuth("X-API-Key", "k", "svc"),
	}, nil)

	bearer := New([]security.Requirement{security.Require("bearerAuth")})
	either := New([]security.Requirement{security.Require("bearerAuth"), security.Require("apiKey")})

	tests := []struct {
		name      string
		policy    Policy
		headers   map[string]string
		status    int
		body      string
		challenge string
	}{
		{
			name:   "public",
			policy: New([]security.Requirement{}),
			status: http.StatusOK,
			body:   "anonymous",
		},
		{
			name:    "valid bearer",
			policy:  bearer,
			headers: map[string]string{"Authorization": "Bearer ok"},
			status:  http.StatusOK,
			body:    "u1@bearerAuth",
		},
		{
			name:      "missing bearer",
			policy:    bearer,
			status:    http.StatusUnauthorized,
			challenge: `Bearer realm="ayumerna"`,
		},
		{
			name:      "invalid bearer",
			policy:    bearer,
			headers:   map[string]string{"Authorization": "Bearer nope"},
			status:    http.StatusUnauthorized,
			challenge: `Bearer realm="ayumerna", error="invalid_token"`,
		},
		{
			name:    "second alternative",
			policy:  either,
			headers: map[string]string{"X-API-Key": "k"},
			status:  http.StatusOK,
			body:    "svc@apiKey",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/resource", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			newTestServer(t, e, tt.policy).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
			if tt.challenge != "" {
				assert.Equal(t, tt.challenge, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestEnforcer_AllSchemesOfRequirement(t *testing.T) {
	e := NewEnforcer(map[string]Authenticator{
		"bearerAuth": headerAuth("Authorization", "Bearer ok", "u1"),
		"apiKey":     headerAuth("X-API-Key", "k", "svc"),
	}, nil)
	both := New([]security.Requirement{security.Require("bearerAuth", "apiKey")})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer ok")
	_, err := e.Authorize(req, both)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ErrNoCredentials)

	req.Header.Set("X-API-Key", "k")
	principal, err := e.Authorize(req, both)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.ID)
}

func TestEnforcer_OnReject(t *testing.T) {
	e := NewEnforcer(map[string]Authenticator{
		"bearerAuth": headerAuth("Authorization", "Bearer ok", "u1"),
	}, nil)
	var missing, invalid int
	e.OnReject(func(c *gin.Context, err error) {
		assert.Equal(t, "/resource", c.FullPath())
		if errors.Is(err, ErrNoCredentials) {
			missing++
			return
		}
		invalid++
	})
	server := newTestServer(t, e, New([]security.Requirement{security.Require("bearerAuth")}))

	for _, header := range []string{"", "Bearer nope", "Bearer ok"} {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		server.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 1, missing)
	assert.Equal(t, 1, invalid)
}
