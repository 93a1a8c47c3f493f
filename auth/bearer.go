// Package auth verifies the bearer tokens declared by the bearerAuth
// security scheme.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Lovelumine/AYumeRNA/policy"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken    = fmt.Errorf("missing bearer token: %w", policy.ErrNoCredentials)
	ErrMalformedHeader = errors.New("authorization header must be of the form \"Bearer <token>\"")
	ErrInvalidToken    = errors.New("invalid bearer token")
	ErrNoSecret        = errors.New("jwt secret is required")
)

// Claims are the JWT claims carried by AYumeRNA access tokens.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// BearerJWT authenticates "Authorization: Bearer <jwt>" headers signed with
// an HMAC secret.
type BearerJWT struct {
	Secret []byte
	Issuer string
	Leeway time.Duration
}

func NewBearerJWT(secret []byte, issuer string) (*BearerJWT, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return &BearerJWT{
		Secret: secret,
		Issuer: issuer,
		Leeway: 30 * time.Second,
	}, nil
}

// ExtractBearerToken returns the token of an Authorization: Bearer header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(parts[1]), nil
}

func (b *BearerJWT) Authenticate(r *http.Request) (*policy.Principal, error) {
	raw, err := ExtractBearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := b.Verify(raw)
	if err != nil {
		return nil, err
	}
	return &policy.Principal{
		ID: claims.Subject,
		Claims: map[string]any{
			"username": claims.Username,
			"iss":      claims.Issuer,
		},
	}, nil
}

// Verify parses and validates a signed token.
func (b *BearerJWT) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(b.Leeway),
		jwt.WithExpirationRequired(),
	}
	if b.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(b.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return b.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Issue signs claims with HS256. Token issuance policy lives with the
// account service; this is for tooling and tests.
func (b *BearerJWT) Issue(subject, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    b.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.Secret)
}
