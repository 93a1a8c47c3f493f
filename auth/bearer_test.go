package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lovelumine/AYumeRNA/policy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T) *BearerJWT {
	t.Helper()
	b, err := NewBearerJWT([]byte("test-secret"), "ayumerna")
	require.NoError(t, err)
	return b
}

func requestWith(header string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/sample/process", nil)
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	return r
}

func TestNewBearerJWT_RequiresSecret(t *testing.T) {
	_, err := NewBearerJWT(nil, "")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken(requestWith("Bearer abc.def.ghi"))
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	_, err = ExtractBearerToken(requestWith(""))
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.ErrorIs(t, err, policy.ErrNoCredentials)

	_, err = ExtractBearerToken(requestWith("Basic dXNlcjpwYXNz"))
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = ExtractBearerToken(requestWith("Bearer "))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestBearerJWT_Authenticate(t *testing.T) {
	b := newVerifier(t)
	token, err := b.Issue("42", "yume", time.Hour)
	require.NoError(t, err)

	principal, err := b.Authenticate(requestWith("Bearer " + token))
	require.NoError(t, err)
	assert.Equal(t, "42", principal.ID)
	assert.Equal(t, "yume", principal.Claims["username"])
}

func TestBearerJWT_Rejects(t *testing.T) {
	b := newVerifier(t)

	expired, err := b.Issue("42", "yume", -time.Hour)
	require.NoError(t, err)

	other, err := NewBearerJWT([]byte("other-secret"), "ayumerna")
	require.NoError(t, err)
	forged, err := other.Issue("42", "yume", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := (&BearerJWT{Secret: []byte("test-secret"), Issuer: "elsewhere"}).Issue("42", "yume", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "42",
		Issuer:  "ayumerna",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "42",
		Issuer:    "ayumerna",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"forged":       forged,
		"wrong issuer": wrongIssuer,
		"no expiry":    noExpiry,
		"alg none":     noneAlg,
		"garbage":      "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Authenticate(requestWith("Bearer " + token))
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.NotErrorIs(t, err, policy.ErrNoCredentials)
		})
	}
}
