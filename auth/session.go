package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Lovelumine/AYumeRNA/policy"
	"github.com/go-redis/redis/v8"
)

const (
	DefaultSessionPrefix = "token:"
	DefaultSessionTTL    = time.Hour
)

// ErrSessionStore wraps failures of the session store itself, as opposed to
// tokens it does not know.
var ErrSessionStore = errors.New("session store unavailable")

// SessionTokens authenticates opaque bearer tokens kept in Redis as
// <Prefix><token> -> user id. Every successful lookup extends the session
// by TTL.
type SessionTokens struct {
	client redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func NewSessionTokens(client redis.Cmdable) *SessionTokens {
	return &SessionTokens{
		client: client,
		Prefix: DefaultSessionPrefix,
		TTL:    DefaultSessionTTL,
	}
}

func (s *SessionTokens) Authenticate(r *http.Request) (*policy.Principal, error) {
	raw, err := ExtractBearerToken(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	key := s.Prefix + raw
	userID, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: unknown or expired session", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionStore, err)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: session has no user", ErrInvalidToken)
	}

	if s.TTL > 0 {
		if err := s.client.Expire(ctx, key, s.TTL).Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSessionStore, err)
		}
	}
	return &policy.Principal{ID: userID}, nil
}
