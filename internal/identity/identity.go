// Package identity carries the logged-in user through request contexts.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrUnknownToken = errors.New("unknown or expired session token")

type Identity struct {
	UserID        string        `json:"userId"`
	Name          string        `json:"nombre"`
	Role          accounts.Role `json:"rol"`
	RestaurantKey string        `json:"claveRestaurante"`
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Store keeps identities in Redis under random tokens.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Create(ctx context.Context, id Identity) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, fmt.Sprintf(redisx.KeyIdentity, token), b, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store identity: %w", err)
	}
	return token, nil
}

func (s *Store) Get(ctx context.Context, token string) (Identity, error) {
	var id Identity
	b, err := s.rdb.Get(ctx, fmt.Sprintf(redisx.KeyIdentity, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return id, ErrUnknownToken
	}
	if err != nil {
		return id, fmt.Errorf("load identity: %w", err)
	}
	if err := json.Unmarshal(b, &id); err != nil {
		return id, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyIdentity, token)).Err()
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware rejects requests without a known token and puts the identity
// into the request context. unauthorized writes the rejection.
func (s *Store) Middleware(unauthorized func(http.ResponseWriter, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "missing session token")
				return
			}
			id, err := s.Get(r.Context(), token)
			if err != nil {
				unauthorized(w, ErrUnknownToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
