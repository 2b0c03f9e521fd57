package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb, time.Hour)
}

func TestStoreRoundTrip(t *testing.T) {
	mr, s := newStore(t)
	ctx := context.Background()
	ana := Identity{UserID: "u1", Name: "Ana", Role: accounts.RoleWaiter, RestaurantKey: "REST01"}

	token, err := s.Create(ctx, ana)
	require.NoError(t, err)

	got, err := s.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, token)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestMiddleware(t *testing.T) {
	_, s := newStore(t)
	token, err := s.Create(context.Background(), Identity{UserID: "u1", Role: accounts.RoleCashier, RestaurantKey: "REST01"})
	require.NoError(t, err)

	var seen Identity
	h := s.Middleware(func(w http.ResponseWriter, msg string) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, accounts.RoleCashier, seen.Role)

	require.NoError(t, s.Delete(context.Background(), token))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
