package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/backend"
	"github.com/ariefcatur/go-pos-accounts/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct{ err error }

func (f fakeAuth) Login(_ context.Context, body json.RawMessage) (*backend.User, json.RawMessage, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	data := json.RawMessage(`{"_id":"u1","username":"ana","rol":"Cajero","claveRestaurante":"REST01"}`)
	return &backend.User{ID: "u1", Username: "ana", Role: accounts.RoleCashier, RestaurantKey: "REST01"}, data, nil
}

func newAuth(t *testing.T, a Authenticator) (*chi.Mux, *identity.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := identity.NewStore(rdb, time.Hour)
	r := chi.NewRouter()
	(&AuthHandler{Backend: a, Identities: store, Log: zap.NewNop()}).Register(r)
	return r, store
}

func TestLoginStoresIdentity(t *testing.T) {
	r, store := newAuth(t, fakeAuth{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"ana","password":"x"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	token := rec.Header().Get(headerSessionToken)
	require.NotEmpty(t, token)
	id, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleCashier, id.Role)
	assert.Equal(t, "ana", id.Name)

	var body loginResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Contains(t, string(body.Data), `"rol":"Cajero"`)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err = store.Get(context.Background(), token)
	assert.ErrorIs(t, err, identity.ErrUnknownToken)
}

func TestLoginRejected(t *testing.T) {
	r, _ := newAuth(t, fakeAuth{err: &accounts.BackendError{Message: "Credenciales inválidas"}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"ana"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Credenciales inválidas"}`, rec.Body.String())
}
