package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/backend"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstream records the last request the proxy made.
type upstream struct {
	method, path, query, body, contentType string
	status                                 int
	reply                                  string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	u.method, u.path, u.query, u.body = r.Method, r.URL.Path, r.URL.RawQuery, string(b)
	u.contentType = r.Header.Get("Content-Type")
	w.Header().Set("Content-Type", "application/json")
	if u.status != 0 {
		w.WriteHeader(u.status)
	}
	_, _ = io.WriteString(w, u.reply)
}

func newProxy(t *testing.T, up *upstream) *chi.Mux {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	r := chi.NewRouter()
	h := &ProxyHandler{Backend: backend.New(srv.URL+"/api", 2*time.Second, nil), Log: zap.NewNop()}
	h.Register(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProxyAccountsEchoWithOK(t *testing.T) {
	up := &upstream{status: http.StatusBadRequest, reply: `{"success":false,"message":"Mesa ocupada"}`}
	r := newProxy(t, up)

	rec := do(r, http.MethodPut, "/api/accounts/acc-1/close", `{"metodoPago":"efectivo","totalPagado":50}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, up.reply, rec.Body.String())
	assert.Equal(t, http.MethodPut, up.method)
	assert.Equal(t, "/api/accounts/acc-1/close", up.path)
	assert.JSONEq(t, `{"metodoPago":"efectivo","totalPagado":50}`, up.body)
}

func TestProxyRewritesUpstreamPath(t *testing.T) {
	up := &upstream{reply: `{"success":true,"data":[]}`}
	r := newProxy(t, up)

	rec := do(r, http.MethodGet, "/api/extras/product/p-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/products/p-1/extras", up.path)
}

func TestProxyCheckedModeFallbackMessage(t *testing.T) {
	up := &upstream{status: http.StatusNotFound, reply: `{}`}
	r := newProxy(t, up)

	rec := do(r, http.MethodGet, "/api/products/restaurant/REST01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Error al obtener productos"}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/api/movements/restaurant/REST01/summary?fecha=2026-10-19", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Error al obtener resumen de caja"}`, rec.Body.String())
	assert.Equal(t, "fecha=2026-10-19", up.query)
}

func TestProxyStaticSegmentsWinOverIDs(t *testing.T) {
	up := &upstream{reply: `{"success":true,"data":{}}`}
	r := newProxy(t, up)

	rec := do(r, http.MethodGet, "/api/products/p-9", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/products/p-9", up.path)

	do(r, http.MethodGet, "/api/products/restaurant/REST01", "")
	assert.Equal(t, "/api/products/restaurant/REST01", up.path)

	up.status = http.StatusBadRequest
	up.reply = `{}`
	rec = do(r, http.MethodPut, "/api/movements/m-1", `{"monto":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Error al actualizar movimiento"}`, rec.Body.String())
}

func TestProxyUserUpdateEndpoint(t *testing.T) {
	up := &upstream{reply: `{"success":true}`}
	r := newProxy(t, up)

	do(r, http.MethodPut, "/api/user/u1", `{"currentPassword":"a","newPassword":"b"}`)
	assert.Equal(t, "/api/user/u1/password", up.path)

	do(r, http.MethodPut, "/api/user/u1", `{"telefono":"555"}`)
	assert.Equal(t, "/api/user/u1/contact", up.path)
	assert.JSONEq(t, `{"telefono":"555"}`, up.body)
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll(context.Context) { c.calls++ }

func TestProxyCatalogMutationsDropCache(t *testing.T) {
	up := &upstream{status: http.StatusCreated, reply: `{"success":true,"data":{"_id":"p-2"}}`}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	inv := &countingInvalidator{}
	r := chi.NewRouter()
	(&ProxyHandler{Backend: backend.New(srv.URL+"/api", 2*time.Second, nil), Catalog: inv, Log: zap.NewNop()}).Register(r)

	do(r, http.MethodPost, "/api/products", `{"nombre":"Taco"}`)
	assert.Equal(t, 1, inv.calls)
	do(r, http.MethodPut, "/api/extras/x-1/status", `{"activo":false}`)
	assert.Equal(t, 2, inv.calls)

	do(r, http.MethodGet, "/api/products/restaurant/REST01", "")
	assert.Equal(t, 2, inv.calls)

	up.status = http.StatusBadRequest
	up.reply = `{"success":false,"message":"Nombre duplicado"}`
	do(r, http.MethodPost, "/api/products", `{"nombre":"Taco"}`)
	assert.Equal(t, 2, inv.calls)
}

func TestProxyTransportFailure(t *testing.T) {
	r := chi.NewRouter()
	h := &ProxyHandler{Backend: backend.New("http://127.0.0.1:1/api", 500*time.Millisecond, nil), Log: zap.NewNop()}
	h.Register(r)

	rec := do(r, http.MethodPost, "/api/accounts/acc-1/send-to-kitchen", `{"itemIds":["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Error al comandar items"}`, rec.Body.String())
}

func TestProxyNonJSONReply(t *testing.T) {
	up := &upstream{reply: `<html>oops</html>`}
	r := newProxy(t, up)

	rec := do(r, http.MethodGet, "/api/tables/restaurant/REST01", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Error al obtener mesas"}`, rec.Body.String())
}
