package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Forwarder relays a raw request to the backend API.
type Forwarder interface {
	Forward(ctx context.Context, method, path, rawQuery, contentType string, body io.Reader) (int, string, []byte, error)
}

type relayMode int

const (
	// relayBody echoes the backend JSON with status 200.
	relayBody relayMode = iota
	// relayStatus echoes the backend JSON and status.
	relayStatus
	// relayChecked echoes 2xx replies; others become {success:false, message}.
	relayChecked
)

var errInvalidJSON = errors.New("backend reply is not JSON")

const (
	msgServerError   = "Error del servidor"
	msgInternalError = "Error interno del servidor"
)

type proxyRoute struct {
	method string
	path   string
	// upstream overrides the backend path; {name} is filled from the URL.
	upstream string
	mode     relayMode
	// message replaces a non-2xx reply without one (relayChecked).
	message string
	// transport is returned with status 500 when the backend is unreachable.
	transport string
	// bare omits the success field from generated errors.
	bare bool
	// catalog marks routes whose success changes products or stock.
	catalog bool
}

// CatalogInvalidator drops cached product lists.
type CatalogInvalidator interface {
	InvalidateAll(ctx context.Context)
}

var proxyRoutes = []proxyRoute{
	{method: http.MethodPost, path: "/accounts", transport: "Error al crear cuenta"},
	{method: http.MethodGet, path: "/accounts/{accountId}", transport: "Error al obtener detalle de cuenta"},
	{method: http.MethodGet, path: "/accounts/restaurant/{claveRestaurante}/open", transport: "Error al obtener cuentas abiertas"},
	{method: http.MethodPost, path: "/accounts/{accountId}/items", transport: "Error al agregar items"},
	{method: http.MethodPost, path: "/accounts/{accountId}/send-to-kitchen", transport: "Error al comandar items", catalog: true},
	{method: http.MethodDelete, path: "/accounts/{accountId}/items/{itemId}", transport: "Error al eliminar item"},
	{method: http.MethodPut, path: "/accounts/{accountId}/finalize", transport: "Error al finalizar cuenta"},
	{method: http.MethodPut, path: "/accounts/{accountId}/reopen", transport: "Error al reabrir cuenta"},
	{method: http.MethodPut, path: "/accounts/{accountId}/close", transport: "Error al cerrar cuenta"},

	{method: http.MethodGet, path: "/tables/restaurant/{claveRestaurante}", transport: "Error al obtener mesas"},
	{method: http.MethodPost, path: "/tables/configure", transport: "Error al configurar mesas"},
	{method: http.MethodPut, path: "/tables/{tableId}/name", transport: "Error al actualizar nombre de mesa"},

	{method: http.MethodGet, path: "/products/restaurant/{claveRestaurante}", mode: relayChecked, message: "Error al obtener productos", transport: msgInternalError},
	{method: http.MethodPost, path: "/products", mode: relayChecked, message: "Error al crear producto", transport: msgInternalError, catalog: true},
	{method: http.MethodGet, path: "/products/{productId}", mode: relayChecked, message: "Error al obtener producto", transport: msgInternalError},
	{method: http.MethodPut, path: "/products/{productId}", mode: relayChecked, message: "Error al actualizar producto", transport: msgInternalError, catalog: true},
	{method: http.MethodDelete, path: "/products/{productId}", mode: relayChecked, message: "Error al eliminar producto", transport: msgInternalError, catalog: true},
	{method: http.MethodPost, path: "/products/{productId}/extras", mode: relayStatus, transport: msgServerError, catalog: true},
	{method: http.MethodPut, path: "/products/{productId}/extras/{extraId}/status", mode: relayStatus, transport: msgServerError, catalog: true},

	{method: http.MethodPost, path: "/extras", mode: relayStatus, transport: msgServerError, catalog: true},
	{method: http.MethodGet, path: "/extras/product/{productId}", upstream: "/products/{productId}/extras", mode: relayStatus, transport: msgServerError},
	{method: http.MethodGet, path: "/extras/{extraId}", mode: relayStatus, transport: msgServerError},
	{method: http.MethodPut, path: "/extras/{extraId}", mode: relayStatus, transport: msgServerError, catalog: true},
	{method: http.MethodDelete, path: "/extras/{extraId}", mode: relayStatus, transport: msgServerError, catalog: true},
	{method: http.MethodPut, path: "/extras/{extraId}/status", mode: relayStatus, transport: msgServerError, catalog: true},

	{method: http.MethodGet, path: "/categories/restaurant/{claveRestaurante}", mode: relayChecked, message: "Error al obtener categorías", transport: msgInternalError},
	{method: http.MethodPost, path: "/categories", mode: relayChecked, message: "Error al crear categoría", transport: msgInternalError},
	{method: http.MethodPut, path: "/categories/{categoryId}", mode: relayChecked, message: "Error al actualizar categoría", transport: msgInternalError},
	{method: http.MethodDelete, path: "/categories/{categoryId}", mode: relayChecked, message: "Error al eliminar categoría", transport: msgServerError},

	{method: http.MethodPost, path: "/users", mode: relayStatus, transport: msgServerError},
	{method: http.MethodGet, path: "/users/restaurant/{claveRestaurante}", mode: relayStatus, transport: msgServerError},
	{method: http.MethodPut, path: "/users/{userId}", mode: relayStatus, transport: msgServerError},
	{method: http.MethodDelete, path: "/users/{userId}", mode: relayStatus, transport: msgServerError},
	{method: http.MethodGet, path: "/user/{userId}", mode: relayStatus, transport: msgServerError},

	{method: http.MethodPost, path: "/movements", mode: relayChecked, message: "Error al crear movimiento", transport: msgInternalError, bare: true},
	{method: http.MethodGet, path: "/movements/restaurant/{claveRestaurante}", mode: relayChecked, message: "Error al obtener movimientos", transport: msgInternalError, bare: true},
	{method: http.MethodGet, path: "/movements/restaurant/{claveRestaurante}/summary", mode: relayChecked, message: "Error al obtener resumen de caja", transport: msgInternalError, bare: true},
	{method: http.MethodGet, path: "/movements/{movementId}", mode: relayChecked, message: "Error al obtener movimiento", transport: msgInternalError, bare: true},
	{method: http.MethodPut, path: "/movements/{movementId}", mode: relayChecked, message: "Error al actualizar movimiento", transport: msgInternalError, bare: true},
	{method: http.MethodDelete, path: "/movements/{movementId}", mode: relayChecked, message: "Error al eliminar movimiento", transport: msgInternalError, bare: true},
}

// ProxyHandler exposes the backend API under /api nearly verbatim.
type ProxyHandler struct {
	Backend Forwarder
	// Catalog may be nil.
	Catalog CatalogInvalidator
	Log     *zap.Logger
}

func (h *ProxyHandler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		for _, rt := range proxyRoutes {
			r.Method(rt.method, rt.path, h.relay(rt))
		}
		r.Put("/user/{userId}", h.updateUser)
	})
}

func (h *ProxyHandler) relay(rt proxyRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := rt.upstream
		if target == "" {
			target = rt.path
		}
		h.forward(w, r, rt, fillParams(r, target), r.Body)
	}
}

// updateUser picks the password or contact endpoint from the body.
func (h *ProxyHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	rt := proxyRoute{method: http.MethodPut, mode: relayStatus, transport: msgServerError}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, http.StatusInternalServerError, rt.transport)
		return
	}
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		fail(w, http.StatusInternalServerError, rt.transport)
		return
	}
	target := "/user/" + url.PathEscape(chi.URLParam(r, "userId"))
	if body.CurrentPassword != "" && body.NewPassword != "" {
		target += "/password"
	} else {
		target += "/contact"
	}
	h.forward(w, r, rt, target, bytes.NewReader(raw))
}

func (h *ProxyHandler) forward(w http.ResponseWriter, r *http.Request, rt proxyRoute, target string, body io.Reader) {
	ct := r.Header.Get("Content-Type")
	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		body = http.NoBody
	}
	status, _, out, err := h.Backend.Forward(r.Context(), r.Method, target, r.URL.RawQuery, ct, body)
	if err == nil && !json.Valid(out) {
		err = errInvalidJSON
	}
	if err != nil {
		h.Log.Error("proxy failed", zap.String("method", r.Method), zap.String("path", target), zap.Error(err))
		h.generated(w, rt, http.StatusInternalServerError, rt.transport)
		return
	}
	h.Log.Debug("proxied", zap.String("method", r.Method), zap.String("path", target), zap.Int("status", status))
	if rt.catalog && h.Catalog != nil && status >= 200 && status <= 299 {
		h.Catalog.InvalidateAll(r.Context())
	}

	switch rt.mode {
	case relayBody:
		status = http.StatusOK
	case relayChecked:
		if status < 200 || status > 299 {
			var m struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(out, &m)
			if m.Message == "" {
				m.Message = rt.message
			}
			h.generated(w, rt, status, m.Message)
			return
		}
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func (h *ProxyHandler) generated(w http.ResponseWriter, rt proxyRoute, code int, msg string) {
	if rt.bare {
		writeJSON(w, code, map[string]string{"message": msg})
		return
	}
	fail(w, code, msg)
}

// fillParams replaces each {name} in pattern with the escaped URL param.
func fillParams(r *http.Request, pattern string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(pattern, '{')
		if i < 0 {
			b.WriteString(pattern)
			return b.String()
		}
		j := strings.IndexByte(pattern[i:], '}')
		if j < 0 {
			b.WriteString(pattern)
			return b.String()
		}
		b.WriteString(pattern[:i])
		b.WriteString(url.PathEscape(chi.URLParam(r, pattern[i+1:i+j])))
		pattern = pattern[i+j+1:]
	}
}
