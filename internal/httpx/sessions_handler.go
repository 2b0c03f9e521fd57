package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/catalog"
	"github.com/ariefcatur/go-pos-accounts/internal/identity"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionHandler serves the account session API. Every route requires a
// logged-in identity.
type SessionHandler struct {
	Sessions   *accounts.Registry
	Catalog    *catalog.Service
	Identities *identity.Store
	Log        *zap.Logger
}

func (h *SessionHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Identities.Middleware(func(w http.ResponseWriter, msg string) {
			fail(w, http.StatusUnauthorized, msg)
		}))

		r.Get("/restaurants/open-accounts", h.listOpen)
		r.Put("/catalog/products/{productId}/extras/{extraId}/status", h.toggleExtra)

		r.Post("/sessions", h.open)
		r.Post("/sessions/open-account", h.openAccount)
		r.Route("/sessions/{accountId}", func(r chi.Router) {
			r.Get("/", h.view)
			r.Delete("/", h.teardown)
			r.Post("/reload", h.reload)
			r.Post("/temp-items", h.addTemp)
			r.Delete("/temp-items/{index}", h.removeTemp)
			r.Post("/commit", h.commit)
			r.Delete("/items/{itemId}", h.deleteItem)
			r.Post("/finalize", h.finalize)
			r.Post("/reopen", h.reopen)
			r.Post("/payment-quote", h.quote)
			r.Post("/close", h.closeAccount)
		})
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func who(r *http.Request) identity.Identity {
	id, _ := identity.FromContext(r.Context())
	return id
}

// session loads the account's session and checks it belongs to the caller's
// restaurant.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request, accountID string) (*accounts.Session, bool) {
	if accountID == "" {
		fail(w, http.StatusBadRequest, "missing account id")
		return nil, false
	}
	s, err := h.Sessions.OpenFor(r.Context(), accountID, who(r).RestaurantKey)
	if errors.Is(err, accounts.ErrForeignAccount) {
		fail(w, http.StatusForbidden, err.Error())
		return nil, false
	}
	if err != nil {
		failErr(w, err, accounts.MsgLoadFailed)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) (*accounts.Session, bool) {
	return h.session(w, r, chi.URLParam(r, "accountId"))
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, s *accounts.Session, msg string) {
	ok(w, s.View(who(r).Role), msg)
}

func (h *SessionHandler) open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
	}
	if !decode(w, r, &req) {
		return
	}
	s, found := h.session(w, r, req.AccountID)
	if !found {
		return
	}
	h.respond(w, r, s, "")
}

func (h *SessionHandler) openAccount(w http.ResponseWriter, r *http.Request) {
	var req accounts.OpenAccountRequest
	if !decode(w, r, &req) {
		return
	}
	id := who(r)
	req.RestaurantKey = id.RestaurantKey
	if strings.TrimSpace(req.Server) == "" {
		req.Server = id.Name
	}
	s, err := h.Sessions.OpenAccount(r.Context(), req)
	if err != nil {
		failErr(w, err, accounts.MsgCreateFailed)
		return
	}
	h.Log.Info("account opened", zap.String("account_id", s.AccountID()), zap.Int("table", req.TableNumber))
	h.respond(w, r, s, "account opened")
}

func (h *SessionHandler) view(w http.ResponseWriter, r *http.Request) {
	s, found := h.current(w, r)
	if !found {
		return
	}
	h.respond(w, r, s, "")
}

func (h *SessionHandler) teardown(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.RemoveFor(chi.URLParam(r, "accountId"), who(r).RestaurantKey); err != nil {
		fail(w, http.StatusForbidden, err.Error())
		return
	}
	ok(w, nil, "")
}

func (h *SessionHandler) reload(w http.ResponseWriter, r *http.Request) {
	s, found := h.current(w, r)
	if !found {
		return
	}
	if err := s.Reload(r.Context()); err != nil {
		failErr(w, err, accounts.MsgLoadFailed)
		return
	}
	h.respond(w, r, s, "")
}

type tempItemReq struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"cantidad"`
	ExtraIDs  []string `json:"extraIds"`
	Comments  string   `json:"comentarios"`
}

func (h *SessionHandler) addTemp(w http.ResponseWriter, r *http.Request) {
	var req tempItemReq
	if !decode(w, r, &req) {
		return
	}
	s, found := h.current(w, r)
	if !found {
		return
	}
	item, err := h.Catalog.BuildItem(r.Context(), who(r).RestaurantKey, req.ProductID, req.Quantity, req.ExtraIDs, req.Comments)
	if errors.Is(err, catalog.ErrProductNotFound) {
		fail(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		failErr(w, err, "failed to load product")
		return
	}
	if err := s.AddTemp(item); err != nil {
		failErr(w, err, "")
		return
	}
	h.respond(w, r, s, "")
}

func (h *SessionHandler) removeTemp(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		fail(w, http.StatusBadRequest, accounts.MsgInvalidTempIndex)
		return
	}
	s, found := h.current(w, r)
	if !found {
		return
	}
	if err := s.RemoveTemp(idx); err != nil {
		failErr(w, err, "")
		return
	}
	h.respond(w, r, s, "")
}

func (h *SessionHandler) commit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm       bool `json:"confirm"`
		ExpectedCount int  `json:"expectedCount"`
	}
	if !decode(w, r, &req) {
		return
	}
	s, found := h.current(w, r)
	if !found {
		return
	}
	confirmed := -1
	if req.Confirm {
		confirmed = req.ExpectedCount
	}
	if err := s.Commit(r.Context(), confirmed); err != nil {
		failErr(w, err, accounts.MsgCommitFailed)
		return
	}
	// commanding decremented stock
	h.Catalog.Invalidate(r.Context(), who(r).RestaurantKey)
	h.respond(w, r, s, "items sent to the kitchen")
}

func (h *SessionHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	s, found := h.current(w, r)
	if !found {
		return
	}
	if err := s.DeleteItem(r.Context(), chi.URLParam(r, "itemId")); err != nil {
		failErr(w, err, accounts.MsgDeleteFailed)
		return
	}
	h.respond(w, r, s, "item deleted")
}

type finalizeResp struct {
	Ticket accounts.Ticket `json:"ticket"`
	Text   string          `json:"texto"`
	View   accounts.View   `json:"sesion"`
}

func (h *SessionHandler) finalize(w http.ResponseWriter, r *http.Request) {
	s, found := h.current(w, r)
	if !found {
		return
	}
	t, err := s.Finalize(r.Context())
	if err != nil {
		failErr(w, err, accounts.MsgFinalizeFailed)
		return
	}
	ok(w, finalizeResp{Ticket: *t, Text: t.Render(), View: s.View(who(r).Role)}, "account finalized")
}

func (h *SessionHandler) reopen(w http.ResponseWriter, r *http.Request) {
	s, found := h.current(w, r)
	if !found {
		return
	}
	if err := s.Reopen(r.Context(), who(r).Role); err != nil {
		failErr(w, err, accounts.MsgReopenFailed)
		return
	}
	h.respond(w, r, s, "account reopened")
}

type paymentReq struct {
	Method   accounts.PaymentMethod `json:"metodoPago"`
	Tendered json.RawMessage        `json:"montoRecibido"`
}

// tendered accepts the amount as a JSON string or number.
func (p paymentReq) tendered() string {
	var s string
	if err := json.Unmarshal(p.Tendered, &s); err == nil {
		return s
	}
	if t := strings.TrimSpace(string(p.Tendered)); t != "null" {
		return t
	}
	return ""
}

func (h *SessionHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if !decode(w, r, &req) {
		return
	}
	s, found := h.current(w, r)
	if !found {
		return
	}
	ok(w, s.Quote(req.Method, req.tendered()), "")
}

func (h *SessionHandler) closeAccount(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if !decode(w, r, &req) {
		return
	}
	s, found := h.current(w, r)
	if !found {
		return
	}
	q := s.Quote(req.Method, req.tendered())
	if err := s.Close(r.Context(), req.Method, req.tendered()); err != nil {
		failErr(w, err, accounts.MsgCloseFailed)
		return
	}
	ok(w, map[string]any{"pago": q, "sesion": s.View(who(r).Role)}, "account closed")
}

func (h *SessionHandler) listOpen(w http.ResponseWriter, r *http.Request) {
	out, err := h.Sessions.ListOpen(r.Context(), who(r).RestaurantKey)
	if err != nil {
		failErr(w, err, accounts.MsgLoadFailed)
		return
	}
	if out == nil {
		out = []accounts.Account{}
	}
	ok(w, out, "")
}

func (h *SessionHandler) toggleExtra(w http.ResponseWriter, r *http.Request) {
	if who(r).Role != accounts.RoleAdmin {
		fail(w, http.StatusForbidden, "only administrators can change extras")
		return
	}
	x, err := h.Catalog.ToggleExtra(r.Context(), who(r).RestaurantKey, chi.URLParam(r, "productId"), chi.URLParam(r, "extraId"))
	switch {
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrExtraNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case err != nil:
		failErr(w, err, "failed to update extra")
	default:
		ok(w, x, "")
	}
}
