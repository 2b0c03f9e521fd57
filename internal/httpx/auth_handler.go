package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/backend"
	"github.com/ariefcatur/go-pos-accounts/internal/identity"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const headerSessionToken = "X-Session-Token"

// Authenticator checks credentials against the backend.
type Authenticator interface {
	Login(ctx context.Context, body json.RawMessage) (*backend.User, json.RawMessage, error)
}

type AuthHandler struct {
	Backend    Authenticator
	Identities *identity.Store
	Log        *zap.Logger
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)
}

type loginResp struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || !json.Valid(raw) {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, data, err := h.Backend.Login(r.Context(), raw)
	var be *accounts.BackendError
	if errors.As(err, &be) {
		msg := be.Message
		if msg == "" {
			msg = "Authentication failed"
		}
		fail(w, http.StatusUnauthorized, msg)
		return
	}
	if err != nil {
		h.Log.Error("login", zap.Error(err))
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	name := u.Name
	if name == "" {
		name = u.Username
	}
	token, err := h.Identities.Create(r.Context(), identity.Identity{
		UserID:        u.ID,
		Name:          name,
		Role:          u.Role,
		RestaurantKey: u.RestaurantKey,
	})
	if err != nil {
		h.Log.Error("store identity", zap.Error(err))
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.Log.Info("login", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	w.Header().Set(headerSessionToken, token)
	writeJSON(w, http.StatusOK, loginResp{Success: true, Data: data, Token: token})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	token := identity.BearerToken(r)
	if token == "" {
		fail(w, http.StatusUnauthorized, "missing session token")
		return
	}
	if err := h.Identities.Delete(r.Context(), token); err != nil {
		h.Log.Error("logout", zap.Error(err))
		fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	ok(w, nil, "")
}
