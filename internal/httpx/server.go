package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Message: msg})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Message: msg})
}

// failErr maps the session error taxonomy onto a status and the message the
// user should see.
func failErr(w http.ResponseWriter, err error, def string) {
	msg := accounts.UserMessage(err, def)
	var (
		ve *accounts.ValidationError
		be *accounts.BackendError
	)
	switch {
	case errors.As(err, &ve) && ve.Message == accounts.MsgOperationInProgress:
		fail(w, http.StatusConflict, msg)
	case errors.As(err, &ve):
		fail(w, http.StatusBadRequest, msg)
	case errors.As(err, &be):
		fail(w, http.StatusUnprocessableEntity, msg)
	default:
		fail(w, http.StatusBadGateway, msg)
	}
}
