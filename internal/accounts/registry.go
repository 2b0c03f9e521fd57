package accounts

import (
	"context"
	"errors"
	"sync"
)

// Registry holds the live sessions of this process, one per account.
type Registry struct {
	backend Backend
	opts    SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(b Backend, opts SessionOptions) *Registry {
	return &Registry{backend: b, opts: opts, sessions: map[string]*Session{}}
}

// ErrForeignAccount is returned when an account belongs to another
// restaurant than the caller's.
var ErrForeignAccount = errors.New("account belongs to another restaurant")

// Open returns the live session for accountID, loading it first if needed.
func (r *Registry) Open(ctx context.Context, accountID string) (*Session, error) {
	return r.open(ctx, accountID, func(*Session) bool { return true })
}

// OpenFor is Open limited to accounts of restaurantKey. A foreign account is
// never registered.
func (r *Registry) OpenFor(ctx context.Context, accountID, restaurantKey string) (*Session, error) {
	return r.open(ctx, accountID, func(s *Session) bool { return s.belongsTo(restaurantKey) })
}

func (r *Registry) open(ctx context.Context, accountID string, allowed func(*Session) bool) (*Session, error) {
	if s, ok := r.Get(accountID); ok {
		if !allowed(s) {
			return nil, ErrForeignAccount
		}
		return s, nil
	}

	opts := r.opts
	onClosed := opts.OnClosed
	var s *Session
	opts.OnClosed = func(id string) {
		r.removeSession(id, s)
		if onClosed != nil {
			onClosed(id)
		}
	}
	s = NewSession(r.backend, accountID, opts)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	if !allowed(s) {
		return nil, ErrForeignAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[accountID]; ok && !existing.Closed() {
		return existing, nil
	}
	r.sessions[accountID] = s
	return s, nil
}

func (r *Registry) Get(accountID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[accountID]
	if !ok || s.Closed() {
		return nil, false
	}
	return s, true
}

func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	delete(r.sessions, accountID)
	r.mu.Unlock()
}

// RemoveFor tears down a live session of restaurantKey. Removing a session
// that is not live is a no-op.
func (r *Registry) RemoveFor(accountID, restaurantKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[accountID]
	if !ok {
		return nil
	}
	if !s.belongsTo(restaurantKey) {
		return ErrForeignAccount
	}
	delete(r.sessions, accountID)
	return nil
}

// removeSession drops accountID only while it still maps to s, so a late
// close timer never removes a session opened after it.
func (r *Registry) removeSession(accountID string, s *Session) {
	r.mu.Lock()
	if r.sessions[accountID] == s {
		delete(r.sessions, accountID)
	}
	r.mu.Unlock()
}

// OpenAccount creates an account on a table and opens its session.
func (r *Registry) OpenAccount(ctx context.Context, req OpenAccountRequest) (*Session, error) {
	switch {
	case req.RestaurantKey == "":
		return nil, invalid("restaurant key is required")
	case req.TableNumber < 1:
		return nil, invalid("table number must be at least 1")
	case req.Server == "":
		return nil, invalid("server name is required")
	}
	a, err := r.backend.CreateAccount(ctx, req)
	if err != nil {
		return nil, classify("create account", MsgCreateFailed, MsgCreateFailed, err)
	}
	return r.Open(ctx, a.ID)
}

func (r *Registry) ListOpen(ctx context.Context, restaurantKey string) ([]Account, error) {
	out, err := r.backend.ListOpenAccounts(ctx, restaurantKey)
	if err != nil {
		return nil, classify("list open accounts", MsgLoadFailed, MsgLoadFailed, err)
	}
	return out, nil
}
