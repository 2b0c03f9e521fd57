package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosePolicy decides what happens to pending temp items when an account is
// closed.
type ClosePolicy string

const (
	// ClosePendingDiscard closes anyway and drops the pending lines.
	ClosePendingDiscard ClosePolicy = "discard"
	// ClosePendingReject refuses to close while lines are pending.
	ClosePendingReject ClosePolicy = "reject"
)

type SessionOptions struct {
	Publisher      Publisher
	Dispatch       DispatchLog
	Locker         Locker
	Logger         *zap.Logger
	ClosePolicy    ClosePolicy
	CloseDelay     time.Duration
	RestaurantName string
	// OnClosed is called once, CloseDelay after a successful close.
	OnClosed func(accountID string)
}

// Session owns one account's server-synchronized state plus the local list
// of lines not yet committed. The backend stays authoritative for items,
// subtotal and status: every mutation ends with a reload.
type Session struct {
	backend   Backend
	opts      SessionOptions
	log       *zap.Logger
	accountID string

	mu      sync.Mutex
	account *Account
	temp    []TempOrderItem
	pending *PendingDispatch
	busy    bool
	closed  bool
}

func NewSession(b Backend, accountID string, opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ClosePolicy == "" {
		opts.ClosePolicy = ClosePendingDiscard
	}
	return &Session{
		backend:   b,
		opts:      opts,
		log:       opts.Logger.With(zap.String("account_id", accountID)),
		accountID: accountID,
	}
}

func (s *Session) AccountID() string { return s.accountID }

// Open loads the account and restores any dispatch left pending by a
// previous process.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.restorePending(ctx)
	return nil
}

// Reload replaces local server state with the backend's current account.
// Calling it repeatedly on an unchanged record yields identical state.
func (s *Session) Reload(ctx context.Context) error {
	a, err := s.backend.GetAccount(ctx, s.accountID)
	if err != nil {
		return classify("load account", MsgLoadFailed, MsgLoadFailed, err)
	}
	s.mu.Lock()
	s.account = a
	s.mu.Unlock()
	return nil
}

// refresh reloads after a successful mutation. The mutation already
// happened, so a failed reload only falls back to the mutation's reply.
func (s *Session) refresh(ctx context.Context, fallback *Account) {
	if err := s.Reload(ctx); err != nil {
		s.log.Warn("reload after mutation failed", zap.Error(err))
		if fallback != nil {
			s.mu.Lock()
			s.account = fallback
			s.mu.Unlock()
		}
	}
}

func (s *Session) restorePending(ctx context.Context) {
	if s.opts.Dispatch == nil {
		return
	}
	p, err := s.opts.Dispatch.Pending(ctx, s.accountID)
	if err != nil {
		s.log.Warn("load pending dispatch", zap.Error(err))
		return
	}
	if p == nil {
		return
	}

	s.mu.Lock()
	var ids []string
	for _, id := range p.ItemIDs {
		if it, ok := s.account.Item(id); ok && !it.Commanded {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		p.ItemIDs = ids
		s.pending = p
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		// someone else already dispatched (or deleted) them
		if err := s.opts.Dispatch.MarkSent(ctx, p.ID); err != nil {
			s.log.Warn("mark stale dispatch sent", zap.Error(err))
		}
	}
}

// begin marks the session busy for one network-bound operation. The returned
// func must be deferred; it clears the busy mark and releases the shared lock.
func (s *Session) begin(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, invalid(MsgOperationInProgress)
	}
	if s.account == nil {
		s.mu.Unlock()
		return nil, invalid(MsgLoadFailed)
	}
	s.busy = true
	s.mu.Unlock()

	release := func() {}
	if s.opts.Locker != nil {
		rel, ok, err := s.opts.Locker.Acquire(ctx, s.accountID)
		switch {
		case err != nil:
			s.log.Warn("shared account lock unavailable", zap.Error(err))
		case !ok:
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
			return nil, invalid(MsgOperationInProgress)
		default:
			release = rel
		}
	}
	return func() {
		release()
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}, nil
}

// AddTemp appends a line to the local pending list.
func (s *Session) AddTemp(item TempOrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if item.Quantity < 1 {
		return invalid("quantity must be at least 1")
	}
	if item.Extras == nil {
		item.Extras = []Extra{}
	}
	s.temp = append(s.temp, item)
	return nil
}

// RemoveTemp drops the pending line at index.
func (s *Session) RemoveTemp(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.temp) {
		return invalid(MsgInvalidTempIndex)
	}
	s.temp = append(s.temp[:index:index], s.temp[index+1:]...)
	return nil
}

func (s *Session) editableLocked() error {
	switch {
	case s.account == nil:
		return invalid(MsgLoadFailed)
	case s.busy:
		return invalid(MsgOperationInProgress)
	case s.account.Status != StatusOpen:
		return invalid("account is %s", s.account.Status)
	case s.pending != nil:
		return invalid(MsgDispatchPending)
	}
	return nil
}

func (s *Session) TempItems() []TempOrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TempOrderItem(nil), s.temp...)
}

func (s *Session) TempTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tempTotal(s.temp)
}

func tempTotal(items []TempOrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// Account returns a copy of the last loaded account.
func (s *Session) Account() *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return nil
	}
	a := *s.account
	a.Items = append([]AccountItem(nil), s.account.Items...)
	return &a
}

func (s *Session) Pending() *PendingDispatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// belongsTo reports whether the loaded account is one of restaurantKey's.
// Accounts the backend returned without a restaurant key always match.
func (s *Session) belongsTo(restaurantKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil || s.account.RestaurantKey == "" {
		return true
	}
	return s.account.RestaurantKey == restaurantKey
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// DeleteItem removes a persisted line. Lines already sent to the kitchen are
// refused locally and never reach the backend.
func (s *Session) DeleteItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return invalid(MsgLoadFailed)
	}
	if s.account.Status != StatusOpen {
		st := s.account.Status
		s.mu.Unlock()
		return invalid("account is %s", st)
	}
	it, ok := s.account.Item(itemID)
	s.mu.Unlock()
	if !ok {
		return invalid(MsgItemNotFound)
	}
	if it.Commanded {
		return invalid(MsgDeleteCommitted)
	}

	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := s.backend.DeleteItem(ctx, s.accountID, itemID); err != nil {
		return classify("delete item", MsgDeleteCommitted, MsgDeleteFailed, err)
	}

	var settled string
	s.mu.Lock()
	if s.pending != nil {
		s.pending.ItemIDs = without(s.pending.ItemIDs, itemID)
		if len(s.pending.ItemIDs) == 0 {
			// the temp lines it mirrored were persisted, so they go too
			settled = s.pending.ID
			s.pending = nil
			s.temp = nil
		}
	}
	s.mu.Unlock()
	if settled != "" && s.opts.Dispatch != nil {
		if err := s.opts.Dispatch.MarkSent(ctx, settled); err != nil {
			s.log.Warn("settle pending dispatch", zap.Error(err))
		}
	}

	s.log.Info("item deleted", zap.String("item_id", itemID))
	s.refresh(ctx, nil)
	return nil
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// Finalize locks the order content and emits the print-ready ticket.
func (s *Session) Finalize(ctx context.Context) (*Ticket, error) {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return nil, invalid(MsgLoadFailed)
	}
	a := s.account
	switch {
	case a.Status != StatusOpen || !CanTransition(a.Status, StatusFinalized):
		s.mu.Unlock()
		return nil, invalid("account is %s", a.Status)
	case len(s.temp) > 0 || s.pending != nil:
		s.mu.Unlock()
		return nil, invalid(MsgPendingBeforeFinal)
	case len(a.CommittedItems()) == 0:
		s.mu.Unlock()
		return nil, invalid(MsgNoCommittedItems)
	}
	local := *a
	s.mu.Unlock()

	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	updated, err := s.backend.Finalize(ctx, s.accountID)
	if err != nil {
		return nil, classify("finalize", MsgFinalizeFailed, MsgFinalizeFailed, err)
	}

	src := &local
	if updated != nil && len(updated.Items) > 0 {
		src = updated
	}
	ticket := NewTicket(s.opts.RestaurantName, src)
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.TicketEmitted(ctx, TicketEmittedPayload{AccountID: s.accountID, Ticket: ticket}); err != nil {
			s.log.Error("emit ticket", zap.Int("ticket", ticket.Number), zap.Error(err))
		}
	}

	s.log.Info("account finalized", zap.Int("ticket", ticket.Number))
	s.refresh(ctx, updated)
	return &ticket, nil
}

// Reopen reverts a finalized account to open. Waiters may not do this.
func (s *Session) Reopen(ctx context.Context, role Role) error {
	if role == RoleWaiter {
		return invalid(MsgWaiterCannotReopen)
	}
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return invalid(MsgLoadFailed)
	}
	st := s.account.Status
	s.mu.Unlock()
	if st != StatusFinalized || !CanTransition(st, StatusOpen) {
		return invalid("account is %s", st)
	}

	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	updated, err := s.backend.Reopen(ctx, s.accountID)
	if err != nil {
		return classify("reopen", MsgReopenFailed, MsgReopenFailed, err)
	}
	s.log.Info("account reopened", zap.String("role", string(role)))
	s.refresh(ctx, updated)
	return nil
}

// Quote projects the payment screen for the current subtotal.
func (s *Session) Quote(method PaymentMethod, tendered string) PaymentQuote {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	if s.account != nil {
		total = s.account.Subtotal
	}
	return QuotePayment(total, method, tendered)
}

// Close settles the account with the given payment and schedules the
// session teardown.
func (s *Session) Close(ctx context.Context, method PaymentMethod, tendered string) error {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return invalid(MsgLoadFailed)
	}
	st := s.account.Status
	hasPending := len(s.temp) > 0 || s.pending != nil
	q := QuotePayment(s.account.Subtotal, method, tendered)
	s.mu.Unlock()

	if !CanTransition(st, StatusClosed) {
		return invalid("account is %s", st)
	}
	if hasPending && s.opts.ClosePolicy == ClosePendingReject {
		return invalid(MsgPendingBeforeClose)
	}
	if err := q.Validate(); err != nil {
		return err
	}

	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	updated, err := s.backend.Close(ctx, s.accountID, ClosePayment{Method: method, AmountPaid: q.AmountPaid})
	if err != nil {
		return classify("close", MsgCloseFailed, MsgCloseFailed, err)
	}

	s.mu.Lock()
	if hasPending {
		s.log.Warn("closing with pending lines", zap.Int("temp_items", len(s.temp)))
	}
	s.temp = nil
	s.pending = nil
	s.closed = true
	s.mu.Unlock()

	s.log.Info("account closed",
		zap.String("method", string(method)),
		zap.String("paid", q.AmountPaid.StringFixed(2)),
		zap.String("change", q.Change.StringFixed(2)))
	s.refresh(ctx, updated)

	if s.opts.OnClosed != nil {
		time.AfterFunc(s.opts.CloseDelay, func() { s.opts.OnClosed(s.accountID) })
	}
	return nil
}
