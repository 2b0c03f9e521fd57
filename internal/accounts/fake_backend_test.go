package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// fakeBackend keeps one account in memory and behaves like the real API:
// appends go to the tail with fresh ids, send-to-kitchen flags them and
// recomputes the subtotal over commanded items.
type fakeBackend struct {
	mu      sync.Mutex
	account Account
	nextID  int
	calls   map[string]int
	fail    map[string]error
	echoRef bool
	// appendDrop simulates a backend that returns fewer items than sent.
	appendDrop int
}

func newFakeBackend(a Account) *fakeBackend {
	return &fakeBackend{account: a, calls: map[string]int{}, fail: map[string]error{}}
}

func openAccount() Account {
	return Account{
		ID:            "acc-1",
		TicketNumber:  17,
		Table:         TableRef{Number: 5},
		Server:        "Ana",
		Items:         []AccountItem{},
		Subtotal:      decimal.Zero,
		Status:        StatusOpen,
		RestaurantKey: "REST01",
		OpenedAt:      time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC),
	}
}

func (f *fakeBackend) hit(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeBackend) snapshot() *Account {
	a := f.account
	a.Items = append([]AccountItem(nil), f.account.Items...)
	return &a
}

func (f *fakeBackend) recompute() {
	total := decimal.Zero
	for _, it := range f.account.Items {
		if it.Commanded {
			total = total.Add(it.TotalPrice)
		}
	}
	f.account.Subtotal = total
}

func (f *fakeBackend) GetAccount(_ context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("get"); err != nil {
		return nil, err
	}
	return f.snapshot(), nil
}

func (f *fakeBackend) ListOpenAccounts(_ context.Context, _ string) ([]Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("list"); err != nil {
		return nil, err
	}
	return []Account{*f.snapshot()}, nil
}

func (f *fakeBackend) CreateAccount(_ context.Context, req OpenAccountRequest) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create"); err != nil {
		return nil, err
	}
	f.account.Table = TableRef{Number: req.TableNumber, CustomName: req.CustomName}
	f.account.Server = req.Server
	return f.snapshot(), nil
}

func (f *fakeBackend) AppendItems(_ context.Context, _ string, items []TempOrderItem) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("append"); err != nil {
		return nil, err
	}
	for _, t := range items[:len(items)-f.appendDrop] {
		f.nextID++
		it := AccountItem{
			ID:          fmt.Sprintf("item-%d", f.nextID),
			ProductID:   t.ProductID,
			ProductName: t.ProductName,
			BasePrice:   t.BasePrice,
			Quantity:    t.Quantity,
			Extras:      t.Extras,
			Comments:    t.Comments,
			TotalPrice:  t.TotalPrice,
		}
		if f.echoRef {
			it.ClientRef = t.ClientRef
		}
		f.account.Items = append(f.account.Items, it)
	}
	return f.snapshot(), nil
}

func (f *fakeBackend) SendToKitchen(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("send"); err != nil {
		return err
	}
	now := time.Now()
	for i := range f.account.Items {
		for _, id := range ids {
			if f.account.Items[i].ID == id {
				f.account.Items[i].Commanded = true
				f.account.Items[i].CommandedAt = &now
			}
		}
	}
	f.recompute()
	return nil
}

func (f *fakeBackend) DeleteItem(_ context.Context, _ string, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("delete"); err != nil {
		return err
	}
	out := make([]AccountItem, 0, len(f.account.Items))
	for _, it := range f.account.Items {
		if it.ID == itemID {
			if it.Commanded {
				return &BackendError{Op: "delete", Message: "Solo se pueden eliminar items no comandados"}
			}
			continue
		}
		out = append(out, it)
	}
	f.account.Items = out
	f.recompute()
	return nil
}

func (f *fakeBackend) Finalize(_ context.Context, _ string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("finalize"); err != nil {
		return nil, err
	}
	f.account.Status = StatusFinalized
	return f.snapshot(), nil
}

func (f *fakeBackend) Reopen(_ context.Context, _ string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("reopen"); err != nil {
		return nil, err
	}
	f.account.Status = StatusOpen
	return f.snapshot(), nil
}

func (f *fakeBackend) Close(_ context.Context, _ string, p ClosePayment) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("close"); err != nil {
		return nil, err
	}
	now := time.Now()
	paid := p.AmountPaid
	f.account.Status = StatusClosed
	f.account.PaymentMethod = p.Method
	f.account.AmountPaid = &paid
	f.account.ClosedAt = &now
	return f.snapshot(), nil
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

type recordingPublisher struct {
	mu        sync.Mutex
	tickets   []TicketEmittedPayload
	commanded []ItemsCommandedPayload
}

func (p *recordingPublisher) TicketEmitted(_ context.Context, t TicketEmittedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, t)
	return nil
}

func (p *recordingPublisher) ItemsCommanded(_ context.Context, c ItemsCommandedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commanded = append(p.commanded, c)
	return nil
}

type memDispatchLog struct {
	mu      sync.Mutex
	records map[string]*PendingDispatch
	sent    map[string]bool
	seq     int
}

func newMemDispatchLog() *memDispatchLog {
	return &memDispatchLog{records: map[string]*PendingDispatch{}, sent: map[string]bool{}}
}

func (l *memDispatchLog) Record(_ context.Context, accountID string, ids []string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	id := fmt.Sprintf("d-%d", l.seq)
	l.records[id] = &PendingDispatch{ID: id, AccountID: accountID, ItemIDs: append([]string(nil), ids...)}
	return id, nil
}

func (l *memDispatchLog) Attempted(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.records[id]; ok {
		r.Attempts++
	}
	return nil
}

func (l *memDispatchLog) MarkSent(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent[id] = true
	return nil
}

func (l *memDispatchLog) Pending(_ context.Context, accountID string) (*PendingDispatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, r := range l.records {
		if r.AccountID == accountID && !l.sent[id] {
			p := *r
			return &p, nil
		}
	}
	return nil, nil
}
