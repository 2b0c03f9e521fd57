package accounts

import "github.com/shopspring/decimal"

// Actions lists what the current user may do right now. Delete is only ever
// offered for lines that have not reached the kitchen.
type Actions struct {
	AddItems    bool     `json:"agregar"`
	Commit      bool     `json:"comandar"`
	Finalize    bool     `json:"finalizar"`
	Reopen      bool     `json:"reabrir"`
	Close       bool     `json:"cerrar"`
	DeleteItems []string `json:"eliminables"`
}

type View struct {
	Account         *Account         `json:"cuenta"`
	TempItems       []TempOrderItem  `json:"itemsPendientes"`
	TempTotal       decimal.Decimal  `json:"totalPendiente"`
	GrandTotal      decimal.Decimal  `json:"totalGeneral"`
	PendingDispatch *PendingDispatch `json:"despachoPendiente,omitempty"`
	Busy            bool             `json:"ocupada"`
	Actions         Actions          `json:"acciones"`
}

// View snapshots the session for role.
func (s *Session) View(role Role) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		TempItems: append([]TempOrderItem{}, s.temp...),
		TempTotal: tempTotal(s.temp),
		Busy:      s.busy,
	}
	if s.pending != nil {
		p := *s.pending
		v.PendingDispatch = &p
	}
	if s.account == nil {
		return v
	}
	a := *s.account
	a.Items = append([]AccountItem{}, s.account.Items...)
	v.Account = &a
	v.GrandTotal = a.Subtotal.Add(v.TempTotal)

	open := a.Status == StatusOpen && !s.busy
	_, _, toCommit := s.commitTargetLocked()
	v.Actions = Actions{
		AddItems:    open && s.pending == nil,
		Commit:      open && toCommit > 0,
		Finalize:    open && len(s.temp) == 0 && s.pending == nil && len(a.CommittedItems()) > 0,
		Reopen:      a.Status == StatusFinalized && role != RoleWaiter && !s.busy,
		Close:       CanTransition(a.Status, StatusClosed) && !s.busy,
		DeleteItems: []string{},
	}
	if open {
		for _, it := range a.UncommittedItems() {
			if it.ID != "" {
				v.Actions.DeleteItems = append(v.Actions.DeleteItems, it.ID)
			}
		}
	}
	return v
}
