package accounts

import "context"

// Backend is the external API that owns persisted accounts. Implementations
// return *BackendError for success=false replies and *TransportError for
// network or decoding failures.
type Backend interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	ListOpenAccounts(ctx context.Context, restaurantKey string) ([]Account, error)
	CreateAccount(ctx context.Context, req OpenAccountRequest) (*Account, error)
	AppendItems(ctx context.Context, accountID string, items []TempOrderItem) (*Account, error)
	SendToKitchen(ctx context.Context, accountID string, itemIDs []string) error
	DeleteItem(ctx context.Context, accountID, itemID string) error
	Finalize(ctx context.Context, accountID string) (*Account, error)
	Reopen(ctx context.Context, accountID string) (*Account, error)
	Close(ctx context.Context, accountID string, p ClosePayment) (*Account, error)
}

// PendingDispatch records items that were persisted by an append but not yet
// sent to the kitchen.
type PendingDispatch struct {
	ID        string   `json:"id,omitempty"`
	AccountID string   `json:"accountId"`
	ItemIDs   []string `json:"itemIds"`
	Attempts  int      `json:"attempts"`
}

// DispatchLog keeps pending dispatches across process restarts.
type DispatchLog interface {
	Record(ctx context.Context, accountID string, itemIDs []string) (string, error)
	Attempted(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string) error
	Pending(ctx context.Context, accountID string) (*PendingDispatch, error)
}

// Locker is an advisory per-account guard shared by every instance.
type Locker interface {
	Acquire(ctx context.Context, accountID string) (release func(), ok bool, err error)
}
