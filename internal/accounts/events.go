package accounts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTicketEmitted  = "TicketEmitted"
	EventItemsCommanded = "ItemsCommanded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // account id
	Payload       json.RawMessage `json:"payload"`
}

type TicketEmittedPayload struct {
	AccountID string `json:"account_id"`
	Ticket    Ticket `json:"ticket"`
}

type CommandedLine struct {
	ItemID      string  `json:"item_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Extras      []Extra `json:"extras,omitempty"`
	Comments    string  `json:"comments,omitempty"`
}

// ItemsCommandedPayload is what the kitchen needs to prepare a batch.
type ItemsCommandedPayload struct {
	AccountID    string          `json:"account_id"`
	TicketNumber int             `json:"ticket_number"`
	Table        TableRef        `json:"table"`
	Server       string          `json:"server"`
	Lines        []CommandedLine `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Publisher delivers session events to downstream consumers. Delivery
// failures never undo a backend mutation.
type Publisher interface {
	TicketEmitted(ctx context.Context, p TicketEmittedPayload) error
	ItemsCommanded(ctx context.Context, p ItemsCommandedPayload) error
}
