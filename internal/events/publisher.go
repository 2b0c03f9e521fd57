// Package events wraps session events in the shared envelope and hands them
// to Kafka.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	kafkax "github.com/ariefcatur/go-pos-accounts/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Sink is one topic's producer.
type Sink interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

type Publisher struct {
	Tickets  Sink
	Kitchen  Sink
	Producer string
	// TraceID extracts a request id from ctx, if any.
	TraceID func(ctx context.Context) string
}

func (p *Publisher) TicketEmitted(ctx context.Context, t accounts.TicketEmittedPayload) error {
	return p.publish(ctx, p.Tickets, accounts.EventTicketEmitted, t.AccountID, t)
}

func (p *Publisher) ItemsCommanded(ctx context.Context, c accounts.ItemsCommandedPayload) error {
	return p.publish(ctx, p.Kitchen, accounts.EventItemsCommanded, c.AccountID, c)
}

func (p *Publisher) publish(ctx context.Context, sink Sink, eventType, accountID string, payload any) error {
	if sink == nil {
		return nil
	}
	ev := accounts.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Producer,
		CorrelationID: accountID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if p.TraceID != nil {
		ev.TraceID = p.TraceID(ctx)
	}
	return sink.Publish(ctx, accounts.PartitionKey(accountID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}

var _ accounts.Publisher = (*Publisher)(nil)
