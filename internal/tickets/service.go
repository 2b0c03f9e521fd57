// Package tickets consumes emitted tickets and writes them out as printable
// text files.
package tickets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	kafkax "github.com/ariefcatur/go-pos-accounts/internal/kafka"
	"github.com/ariefcatur/go-pos-accounts/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Service struct {
	Redis       redis.Cmdable
	Dir         string
	ServiceName string
	Log         *zap.Logger
}

// HandleTicketEmitted is installed as the consumer handler. An event id is
// marked as seen only after its file is written, so a failed write is
// retried on redelivery.
func (s *Service) HandleTicketEmitted(ctx context.Context, m kafkago.Message) error {
	var env accounts.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != accounts.EventTicketEmitted {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, err := redisx.Exists(ctx, s.Redis, dkey); err != nil {
		s.Log.Warn("dedup lookup failed", zap.Error(err))
	} else if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[accounts.TicketEmittedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("skip ticket with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	path, err := s.Write(p.Ticket)
	if err != nil {
		return err
	}
	if err := s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		s.Log.Warn("dedup mark failed", zap.Error(err))
	}
	s.Log.Info("ticket written",
		zap.String("account_id", p.AccountID),
		zap.Int("ticket", p.Ticket.Number),
		zap.String("path", path))
	return nil
}

// Write renders t into Dir/ticket-<n>.txt, replacing any previous copy.
func (s *Service) Write(t accounts.Ticket) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create tickets dir: %w", err)
	}
	path := filepath.Join(s.Dir, fmt.Sprintf("ticket-%d.txt", t.Number))
	tmp, err := os.CreateTemp(s.Dir, ".ticket-*")
	if err != nil {
		return "", fmt.Errorf("create temp ticket: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(t.Render()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write ticket: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish ticket file: %w", err)
	}
	return path, nil
}
