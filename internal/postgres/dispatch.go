package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const dispatchSchema = `
CREATE TABLE IF NOT EXISTS pending_dispatches (
	id          UUID PRIMARY KEY,
	account_id  TEXT        NOT NULL,
	item_ids    TEXT[]      NOT NULL,
	attempts    INT         NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	sent_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS pending_dispatches_open
	ON pending_dispatches (account_id, created_at DESC) WHERE sent_at IS NULL;`

// DispatchRepo persists items that were appended to an account but not yet
// sent to the kitchen.
type DispatchRepo struct{ DB DBTX }

func (r *DispatchRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.Exec(ctx, dispatchSchema); err != nil {
		return fmt.Errorf("create pending_dispatches: %w", err)
	}
	return nil
}

func (r *DispatchRepo) Record(ctx context.Context, accountID string, itemIDs []string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.Exec(ctx,
		`INSERT INTO pending_dispatches (id, account_id, item_ids) VALUES ($1, $2, $3)`,
		id, accountID, itemIDs)
	if err != nil {
		return "", fmt.Errorf("record dispatch: %w", err)
	}
	return id, nil
}

func (r *DispatchRepo) Attempted(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE pending_dispatches SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

func (r *DispatchRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE pending_dispatches SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id)
	return err
}

// Pending returns the newest unsent dispatch of an account, or nil.
func (r *DispatchRepo) Pending(ctx context.Context, accountID string) (*accounts.PendingDispatch, error) {
	var p accounts.PendingDispatch
	err := r.DB.QueryRow(ctx, `
		SELECT id::text, account_id, item_ids, attempts
		FROM pending_dispatches
		WHERE account_id = $1 AND sent_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, accountID).Scan(&p.ID, &p.AccountID, &p.ItemIDs, &p.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending dispatch: %w", err)
	}
	return &p, nil
}

var _ accounts.DispatchLog = (*DispatchRepo)(nil)
