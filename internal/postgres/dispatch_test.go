package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *[]string:
			*p = r.vals[i].([]string)
		case *int:
			*p = r.vals[i].(int)
		}
	}
	return nil
}

type fakeDB struct {
	execs []execCall
	row   fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

func TestDispatchRepoRecord(t *testing.T) {
	db := &fakeDB{}
	r := &DispatchRepo{DB: db}

	id, err := r.Record(context.Background(), "acc-1", []string{"i1", "i2"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, db.execs, 1)
	assert.True(t, strings.HasPrefix(db.execs[0].sql, "INSERT INTO pending_dispatches"))
	assert.Equal(t, []any{id, "acc-1", []string{"i1", "i2"}}, db.execs[0].args)

	require.NoError(t, r.MarkSent(context.Background(), id))
	assert.Contains(t, db.execs[1].sql, "sent_at = now()")
}

func TestDispatchRepoPending(t *testing.T) {
	db := &fakeDB{row: fakeRow{vals: []any{"d1", "acc-1", []string{"i1"}, 2}}}
	r := &DispatchRepo{DB: db}

	p, err := r.Pending(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"i1"}, p.ItemIDs)
	assert.Equal(t, 2, p.Attempts)

	db.row = fakeRow{err: pgx.ErrNoRows}
	p, err = r.Pending(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Nil(t, p)

	db.row = fakeRow{err: errors.New("conn reset")}
	_, err = r.Pending(context.Background(), "acc-1")
	assert.Error(t, err)
}
