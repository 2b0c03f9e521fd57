package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	products []accounts.Product
	lists    int
	failSet  error
	sets     []bool
}

func (f *fakeSource) ListProducts(context.Context, string) ([]accounts.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	out := make([]accounts.Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

func (f *fakeSource) SetExtraStatus(_ context.Context, _, _ string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, active)
	return f.failSet
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func menu() []accounts.Product {
	return []accounts.Product{{
		ID:    "p-taco",
		Name:  "Taco",
		Stock: 10,
		Price: d("80"),
		Cost:  d("30"),
		Extras: []accounts.ProductExtra{
			{ID: "x-queso", Name: "Queso", Surcharge: d("5"), Active: true},
			{ID: "x-salsa", Name: "Salsa", Surcharge: d("2"), Active: false},
		},
	}}
}

func newService(t *testing.T, src *fakeSource) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(src, rdb, nil)
}

func TestProductsAreCachedWithMargin(t *testing.T) {
	src := &fakeSource{products: menu()}
	s := newService(t, src)
	ctx := context.Background()

	ps, err := s.Products(ctx, "REST01")
	require.NoError(t, err)
	assert.True(t, ps[0].Margin.Equal(d("62.5")), ps[0].Margin.String())

	_, err = s.Products(ctx, "REST01")
	require.NoError(t, err)
	assert.Equal(t, 1, src.lists)

	s.Invalidate(ctx, "REST01")
	_, err = s.Products(ctx, "REST01")
	require.NoError(t, err)
	assert.Equal(t, 2, src.lists)
}

func TestInvalidateAllDropsEveryRestaurant(t *testing.T) {
	src := &fakeSource{products: menu()}
	s := newService(t, src)
	ctx := context.Background()

	for _, key := range []string{"REST01", "REST02"} {
		_, err := s.Products(ctx, key)
		require.NoError(t, err)
	}
	require.Equal(t, 2, src.lists)

	s.InvalidateAll(ctx)
	for _, key := range []string{"REST01", "REST02"} {
		_, err := s.Products(ctx, key)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, src.lists)
}

func TestBuildItemUsesActiveExtras(t *testing.T) {
	s := newService(t, &fakeSource{products: menu()})

	item, err := s.BuildItem(context.Background(), "REST01", "p-taco", 2, []string{"x-queso", "x-salsa"}, " bien dorado ")
	require.NoError(t, err)
	require.Len(t, item.Extras, 1)
	assert.True(t, item.TotalPrice.Equal(d("170")), item.TotalPrice.String())
	assert.Equal(t, "bien dorado", item.Comments)

	_, err = s.BuildItem(context.Background(), "REST01", "p-nope", 1, nil, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestToggleExtraRollsBackOnFailure(t *testing.T) {
	src := &fakeSource{products: menu()}
	s := newService(t, src)
	ctx := context.Background()

	x, err := s.ToggleExtra(ctx, "REST01", "p-taco", "x-salsa")
	require.NoError(t, err)
	assert.True(t, x.Active)
	p, err := s.Product(ctx, "REST01", "p-taco")
	require.NoError(t, err)
	assert.True(t, p.Extras[1].Active)

	src.failSet = errors.New("backend down")
	_, err = s.ToggleExtra(ctx, "REST01", "p-taco", "x-salsa")
	require.Error(t, err)
	p, err = s.Product(ctx, "REST01", "p-taco")
	require.NoError(t, err)
	assert.True(t, p.Extras[1].Active)
	assert.Equal(t, []bool{true, false}, src.sets)

	_, err = s.ToggleExtra(ctx, "REST01", "p-taco", "x-nope")
	assert.ErrorIs(t, err, ErrExtraNotFound)
}
