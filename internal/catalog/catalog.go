// Package catalog resolves products for the order builder and keeps a short
// lived per-restaurant cache of the product list.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-pos-accounts/internal/accounts"
	"github.com/ariefcatur/go-pos-accounts/internal/money"
	"github.com/ariefcatur/go-pos-accounts/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrExtraNotFound   = errors.New("extra not found")
)

// Source is the backend side of the catalog.
type Source interface {
	ListProducts(ctx context.Context, restaurantKey string) ([]accounts.Product, error)
	SetExtraStatus(ctx context.Context, productID, extraID string, active bool) error
}

type Service struct {
	src   Source
	cache redis.Cmdable
	log   *zap.Logger
}

// New returns a catalog service. cache may be nil.
func New(src Source, cache redis.Cmdable, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{src: src, cache: cache, log: log}
}

func (s *Service) Products(ctx context.Context, restaurantKey string) ([]accounts.Product, error) {
	if ps, ok := s.cached(ctx, restaurantKey); ok {
		return ps, nil
	}
	ps, err := s.src.ListProducts(ctx, restaurantKey)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		if ps[i].Margin.IsZero() {
			ps[i].Margin = money.Margin(ps[i].Cost, ps[i].Price)
		}
	}
	s.store(ctx, restaurantKey, ps)
	return ps, nil
}

func (s *Service) Product(ctx context.Context, restaurantKey, productID string) (*accounts.Product, error) {
	ps, err := s.Products(ctx, restaurantKey)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		if ps[i].ID == productID {
			return &ps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
}

// BuildItem resolves productID and builds a pending order line from it.
func (s *Service) BuildItem(ctx context.Context, restaurantKey, productID string, qty int, extraIDs []string, comments string) (accounts.TempOrderItem, error) {
	p, err := s.Product(ctx, restaurantKey, productID)
	if err != nil {
		return accounts.TempOrderItem{}, err
	}
	return accounts.BuildItem(*p, qty, extraIDs, comments)
}

// ToggleExtra flips an extra's active flag. The cached product list shows the
// new state immediately and is rolled back if the backend refuses.
func (s *Service) ToggleExtra(ctx context.Context, restaurantKey, productID, extraID string) (*accounts.ProductExtra, error) {
	ps, err := s.Products(ctx, restaurantKey)
	if err != nil {
		return nil, err
	}
	pi, ei := -1, -1
	for i := range ps {
		if ps[i].ID != productID {
			continue
		}
		pi = i
		for j := range ps[i].Extras {
			if ps[i].Extras[j].ID == extraID {
				ei = j
			}
		}
	}
	if pi < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if ei < 0 {
		return nil, fmt.Errorf("%w: %s", ErrExtraNotFound, extraID)
	}

	extra := &ps[pi].Extras[ei]
	previous := extra.Active
	extra.Active = !previous
	s.store(ctx, restaurantKey, ps)

	if err := s.src.SetExtraStatus(ctx, productID, extraID, extra.Active); err != nil {
		extra.Active = previous
		s.store(ctx, restaurantKey, ps)
		s.log.Warn("extra status rolled back",
			zap.String("product_id", productID), zap.String("extra_id", extraID), zap.Error(err))
		return nil, err
	}
	out := *extra
	return &out, nil
}

// Invalidate drops the cached product list of a restaurant.
func (s *Service) Invalidate(ctx context.Context, restaurantKey string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf(redisx.KeyProducts, restaurantKey)).Err()
}

// InvalidateAll drops every cached product list. Used after mutations that
// do not name their restaurant.
func (s *Service) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, fmt.Sprintf(redisx.KeyProducts, "*"), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.Warn("product cache invalidate", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("product cache scan", zap.Error(err))
	}
}

func (s *Service) cached(ctx context.Context, restaurantKey string) ([]accounts.Product, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, err := s.cache.Get(ctx, fmt.Sprintf(redisx.KeyProducts, restaurantKey)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("product cache read", zap.Error(err))
		}
		return nil, false
	}
	var ps []accounts.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, false
	}
	return ps, true
}

func (s *Service) store(ctx context.Context, restaurantKey string, ps []accounts.Product) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(ps)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, fmt.Sprintf(redisx.KeyProducts, restaurantKey), b, redisx.TTLProducts).Err(); err != nil {
		s.log.Warn("product cache write", zap.Error(err))
	}
}
