package accounts

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Selection accumulates a user's choices for one product before it becomes
// a TempOrderItem. Quantity stays within [1, stock].
type Selection struct {
	product  Product
	quantity int
	extras   map[string]bool
	comments string
}

func NewSelection(p Product) *Selection {
	return &Selection{product: p, quantity: 1, extras: map[string]bool{}}
}

func (s *Selection) Quantity() int { return s.quantity }

// Increment is a no-op at the stock limit.
func (s *Selection) Increment() {
	if s.quantity < s.product.Stock {
		s.quantity++
	}
}

// Decrement is a no-op at one.
func (s *Selection) Decrement() {
	if s.quantity > 1 {
		s.quantity--
	}
}

// SetQuantity clamps n into the selectable range.
func (s *Selection) SetQuantity(n int) {
	if n > s.product.Stock {
		n = s.product.Stock
	}
	if n < 1 {
		n = 1
	}
	s.quantity = n
}

// ToggleExtra flips an active extra. Inactive or unknown ids are ignored and
// reported as false.
func (s *Selection) ToggleExtra(id string) bool {
	for _, e := range s.product.ActiveExtras() {
		if e.ID == id {
			if s.extras[id] {
				delete(s.extras, id)
			} else {
				s.extras[id] = true
			}
			return true
		}
	}
	return false
}

func (s *Selection) SetComments(c string) { s.comments = c }

func (s *Selection) selectedExtras() []Extra {
	out := []Extra{}
	for _, e := range s.product.ActiveExtras() {
		if s.extras[e.ID] {
			out = append(out, Extra{Name: e.Name, Surcharge: e.Surcharge})
		}
	}
	return out
}

// Total is (base price + selected surcharges) * quantity.
func (s *Selection) Total() decimal.Decimal {
	return LineTotal(s.product.Price, s.selectedExtras(), s.quantity)
}

// Build returns the priced, uncommitted order line. It fails only when the
// product has no stock at all.
func (s *Selection) Build() (TempOrderItem, error) {
	if s.product.Stock < 1 {
		return TempOrderItem{}, invalid("%s is out of stock", s.product.Name)
	}
	extras := s.selectedExtras()
	return TempOrderItem{
		ClientRef:   uuid.NewString(),
		ProductID:   s.product.ID,
		ProductName: s.product.Name,
		Image:       s.product.Image,
		BasePrice:   s.product.Price,
		Quantity:    s.quantity,
		Extras:      extras,
		Comments:    strings.TrimSpace(s.comments),
		TotalPrice:  LineTotal(s.product.Price, extras, s.quantity),
	}, nil
}

func LineTotal(base decimal.Decimal, extras []Extra, qty int) decimal.Decimal {
	unit := base
	for _, e := range extras {
		unit = unit.Add(e.Surcharge)
	}
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// BuildItem applies a complete selection request in one step, the way the
// session API receives it.
func BuildItem(p Product, quantity int, extraIDs []string, comments string) (TempOrderItem, error) {
	sel := NewSelection(p)
	sel.SetQuantity(quantity)
	seen := map[string]bool{}
	for _, id := range extraIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		sel.ToggleExtra(id)
	}
	sel.SetComments(comments)
	return sel.Build()
}
