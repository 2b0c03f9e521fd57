// Package money parses, rounds and formats currency amounts.
//
// Importing it sets decimal.MarshalJSONWithoutQuotes for the whole process:
// every decimal.Decimal is encoded as a JSON number, which is how the backend
// exchanges amounts. All binaries of this module rely on that encoding.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

// Parse reads a user-entered amount. Both "12.50" and "12,50" are accepted.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseOr returns def when s is empty or unparsable.
func ParseOr(s string, def decimal.Decimal) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		return def
	}
	return d
}

func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Margin returns the gross margin of price over cost as a percentage,
// rounded to one decimal. A non-positive price yields zero.
func Margin(cost, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(price).Mul(hundred).Round(1)
}

func Format(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
