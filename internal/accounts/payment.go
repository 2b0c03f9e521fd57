package accounts

import (
	"github.com/ariefcatur/go-pos-accounts/internal/money"
	"github.com/shopspring/decimal"
)

// PaymentQuote is the payment screen projection for one method and amount.
type PaymentQuote struct {
	Method     PaymentMethod   `json:"metodoPago"`
	Total      decimal.Decimal `json:"total"`
	Tendered   decimal.Decimal `json:"montoRecibido"`
	AmountPaid decimal.Decimal `json:"totalPagado"`
	Change     decimal.Decimal `json:"cambio"`
	ShowChange bool            `json:"mostrarCambio"`
	CanConfirm bool            `json:"puedeConfirmar"`
}

// QuotePayment computes change for cash and the amount to record as paid.
// An empty tendered amount means the prefilled total; an unparsable one
// counts as zero.
func QuotePayment(total decimal.Decimal, method PaymentMethod, tendered string) PaymentQuote {
	q := PaymentQuote{Method: method, Total: total}
	switch method {
	case PaymentCash:
		t := total
		if tendered != "" {
			t = money.ParseOr(tendered, decimal.Zero)
		}
		q.Tendered = t
		q.AmountPaid = t
		q.Change = money.Max(decimal.Zero, t.Sub(total))
		q.ShowChange = true
		q.CanConfirm = !t.LessThan(total)
	case PaymentCard, PaymentTransfer:
		q.Tendered = total
		q.AmountPaid = total
		q.Change = decimal.Zero
		q.CanConfirm = true
	default:
		q.Change = decimal.Zero
	}
	return q
}

// Validate reports why the quote cannot be confirmed, if it cannot.
func (q PaymentQuote) Validate() error {
	switch {
	case !q.Method.Valid():
		return invalid(MsgInvalidPayment)
	case !q.CanConfirm:
		return invalid(MsgInsufficientTendered)
	}
	return nil
}
