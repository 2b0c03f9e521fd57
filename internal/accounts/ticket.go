package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-pos-accounts/internal/money"
	"github.com/shopspring/decimal"
)

// Ticket is the print-ready description emitted when an account is
// finalized. Rendering it to paper or PDF happens elsewhere.
type Ticket struct {
	Restaurant string          `json:"restaurante"`
	Number     int             `json:"numeroTicket"`
	Table      TableRef        `json:"mesa"`
	Server     string          `json:"mesero"`
	OpenedAt   time.Time       `json:"fechaApertura"`
	Lines      []TicketLine    `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type TicketLine struct {
	Quantity  int             `json:"cantidad"`
	Name      string          `json:"nombreProducto"`
	UnitPrice decimal.Decimal `json:"precioBase"`
	Extras    []Extra         `json:"extras"`
	Comments  string          `json:"comentarios,omitempty"`
	Total     decimal.Decimal `json:"precioTotal"`
}

// NewTicket describes the committed lines of a.
func NewTicket(restaurant string, a *Account) Ticket {
	t := Ticket{
		Restaurant: restaurant,
		Number:     a.TicketNumber,
		Table:      a.Table,
		Server:     a.Server,
		OpenedAt:   a.OpenedAt,
		Subtotal:   a.Subtotal,
	}
	for _, it := range a.CommittedItems() {
		extras := it.Extras
		if extras == nil {
			extras = []Extra{}
		}
		t.Lines = append(t.Lines, TicketLine{
			Quantity:  it.Quantity,
			Name:      it.ProductName,
			UnitPrice: it.BasePrice,
			Extras:    extras,
			Comments:  it.Comments,
			Total:     it.TotalPrice,
		})
	}
	return t
}

func (r TableRef) Label() string {
	if r.CustomName != "" {
		return fmt.Sprintf("%d (%s)", r.Number, r.CustomName)
	}
	return fmt.Sprintf("%d", r.Number)
}

// TicketWidth is the character width of an 80mm thermal roll.
const TicketWidth = 42

// Render lays the ticket out as plain text for a thermal printer.
func (t Ticket) Render() string {
	var b strings.Builder
	rule := strings.Repeat("-", TicketWidth)

	b.WriteString(center(strings.ToUpper(t.Restaurant)) + "\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Ticket: #%d\n", t.Number)
	fmt.Fprintf(&b, "Mesa: %s\n", t.Table.Label())
	fmt.Fprintf(&b, "Mesero: %s\n", t.Server)
	fmt.Fprintf(&b, "Fecha: %s\n", t.OpenedAt.Format("02/01/2006 15:04"))
	b.WriteString(rule + "\n")
	b.WriteString("ITEMS\n")
	for _, l := range t.Lines {
		fmt.Fprintf(&b, "%dx %s\n", l.Quantity, l.Name)
		fmt.Fprintf(&b, "   %s c/u\n", money.Format(l.UnitPrice))
		for _, e := range l.Extras {
			fmt.Fprintf(&b, "   + %s (+%s)\n", e.Name, money.Format(e.Surcharge))
		}
		if l.Comments != "" {
			fmt.Fprintf(&b, "   Nota: %s\n", l.Comments)
		}
		fmt.Fprintf(&b, "   Total: %s\n", money.Format(l.Total))
	}
	b.WriteString(rule + "\n")
	total := money.Format(t.Subtotal)
	b.WriteString("TOTAL:" + strings.Repeat(" ", max(1, TicketWidth-6-len(total))) + total + "\n")
	b.WriteString(rule + "\n")
	b.WriteString(center("¡Gracias por su preferencia!") + "\n")
	b.WriteString(center("Vuelva pronto") + "\n")
	return b.String()
}

func center(s string) string {
	pad := (TicketWidth - len([]rune(s))) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
