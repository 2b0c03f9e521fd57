package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin   Role = "Administrador"
	RoleWaiter  Role = "Mesero"
	RoleCashier Role = "Cajero"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "efectivo"
	PaymentCard     PaymentMethod = "tarjeta"
	PaymentTransfer PaymentMethod = "transferencia"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	}
	return false
}

type Table struct {
	ID            string    `json:"_id"`
	Number        int       `json:"numeroMesa"`
	CustomName    string    `json:"nombrePersonalizado,omitempty"`
	RestaurantKey string    `json:"claveRestaurante"`
	Active        bool      `json:"activa"`
	RegisteredAt  time.Time `json:"fechaRegistro"`
}

// TableRef is the table snapshot embedded in an account.
type TableRef struct {
	Number     int    `json:"numeroMesa"`
	CustomName string `json:"nombrePersonalizado,omitempty"`
}

type Extra struct {
	Name      string          `json:"nombreExtra"`
	Surcharge decimal.Decimal `json:"costoExtra"`
}

type AccountItem struct {
	ID          string          `json:"_id,omitempty"`
	ClientRef   string          `json:"clientRef,omitempty"`
	ProductID   string          `json:"productoId"`
	ProductName string          `json:"nombreProducto"`
	Image       string          `json:"imagenProducto,omitempty"`
	BasePrice   decimal.Decimal `json:"precioBase"`
	Quantity    int             `json:"cantidad"`
	Extras      []Extra         `json:"extras"`
	Comments    string          `json:"comentarios,omitempty"`
	TotalPrice  decimal.Decimal `json:"precioTotal"`
	Commanded   bool            `json:"comandado"`
	CommandedAt *time.Time      `json:"fechaComandado,omitempty"`
}

type Account struct {
	ID            string           `json:"_id"`
	TicketNumber  int              `json:"numeroTicket"`
	Table         TableRef         `json:"mesa"`
	Server        string           `json:"mesero"`
	Items         []AccountItem    `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Status        Status           `json:"estado"`
	RestaurantKey string           `json:"claveRestaurante"`
	OpenedAt      time.Time        `json:"fechaApertura"`
	ClosedAt      *time.Time       `json:"fechaCierre,omitempty"`
	PaymentMethod PaymentMethod    `json:"metodoPago,omitempty"`
	AmountPaid    *decimal.Decimal `json:"totalPagado,omitempty"`
}

// CommittedItems returns the items already sent to the kitchen.
func (a *Account) CommittedItems() []AccountItem {
	out := make([]AccountItem, 0, len(a.Items))
	for _, it := range a.Items {
		if it.Commanded {
			out = append(out, it)
		}
	}
	return out
}

// UncommittedItems returns persisted items the kitchen has not received yet.
func (a *Account) UncommittedItems() []AccountItem {
	var out []AccountItem
	for _, it := range a.Items {
		if !it.Commanded {
			out = append(out, it)
		}
	}
	return out
}

// CommittedTotal sums precioTotal over committed items. It is only used for
// projections; the backend subtotal is authoritative.
func (a *Account) CommittedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range a.Items {
		if it.Commanded {
			total = total.Add(it.TotalPrice)
		}
	}
	return total
}

func (a *Account) Item(id string) (AccountItem, bool) {
	for _, it := range a.Items {
		if it.ID == id {
			return it, true
		}
	}
	return AccountItem{}, false
}

// TempOrderItem is an order line accumulated locally before it is persisted.
type TempOrderItem struct {
	ClientRef   string          `json:"clientRef,omitempty"`
	ProductID   string          `json:"productoId"`
	ProductName string          `json:"nombreProducto"`
	Image       string          `json:"imagenProducto,omitempty"`
	BasePrice   decimal.Decimal `json:"precioBase"`
	Quantity    int             `json:"cantidad"`
	Extras      []Extra         `json:"extras"`
	Comments    string          `json:"comentarios,omitempty"`
	TotalPrice  decimal.Decimal `json:"precioTotal"`
}

// ProductExtra is an extra as configured on a product.
type ProductExtra struct {
	ID        string          `json:"_id"`
	Name      string          `json:"nombreExtra"`
	Surcharge decimal.Decimal `json:"costoExtra"`
	Active    bool            `json:"activo"`
}

type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"nombreProducto"`
	Image       string          `json:"imagenProducto,omitempty"`
	Description string          `json:"descripcion,omitempty"`
	Stock       int             `json:"stockDisponible"`
	Price       decimal.Decimal `json:"precioVenta"`
	Cost        decimal.Decimal `json:"costo"`
	Margin      decimal.Decimal `json:"margenGanancia"`
	Category    string          `json:"categoria,omitempty"`
	Extras      []ProductExtra  `json:"extras"`
}

// ActiveExtras returns the extras that may be selected for new orders.
func (p *Product) ActiveExtras() []ProductExtra {
	out := make([]ProductExtra, 0, len(p.Extras))
	for _, e := range p.Extras {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

type OpenAccountRequest struct {
	RestaurantKey string `json:"claveRestaurante"`
	TableNumber   int    `json:"numeroMesa"`
	CustomName    string `json:"nombrePersonalizado,omitempty"`
	Server        string `json:"mesero"`
}

type ClosePayment struct {
	Method     PaymentMethod   `json:"metodoPago"`
	AmountPaid decimal.Decimal `json:"totalPagado"`
}
