package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// fulfilmentPath is the linear happy path. Cancelled sits outside it.
var fulfilmentPath = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusDispatched,
	OrderStatusDelivered,
}

func (s OrderStatus) IsValid() bool {
	return s == OrderStatusCancelled || s.pathIndex() >= 0
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanCancel reports whether an order in status s may still be cancelled.
func (s OrderStatus) CanCancel() bool {
	return s.IsValid() && !s.IsTerminal()
}

// Next returns the single legal forward step, or false for terminal states.
func (s OrderStatus) Next() (OrderStatus, bool) {
	i := s.pathIndex()
	if i < 0 || i == len(fulfilmentPath)-1 {
		return "", false
	}
	return fulfilmentPath[i+1], true
}

// CanAdvanceTo reports whether next is the immediate forward step from s.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	n, ok := s.Next()
	return ok && n == next
}

// TimestampColumn names the orders column stamped when an order enters s.
func (s OrderStatus) TimestampColumn() string {
	switch s {
	case OrderStatusConfirmed:
		return "confirmed_at"
	case OrderStatusDispatched:
		return "dispatched_at"
	case OrderStatusDelivered:
		return "delivered_at"
	case OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

func (s OrderStatus) pathIndex() int {
	for i, st := range fulfilmentPath {
		if st == s {
			return i
		}
	}
	return -1
}

type PaymentMethod string

const (
	PaymentMethodUPI PaymentMethod = "upi"
	PaymentMethodCOD PaymentMethod = "cod"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodUPI || m == PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo guards payment confirmation updates. A failed payment may
// be retried into paid, a paid one can only be refunded.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch p {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusFailed
	case PaymentStatusFailed:
		return next == PaymentStatusPaid
	case PaymentStatusPaid:
		return next == PaymentStatusRefunded
	}
	return false
}

// DeliverySlots is the fixed set of delivery windows offered at checkout.
var DeliverySlots = []string{
	"09:00-12:00",
	"12:00-15:00",
	"15:00-18:00",
	"18:00-21:00",
}

func IsValidDeliverySlot(slot string) bool {
	for _, s := range DeliverySlots {
		if s == slot {
			return true
		}
	}
	return false
}

// ShippingSnapshot is copied into the order at creation and never re-derived
// from the customer's profile.
type ShippingSnapshot struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type Order struct {
	ID               int64            `json:"id"`
	OrderNumber      string           `json:"order_number"`
	UserID           string           `json:"user_id"`
	Status           OrderStatus      `json:"status"`
	Shipping         ShippingSnapshot `json:"shipping"`
	DeliveryDate     time.Time        `json:"delivery_date"`
	DeliverySlot     string           `json:"delivery_slot"`
	PaymentMethod    PaymentMethod    `json:"payment_method"`
	PaymentStatus    PaymentStatus    `json:"payment_status"`
	UPITransactionID string           `json:"upi_transaction_id,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	ShippingFee      decimal.Decimal  `json:"shipping_fee"`
	Discount         decimal.Decimal  `json:"discount"`
	Total            decimal.Decimal  `json:"total"`
	PlacedAt         time.Time        `json:"placed_at"`
	ConfirmedAt      *time.Time       `json:"confirmed_at,omitempty"`
	DispatchedAt     *time.Time       `json:"dispatched_at,omitempty"`
	DeliveredAt      *time.Time       `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time       `json:"cancelled_at,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int              `json:"version"`
	Items            []OrderItem      `json:"items,omitempty"`
}

// OrderItem is immutable once written. Name, image and price are snapshots
// of the product at purchase time.
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	CreatedAt    time.Time       `json:"created_at"`
}

func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// TotalsConsistent checks total == subtotal + shipping_fee - discount,
// subtotal == sum(line_total) and line_total == unit_price * quantity.
func (o *Order) TotalsConsistent() bool {
	if !o.Total.Equal(o.Subtotal.Add(o.ShippingFee).Sub(o.Discount)) {
		return false
	}
	if len(o.Items) == 0 {
		return true
	}

	sum := decimal.Zero
	for _, item := range o.Items {
		if !item.LineTotal.Equal(LineTotal(item.UnitPrice, item.Quantity)) {
			return false
		}
		sum = sum.Add(item.LineTotal)
	}
	return sum.Equal(o.Subtotal)
}

// PricingRules supplies the shipping fee and discount applied on top of the
// item subtotal.
type PricingRules struct {
	ShippingFee decimal.Decimal
	// FreeShippingMin waives the shipping fee for subtotals at or above it.
	// Zero disables the waiver.
	FreeShippingMin decimal.Decimal
}

func (r PricingRules) Quote(subtotal decimal.Decimal) (shippingFee, discount, total decimal.Decimal) {
	shippingFee = r.ShippingFee
	if r.FreeShippingMin.IsPositive() && subtotal.GreaterThanOrEqual(r.FreeShippingMin) {
		shippingFee = decimal.Zero
	}
	discount = decimal.Zero
	total = subtotal.Add(shippingFee).Sub(discount)
	return shippingFee, discount, total
}
