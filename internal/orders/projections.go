package orders

import (
	"time"

	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type ConfirmationItem struct {
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage,omitempty"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

// Confirmation is the customer's view of their own order.
type Confirmation struct {
	OrderNumber   string                  `json:"orderNumber"`
	Status        models.OrderStatus      `json:"status"`
	PaymentMethod models.PaymentMethod    `json:"paymentMethod"`
	PaymentStatus models.PaymentStatus    `json:"paymentStatus"`
	Shipping      models.ShippingSnapshot `json:"shipping"`
	DeliveryDate  string                  `json:"deliveryDate"`
	DeliverySlot  string                  `json:"deliverySlot"`
	Items         []ConfirmationItem      `json:"items"`
	Subtotal      decimal.Decimal         `json:"subtotal"`
	ShippingFee   decimal.Decimal         `json:"shippingFee"`
	Discount      decimal.Decimal         `json:"discount"`
	Total         decimal.Decimal         `json:"total"`
	PlacedAt      time.Time               `json:"placedAt"`
}

func NewConfirmation(o *models.Order) *Confirmation {
	items := make([]ConfirmationItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ConfirmationItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			LineTotal:    it.LineTotal,
		})
	}

	return &Confirmation{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Shipping:      o.Shipping,
		DeliveryDate:  o.DeliveryDate.Format(dateLayout),
		DeliverySlot:  o.DeliverySlot,
		Items:         items,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Discount:      o.Discount,
		Total:         o.Total,
		PlacedAt:      o.PlacedAt,
	}
}

// Tracking is the public projection returned to anyone who knows both the
// order number and the shipping phone. It carries no contact details.
type Tracking struct {
	OrderNumber  string             `json:"orderNumber"`
	Status       models.OrderStatus `json:"status"`
	ShippingName string             `json:"shippingName"`
	DeliveryDate string             `json:"deliveryDate"`
	DeliverySlot string             `json:"deliverySlot"`
	Address      string             `json:"address"`
	City         string             `json:"city"`
}

func NewTracking(o *models.Order) *Tracking {
	return &Tracking{
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		ShippingName: o.Shipping.Name,
		DeliveryDate: o.DeliveryDate.Format(dateLayout),
		DeliverySlot: o.DeliverySlot,
		Address:      o.Shipping.Address,
		City:         o.Shipping.City,
	}
}

// AdminDetail is the full order plus the actions currently open to an admin.
type AdminDetail struct {
	*models.Order
	NextStatus models.OrderStatus `json:"next_status,omitempty"`
	CanCancel  bool               `json:"can_cancel"`
}

func NewAdminDetail(o *models.Order) *AdminDetail {
	next, _ := o.Status.Next()
	return &AdminDetail{
		Order:      o,
		NextStatus: next,
		CanCancel:  o.Status.CanCancel(),
	}
}

type Summary struct {
	OrderNumber  string             `json:"orderNumber"`
	Status       models.OrderStatus `json:"status"`
	DeliveryDate string             `json:"deliveryDate"`
	DeliverySlot string             `json:"deliverySlot"`
	Total        decimal.Decimal    `json:"total"`
	PlacedAt     time.Time          `json:"placedAt"`
}

type OrderList struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"nextCursor,omitempty"`
	HasMore    bool      `json:"hasMore"`
}
