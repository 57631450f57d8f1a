package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPlaced, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusPreparing, true},
		{OrderStatusPreparing, OrderStatusDispatched, true},
		{OrderStatusDispatched, OrderStatusDelivered, true},
		{OrderStatusPlaced, OrderStatusDispatched, false},
		{OrderStatusConfirmed, OrderStatusPlaced, false},
		{OrderStatusDelivered, OrderStatusConfirmed, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusPlaced, OrderStatusCancelled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestOrderStatusCancel(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusPlaced, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusDispatched} {
		assert.True(t, s.CanCancel(), s)
	}
	assert.False(t, OrderStatusDelivered.CanCancel())
	assert.False(t, OrderStatusCancelled.CanCancel())
	assert.False(t, OrderStatus("lost").CanCancel())
}

func TestOrderStatusValidity(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsValid())
	assert.True(t, OrderStatusPreparing.IsValid())
	assert.False(t, OrderStatus("shipped").IsValid())

	_, ok := OrderStatusDelivered.Next()
	assert.False(t, ok)
	_, ok = OrderStatusCancelled.Next()
	assert.False(t, ok)
}

func TestTimestampColumn(t *testing.T) {
	assert.Equal(t, "confirmed_at", OrderStatusConfirmed.TimestampColumn())
	assert.Equal(t, "dispatched_at", OrderStatusDispatched.TimestampColumn())
	assert.Equal(t, "delivered_at", OrderStatusDelivered.TimestampColumn())
	assert.Equal(t, "", OrderStatusPreparing.TimestampColumn())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusPaid))
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusFailed))
	assert.True(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusPaid))
	assert.True(t, PaymentStatusPaid.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusPaid.CanTransitionTo(PaymentStatusPending))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusPaid))
	assert.False(t, PaymentStatusPending.CanTransitionTo(PaymentStatusRefunded))
}

func TestPricingQuote(t *testing.T) {
	rules := PricingRules{ShippingFee: decimal.NewFromInt(50), FreeShippingMin: decimal.NewFromInt(1000)}

	fee, discount, total := rules.Quote(decimal.NewFromInt(200))
	assert.True(t, fee.Equal(decimal.NewFromInt(50)))
	assert.True(t, discount.IsZero())
	assert.True(t, total.Equal(decimal.NewFromInt(250)))

	fee, _, total = rules.Quote(decimal.NewFromInt(1000))
	assert.True(t, fee.IsZero())
	assert.True(t, total.Equal(decimal.NewFromInt(1000)))

	fee, _, total = PricingRules{}.Quote(decimal.NewFromInt(200))
	assert.True(t, fee.IsZero())
	assert.True(t, total.Equal(decimal.NewFromInt(200)))
}

func TestTotalsConsistent(t *testing.T) {
	order := &Order{
		Subtotal:    decimal.NewFromInt(350),
		ShippingFee: decimal.NewFromInt(50),
		Discount:    decimal.Zero,
		Total:       decimal.NewFromInt(400),
		Items: []OrderItem{
			{UnitPrice: decimal.NewFromInt(100), Quantity: 2, LineTotal: decimal.NewFromInt(200)},
			{UnitPrice: decimal.NewFromInt(150), Quantity: 1, LineTotal: decimal.NewFromInt(150)},
		},
	}
	assert.True(t, order.TotalsConsistent())

	order.Items[1].LineTotal = decimal.NewFromInt(151)
	assert.False(t, order.TotalsConsistent())

	order.Items[1].LineTotal = decimal.NewFromInt(150)
	order.Total = decimal.NewFromInt(350)
	assert.False(t, order.TotalsConsistent())
}

func TestDeliverySlots(t *testing.T) {
	assert.True(t, IsValidDeliverySlot("09:00-12:00"))
	assert.False(t, IsValidDeliverySlot("midnight"))
}

func TestPrimaryImageURL(t *testing.T) {
	p := &Product{Images: []ProductImage{{URL: "a.jpg"}, {URL: "b.jpg", IsPrimary: true}}}
	assert.Equal(t, "b.jpg", p.PrimaryImageURL())

	p.Images[1].IsPrimary = false
	assert.Equal(t, "a.jpg", p.PrimaryImageURL())

	assert.Equal(t, "", (&Product{}).PrimaryImageURL())
}
