package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_RejectsUnknownCurrency(t *testing.T) {
	_, err := NewRenderer("Shop", "XYZW")
	assert.Error(t, err)
}

func TestRenderer_Money(t *testing.T) {
	r, err := NewRenderer("Shop", "INR")
	require.NoError(t, err)

	assert.Equal(t, "INR 1,234.50", r.Money(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "INR 0.00", r.Money(decimal.Zero))
}

func TestRenderer_OrderConfirmation(t *testing.T) {
	r, err := NewRenderer("Crash Store", "INR")
	require.NoError(t, err)

	msg := r.OrderConfirmation("a@example.com", OrderConfirmation{
		OrderID: "0123456789abcdef",
		Items: []OrderItem{
			{ProductID: "p1", Name: "Kettle", Quantity: 2, Price: decimal.NewFromInt(50)},
			{ProductID: "p2", Quantity: 1, Price: decimal.NewFromInt(10)},
		},
		Subtotal:       decimal.NewFromInt(110),
		CouponCode:     "SAVE10",
		CouponDiscount: decimal.NewFromInt(11),
		Total:          decimal.NewFromInt(99),
	})

	assert.Equal(t, "a@example.com", msg.To)
	assert.Equal(t, "Crash Store: order 01234567 confirmed", msg.Subject)
	assert.Contains(t, msg.Body, "Kettle x2  INR 100.00")
	assert.Contains(t, msg.Body, "p2 x1  INR 10.00")
	assert.Contains(t, msg.Body, "Coupon SAVE10: -INR 11.00")
	assert.NotContains(t, msg.Body, "CrashCash")
	assert.Contains(t, msg.Body, "Total: INR 99.00")
}

func TestRenderer_StatusChanged(t *testing.T) {
	r, err := NewRenderer("Crash Store", "INR")
	require.NoError(t, err)

	msg := r.StatusChanged("a@example.com", StatusChange{
		OrderID: "order-1",
		Label:   "Out For Delivery",
		Reason:  "courier picked up",
		At:      time.Date(2026, 5, 10, 12, 30, 0, 0, time.UTC),
	})

	assert.Equal(t, "Crash Store: order order-1 out for delivery", msg.Subject)
	assert.Contains(t, msg.Body, "Your order order-1 is now: Out For Delivery")
	assert.Contains(t, msg.Body, "Updated: 10 May 2026 12:30 UTC")
	assert.Contains(t, msg.Body, "Note: courier picked up")
}

func TestSMTPSender_Compose(t *testing.T) {
	s := NewSMTPSender("localhost", 1025, "", "", "shop@example.com")
	raw := string(s.compose(Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}))

	assert.True(t, strings.HasPrefix(raw, "From: shop@example.com\r\nTo: a@example.com\r\nSubject: Hi\r\n"))
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n\r\nline1\r\nline2")
	assert.Nil(t, s.auth)
	assert.Equal(t, "localhost:1025", s.addr)
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender("localhost", 1025, "", "", "shop@example.com")
	err := s.Send(context.Background(), Message{To: "a@example.com\r\nBcc: x@example.com", Subject: "Hi"})
	assert.ErrorContains(t, err, "header injection")
}
