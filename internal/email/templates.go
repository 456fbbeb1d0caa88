package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

type OrderConfirmation struct {
	OrderID        string
	Items          []OrderItem
	Subtotal       decimal.Decimal
	CouponCode     string
	CouponDiscount decimal.Decimal
	WalletApplied  decimal.Decimal
	Total          decimal.Decimal
}

type StatusChange struct {
	OrderID string
	Label   string
	Reason  string
	At      time.Time
}

// Renderer formats mails for one store and currency.
type Renderer struct {
	store   string
	unit    currency.Unit
	printer *message.Printer
}

func NewRenderer(storeName, currencyCode string) (*Renderer, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", currencyCode, err)
	}
	return &Renderer{
		store:   storeName,
		unit:    unit,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Money renders an amount as "INR 1,234.50".
func (r *Renderer) Money(d decimal.Decimal) string {
	return r.unit.String() + " " + r.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (r *Renderer) OrderConfirmation(to string, o OrderConfirmation) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for shopping with %s.\n\n", r.store)
	fmt.Fprintf(&b, "Order number: %s\n\n", o.OrderID)
	for _, item := range o.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&b, "  %s x%d  %s\n", name, item.Quantity, r.Money(line))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", r.Money(o.Subtotal))
	if o.CouponDiscount.IsPositive() {
		fmt.Fprintf(&b, "Coupon %s: -%s\n", o.CouponCode, r.Money(o.CouponDiscount))
	}
	if o.WalletApplied.IsPositive() {
		fmt.Fprintf(&b, "CrashCash: -%s\n", r.Money(o.WalletApplied))
	}
	fmt.Fprintf(&b, "Total: %s\n", r.Money(o.Total))

	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s: order %s confirmed", r.store, shortID(o.OrderID)),
		Body:    b.String(),
	}
}

func (r *Renderer) StatusChanged(to string, s StatusChange) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Your order %s is now: %s\n", s.OrderID, s.Label)
	if !s.At.IsZero() {
		fmt.Fprintf(&b, "Updated: %s\n", s.At.UTC().Format("02 Jan 2006 15:04 MST"))
	}
	if s.Reason != "" {
		fmt.Fprintf(&b, "Note: %s\n", s.Reason)
	}
	fmt.Fprintf(&b, "\n%s\n", r.store)

	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s: order %s %s", r.store, shortID(s.OrderID), strings.ToLower(s.Label)),
		Body:    b.String(),
	}
}
