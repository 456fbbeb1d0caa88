package readmodel

import (
	"time"

	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

// Read model collections
const (
	Products   = "products"
	Carts      = "carts"
	Orders     = "orders"
	Coupons    = "coupons"
	Wallets    = "wallets"
	FlashSales = "flash_sales"
)

// Factories lets the Postgres read store decode each collection.
var Factories = map[string]store.ModelFactory{
	Products:   func() any { return &ProductReadModel{} },
	Carts:      func() any { return &CartReadModel{} },
	Orders:     func() any { return &OrderReadModel{} },
	Coupons:    func() any { return &CouponReadModel{} },
	Wallets:    func() any { return &WalletReadModel{} },
	FlashSales: func() any { return &flashsale.FlashSale{} },
}

// ProductReadModel is the read model for products
type ProductReadModel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CartItemReadModel represents an item in the cart
type CartItemReadModel struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CartReadModel is the read model for shopping cart
type CartReadModel struct {
	ID     string              `json:"id"`
	UserID string              `json:"user_id"`
	Items  []CartItemReadModel `json:"items"`
	Total  decimal.Decimal     `json:"total"`
}

// OrderItemReadModel represents an item in an order
type OrderItemReadModel struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type StatusEntry struct {
	Status string    `json:"status"`
	Source string    `json:"source"`
	Forced bool      `json:"forced,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// OrderReadModel is the read model for orders. Status holds whatever was
// stored; readers normalize it before display.
type OrderReadModel struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	Email          string               `json:"email,omitempty"`
	Items          []OrderItemReadModel `json:"items"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	CouponCode     string               `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal      `json:"coupon_discount"`
	WalletApplied  decimal.Decimal      `json:"wallet_applied"`
	Total          decimal.Decimal      `json:"total"`
	Status         string               `json:"status"`
	History        []StatusEntry        `json:"history"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type CouponReadModel struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    decimal.Decimal `json:"min_order"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
	UsageLimit  int             `json:"usage_limit"`
	UsedCount   int             `json:"used_count"`
	Description string          `json:"description"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Active      bool            `json:"active"`
}

type CreditReadModel struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// WalletReadModel mirrors the credit lots. Expiry is applied by the wallet
// service, so Credits may include lots that expired since the last event.
type WalletReadModel struct {
	UserID    string            `json:"user_id"`
	Credits   []CreditReadModel `json:"credits"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NextExpiry returns the earliest expiry among the credits, zero when none expire.
func (w *WalletReadModel) NextExpiry() time.Time {
	var next time.Time
	for _, c := range w.Credits {
		if c.ExpiresAt.IsZero() {
			continue
		}
		if next.IsZero() || c.ExpiresAt.Before(next) {
			next = c.ExpiresAt
		}
	}
	return next
}
