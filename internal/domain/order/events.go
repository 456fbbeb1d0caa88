package order

import (
	"time"

	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlaced struct {
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	Email          string             `json:"email,omitempty"`
	Items          []OrderItem        `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal    `json:"coupon_discount"`
	WalletApplied  decimal.Decimal    `json:"wallet_applied"`
	Total          decimal.Decimal    `json:"total"`
	Status         orderstatus.Status `json:"status"`
	PlacedAt       time.Time          `json:"placed_at"`
}

// OrderStatusChanged records every status write. RawStatus is what the
// producer sent before normalization; Forced marks an admin override of the
// transition policy.
type OrderStatusChanged struct {
	OrderID   string             `json:"order_id"`
	UserID    string             `json:"user_id"`
	From      orderstatus.Status `json:"from"`
	To        orderstatus.Status `json:"to"`
	RawStatus string             `json:"raw_status"`
	Source    string             `json:"source"`
	Forced    bool               `json:"forced,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	ChangedAt time.Time          `json:"changed_at"`
}
