package command

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product Commands
type CreateProduct struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type UpdateProduct struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type DeleteProduct struct {
	ProductID string `json:"product_id"`
}

// Cart Commands
type AddToCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ClearCart struct {
	UserID string `json:"user_id"`
}

// Order Commands
type PlaceOrder struct {
	UserID       string          `json:"user_id"`
	Email        string          `json:"email"`
	CouponCode   string          `json:"couponCode"`
	UseWallet    bool            `json:"useCrashCash"`
	WalletAmount decimal.Decimal `json:"crashCashAmount"`
}

// CancelOrder is issued by the customer; UserID must own the order.
type CancelOrder struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// UpdateOrderStatus is an admin or webhook status write. Status is raw and
// goes through the normalizer.
type UpdateOrderStatus struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Force   bool   `json:"force"`
	Reason  string `json:"reason"`
	Source  string `json:"-"`
}

// Coupon Commands
type CreateCoupon struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    decimal.Decimal `json:"minOrder"`
	MaxDiscount decimal.Decimal `json:"maxDiscount"`
	UsageLimit  int             `json:"usageLimit"`
	Description string          `json:"description"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// Wallet Commands
type AddCredit struct {
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Flash Sale Commands
type CreateFlashSale struct {
	Name           string          `json:"name"`
	Products       []string        `json:"products"`
	Discount       decimal.Decimal `json:"discount"`
	AllowCoupons   *bool           `json:"allowCoupons"`
	AllowCrashCash *bool           `json:"allowCrashCash"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
}

type EndFlashSale struct {
	SaleID string `json:"sale_id"`
	Reason string `json:"reason"`
}
