package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCouponCreated     = "CouponCreated"
	EventCouponRedeemed    = "CouponRedeemed"
	EventCouponDeactivated = "CouponDeactivated"
	EventCouponReleased    = "CouponRedemptionReleased"
)

type CouponCreated struct {
	Code        string          `json:"code"`
	Type        Type            `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    decimal.Decimal `json:"min_order"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
	UsageLimit  int             `json:"usage_limit"`
	Description string          `json:"description"`
	ExpiresAt   time.Time       `json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CouponRedeemed struct {
	Code       string    `json:"code"`
	OrderID    string    `json:"order_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// CouponReleased gives back the use an abandoned order took.
type CouponReleased struct {
	Code       string    `json:"code"`
	OrderID    string    `json:"order_id"`
	ReleasedAt time.Time `json:"released_at"`
}

type CouponDeactivated struct {
	Code          string    `json:"code"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}
