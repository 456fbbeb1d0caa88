package flashsale

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventFlashSaleCreated = "FlashSaleCreated"
	EventFlashSaleEnded   = "FlashSaleEnded"
)

type FlashSaleCreated struct {
	SaleID         string          `json:"sale_id"`
	Name           string          `json:"name"`
	Products       []string        `json:"products"`
	Discount       decimal.Decimal `json:"discount"`
	AllowCoupons   *bool           `json:"allow_coupons,omitempty"`
	AllowCrashCash *bool           `json:"allow_crash_cash,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	CreatedAt      time.Time       `json:"created_at"`
}

type FlashSaleEnded struct {
	SaleID  string    `json:"sale_id"`
	Reason  string    `json:"reason"`
	EndedAt time.Time `json:"ended_at"`
}
