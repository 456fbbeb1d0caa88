// Package flashsale manages time-boxed product discounts and resolves whether
// coupons and CrashCash may be combined with them.
package flashsale

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlashSale is the read shape shared by the admin listing and the eligibility resolver.
// A nil AllowCoupons or AllowCrashCash means allowed.
type FlashSale struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Products       []string        `json:"products"`
	Discount       decimal.Decimal `json:"discount"`
	AllowCoupons   *bool           `json:"allowCoupons,omitempty"`
	AllowCrashCash *bool           `json:"allowCrashCash,omitempty"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	Ended          bool            `json:"ended,omitempty"`
}

// IsActive reports whether the sale applies at now.
func (fs FlashSale) IsActive(now time.Time) bool {
	if fs.Ended || !now.Before(fs.EndTime) {
		return false
	}
	return fs.StartTime.IsZero() || !now.Before(fs.StartTime)
}

// Covers reports whether productID is part of the sale.
func (fs FlashSale) Covers(productID string) bool {
	for _, p := range fs.Products {
		if p == productID {
			return true
		}
	}
	return false
}

// SalePrice applies the sale's percentage discount to price.
func (fs FlashSale) SalePrice(price decimal.Decimal) decimal.Decimal {
	off := price.Mul(fs.Discount).Div(decimal.NewFromInt(100))
	discounted := price.Sub(off)
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}

type Eligibility struct {
	AllowCoupons   bool `json:"allowCoupons"`
	AllowCrashCash bool `json:"allowCrashCash"`
}

// Open is the result when no sale restricts the cart, and the fail-open default.
var Open = Eligibility{AllowCoupons: true, AllowCrashCash: true}

// ResolveEligibility ANDs the flags of every active sale covering any of productIDs.
func ResolveEligibility(productIDs []string, active []FlashSale) Eligibility {
	result := Open
	if len(productIDs) == 0 || len(active) == 0 {
		return result
	}

	wanted := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}

	for _, sale := range active {
		if !intersects(sale.Products, wanted) {
			continue
		}
		result.AllowCoupons = result.AllowCoupons && flag(sale.AllowCoupons)
		result.AllowCrashCash = result.AllowCrashCash && flag(sale.AllowCrashCash)
	}
	return result
}

// BestPrices returns, per product, the lowest sale price among the active sales covering it.
func BestPrices(prices map[string]decimal.Decimal, active []FlashSale) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(prices))
	for id, price := range prices {
		best := price
		for _, sale := range active {
			if sale.Covers(id) {
				best = decimal.Min(best, sale.SalePrice(price))
			}
		}
		out[id] = best
	}
	return out
}

func intersects(products []string, wanted map[string]struct{}) bool {
	for _, p := range products {
		if _, ok := wanted[p]; ok {
			return true
		}
	}
	return false
}

func flag(b *bool) bool { return b == nil || *b }
