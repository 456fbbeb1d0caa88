package flashsale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveEligibility_Empty(t *testing.T) {
	assert.Equal(t, Eligibility{AllowCoupons: true, AllowCrashCash: true}, ResolveEligibility(nil, nil))
	assert.Equal(t, Open, ResolveEligibility([]string{}, []FlashSale{}))
}

func TestResolveEligibility_SingleSaleDisablesCoupons(t *testing.T) {
	sales := []FlashSale{{Products: []string{"p1"}, AllowCoupons: boolPtr(false)}}

	got := ResolveEligibility([]string{"p1"}, sales)

	assert.Equal(t, Eligibility{AllowCoupons: false, AllowCrashCash: true}, got)
}

func TestResolveEligibility_NoMatchingSale(t *testing.T) {
	sales := []FlashSale{{Products: []string{"p2"}, AllowCoupons: boolPtr(false), AllowCrashCash: boolPtr(false)}}

	assert.Equal(t, Open, ResolveEligibility([]string{"p1"}, sales))
}

func TestResolveEligibility_AnyDisablingSaleWins(t *testing.T) {
	sales := []FlashSale{
		{ID: "a", Products: []string{"p1"}, AllowCoupons: boolPtr(true), AllowCrashCash: boolPtr(true)},
		{ID: "b", Products: []string{"p2", "p3"}, AllowCrashCash: boolPtr(false)},
		{ID: "c", Products: []string{"p9"}, AllowCoupons: boolPtr(false)},
	}

	got := ResolveEligibility([]string{"p1", "p3"}, sales)

	assert.Equal(t, Eligibility{AllowCoupons: true, AllowCrashCash: false}, got)
}

func TestFlashSale_IsActive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sale := FlashSale{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)}

	assert.True(t, sale.IsActive(now))
	assert.False(t, sale.IsActive(now.Add(time.Hour)))
	assert.False(t, sale.IsActive(now.Add(-2*time.Hour)))

	sale.Ended = true
	assert.False(t, sale.IsActive(now))
}

func TestFlashSale_SalePrice(t *testing.T) {
	sale := FlashSale{Discount: decimal.NewFromInt(25)}

	assert.True(t, decimal.RequireFromString("74.9925").Equal(sale.SalePrice(decimal.RequireFromString("99.99"))))
	assert.True(t, decimal.Zero.Equal(FlashSale{Discount: decimal.NewFromInt(100)}.SalePrice(decimal.NewFromInt(10))))
}

func TestBestPrices(t *testing.T) {
	sales := []FlashSale{
		{Products: []string{"p1"}, Discount: decimal.NewFromInt(10)},
		{Products: []string{"p1"}, Discount: decimal.NewFromInt(30)},
	}
	prices := map[string]decimal.Decimal{"p1": decimal.NewFromInt(100), "p2": decimal.NewFromInt(50)}

	got := BestPrices(prices, sales)

	assert.True(t, decimal.NewFromInt(70).Equal(got["p1"]))
	assert.True(t, decimal.NewFromInt(50).Equal(got["p2"]))
}
