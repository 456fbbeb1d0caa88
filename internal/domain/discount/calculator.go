// Package discount stacks a coupon discount and CrashCash wallet credit on a subtotal.
package discount

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInvalidAmount         Kind = "INVALID_AMOUNT"
	KindInsufficientBalance   Kind = "INSUFFICIENT_BALANCE"
	KindExceedsRemainingTotal Kind = "EXCEEDS_REMAINING_TOTAL"
)

// Error is a validation failure returned as a value in Result.Errors.
type Error struct {
	Kind    Kind   `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// Input carries already-fetched values. CouponDiscount is the numeric output of
// coupon validation; coupon rules themselves live in the coupon package.
type Input struct {
	Subtotal        decimal.Decimal
	CouponDiscount  decimal.Decimal
	WalletRequested decimal.Decimal
	WalletBalance   decimal.Decimal
	UseWallet       bool
}

type Result struct {
	FinalTotal    decimal.Decimal `json:"finalTotal"`
	WalletApplied decimal.Decimal `json:"walletCreditApplied"`
	Errors        []*Error        `json:"errors,omitempty"`
}

// OK reports whether the result carries no validation errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// ComputeTotal validates the wallet request and returns the payable total.
// Checks run in order (amount, balance, remaining total) and stop at the first
// failure. Values are not rounded; rounding happens at display time.
func ComputeTotal(in Input) Result {
	if in.Subtotal.IsNegative() || in.CouponDiscount.IsNegative() {
		return failed(in, KindInvalidAmount, "subtotal and coupon discount must not be negative")
	}

	remaining := in.Subtotal.Sub(in.CouponDiscount)

	if !in.UseWallet {
		return Result{FinalTotal: clampZero(remaining), WalletApplied: decimal.Zero}
	}

	switch {
	case !in.WalletRequested.IsPositive():
		return failed(in, KindInvalidAmount, "CrashCash amount must be greater than zero")
	case in.WalletRequested.GreaterThan(in.WalletBalance):
		return failed(in, KindInsufficientBalance,
			fmt.Sprintf("only %s CrashCash available", in.WalletBalance.StringFixed(2)))
	case in.WalletRequested.GreaterThan(remaining):
		return failed(in, KindExceedsRemainingTotal,
			fmt.Sprintf("CrashCash cannot exceed the remaining total of %s", clampZero(remaining).StringFixed(2)))
	}

	return Result{
		FinalTotal:    clampZero(remaining.Sub(in.WalletRequested)),
		WalletApplied: in.WalletRequested,
	}
}

// MaxWalletCredit is the most credit a customer may apply: the wallet balance,
// capped by what is left after the coupon.
func MaxWalletCredit(subtotal, couponDiscount, balance decimal.Decimal) decimal.Decimal {
	remaining := clampZero(subtotal.Sub(couponDiscount))
	return decimal.Min(clampZero(balance), remaining)
}

// failed keeps FinalTotal meaningful for display: the total without any wallet credit.
func failed(in Input, kind Kind, msg string) Result {
	return Result{
		FinalTotal:    clampZero(in.Subtotal.Sub(in.CouponDiscount)),
		WalletApplied: decimal.Zero,
		Errors:        []*Error{{Kind: kind, Message: msg}},
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
