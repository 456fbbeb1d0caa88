package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCreditAdded    = "CreditAdded"
	EventCreditDebited  = "CreditDebited"
	EventCreditRefunded = "CreditRefunded"
	EventCreditsExpired = "CreditsExpired"
)

type CreditAdded struct {
	UserID    string          `json:"user_id"`
	CreditID  string          `json:"credit_id"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	ExpiresAt time.Time       `json:"expires_at"`
	AddedAt   time.Time       `json:"added_at"`
}

// Allocation is the part of a debit taken from one credit.
type Allocation struct {
	CreditID string          `json:"credit_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type CreditDebited struct {
	UserID      string          `json:"user_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Allocations []Allocation    `json:"allocations"`
	DebitedAt   time.Time       `json:"debited_at"`
}

type CreditRefunded struct {
	UserID      string          `json:"user_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Allocations []Allocation    `json:"allocations"`
	RefundedAt  time.Time       `json:"refunded_at"`
}

type CreditsExpired struct {
	UserID    string          `json:"user_id"`
	CreditIDs []string        `json:"credit_ids"`
	Amount    decimal.Decimal `json:"amount"`
	ExpiredAt time.Time       `json:"expired_at"`
}
