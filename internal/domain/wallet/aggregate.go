// Package wallet holds CrashCash: store credit granted in expiring lots.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Wallet"

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient CrashCash balance")
	ErrAlreadyDebited      = errors.New("order already debited")
	ErrDebitNotFound       = errors.New("no debit recorded for order")
	ErrAlreadyRefunded     = errors.New("order debit already refunded")
)

// Credit is one lot of CrashCash. Amount is what remains of it.
type Credit struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Source    string          `json:"source"`
	ExpiresAt time.Time       `json:"expires_at"`
	AddedAt   time.Time       `json:"added_at"`
}

// ExpiredAt reports whether the credit is unusable at now. A zero ExpiresAt never expires.
func (c Credit) ExpiredAt(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type Wallet struct {
	aggregate.Base
	UserID   string                  `json:"user_id"`
	Credits  []Credit                `json:"credits"`
	Debits   map[string][]Allocation `json:"debits"`
	Refunded map[string]bool         `json:"refunded"`
}

func newWallet() *Wallet {
	return &Wallet{Debits: map[string][]Allocation{}, Refunded: map[string]bool{}}
}

// WalletID is the aggregate id of a user's wallet.
func WalletID(userID string) string { return "wallet-" + userID }

func (w *Wallet) ApplyEvent(event store.Event) error {
	if w.Debits == nil {
		w.Debits = map[string][]Allocation{}
	}
	if w.Refunded == nil {
		w.Refunded = map[string]bool{}
	}
	switch event.EventType {
	case EventCreditAdded:
		var data CreditAdded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		w.ID = WalletID(data.UserID)
		w.UserID = data.UserID
		w.Credits = append(w.Credits, Credit{
			ID:        data.CreditID,
			Amount:    data.Amount,
			Source:    data.Source,
			ExpiresAt: data.ExpiresAt,
			AddedAt:   data.AddedAt,
		})
	case EventCreditDebited:
		var data CreditDebited
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		w.adjust(data.Allocations, -1)
		w.Debits[data.OrderID] = data.Allocations
	case EventCreditRefunded:
		var data CreditRefunded
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		w.adjust(data.Allocations, 1)
		w.Refunded[data.OrderID] = true
	case EventCreditsExpired:
		var data CreditsExpired
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		gone := make(map[string]bool, len(data.CreditIDs))
		for _, id := range data.CreditIDs {
			gone[id] = true
		}
		kept := w.Credits[:0]
		for _, c := range w.Credits {
			if !gone[c.ID] {
				kept = append(kept, c)
			}
		}
		w.Credits = kept
	}
	w.Advance(event)
	return nil
}

func (w *Wallet) adjust(allocs []Allocation, sign int64) {
	for _, a := range allocs {
		for i := range w.Credits {
			if w.Credits[i].ID == a.CreditID {
				w.Credits[i].Amount = w.Credits[i].Amount.Add(a.Amount.Mul(decimal.NewFromInt(sign)))
			}
		}
	}
}

// Balance sums the unexpired credits at now.
func (w *Wallet) Balance(now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, c := range w.Credits {
		if !c.ExpiredAt(now) {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// expired lists the credits past expiry and the value they still held.
func (w *Wallet) expired(now time.Time) ([]string, decimal.Decimal) {
	var ids []string
	amount := decimal.Zero
	for _, c := range w.Credits {
		if c.ExpiredAt(now) {
			ids = append(ids, c.ID)
			amount = amount.Add(c.Amount)
		}
	}
	return ids, amount
}

// allocate takes amount from unexpired credits, soonest expiry first; credits
// without expiry are used last.
func (w *Wallet) allocate(amount decimal.Decimal, now time.Time) []Allocation {
	usable := make([]Credit, 0, len(w.Credits))
	for _, c := range w.Credits {
		if !c.ExpiredAt(now) && c.Amount.IsPositive() {
			usable = append(usable, c)
		}
	}
	sort.SliceStable(usable, func(i, j int) bool {
		a, b := usable[i].ExpiresAt, usable[j].ExpiresAt
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		}
		return a.Before(b)
	})

	var allocs []Allocation
	left := amount
	for _, c := range usable {
		if !left.IsPositive() {
			break
		}
		take := decimal.Min(left, c.Amount)
		allocs = append(allocs, Allocation{CreditID: c.ID, Amount: take})
		left = left.Sub(take)
	}
	return allocs
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

// AddCredit grants amount to userID. A zero expiresAt never expires.
func (s *Service) AddCredit(ctx context.Context, userID string, amount decimal.Decimal, source string, expiresAt time.Time) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	creditID := uuid.New().String()
	var w *Wallet
	err := aggregate.RetryOnConflict(ctx, func() error {
		var err error
		if w, err = s.load(ctx, userID); err != nil {
			return err
		}
		return aggregate.Record(ctx, s.eventStore, w, AggregateType, EventCreditAdded, CreditAdded{
			UserID:    userID,
			CreditID:  creditID,
			Amount:    amount,
			Source:    source,
			ExpiresAt: expiresAt,
			AddedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateBalance drops expired credits and returns the spendable balance.
func (s *Service) UpdateBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	balance := decimal.Zero
	err := aggregate.RetryOnConflict(ctx, func() error {
		w, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.prune(ctx, w); err != nil {
			return err
		}
		balance = w.Balance(s.now())
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Debit takes amount for orderID, consuming the soonest-expiring credits first.
// The balance check and the debit are recorded against the same wallet
// version; a concurrent debit forces a reload and a fresh check.
func (s *Service) Debit(ctx context.Context, userID, orderID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return aggregate.RetryOnConflict(ctx, func() error {
		w, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if _, done := w.Debits[orderID]; done {
			return ErrAlreadyDebited
		}
		if err := s.prune(ctx, w); err != nil {
			return err
		}
		now := s.now()
		if w.Balance(now).LessThan(amount) {
			return ErrInsufficientBalance
		}

		return aggregate.Record(ctx, s.eventStore, w, AggregateType, EventCreditDebited, CreditDebited{
			UserID:      userID,
			OrderID:     orderID,
			Amount:      amount,
			Allocations: w.allocate(amount, now),
			DebitedAt:   now.UTC(),
		})
	})
}

// Refund returns an order's debit to the credits it came from.
func (s *Service) Refund(ctx context.Context, userID, orderID string) error {
	return aggregate.RetryOnConflict(ctx, func() error {
		w, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		allocs, ok := w.Debits[orderID]
		if !ok {
			return ErrDebitNotFound
		}
		if w.Refunded[orderID] {
			return ErrAlreadyRefunded
		}

		total := decimal.Zero
		for _, a := range allocs {
			total = total.Add(a.Amount)
		}
		return aggregate.Record(ctx, s.eventStore, w, AggregateType, EventCreditRefunded, CreditRefunded{
			UserID:      userID,
			OrderID:     orderID,
			Amount:      total,
			Allocations: allocs,
			RefundedAt:  s.now().UTC(),
		})
	})
}

// Get returns the wallet, empty when the user never held credit.
func (s *Service) Get(ctx context.Context, userID string) (*Wallet, error) {
	return s.load(ctx, userID)
}

func (s *Service) prune(ctx context.Context, w *Wallet) error {
	ids, amount := w.expired(s.now())
	if len(ids) == 0 {
		return nil
	}
	return aggregate.Record(ctx, s.eventStore, w, AggregateType, EventCreditsExpired, CreditsExpired{
		UserID:    w.UserID,
		CreditIDs: ids,
		Amount:    amount,
		ExpiredAt: s.now().UTC(),
	})
}

func (s *Service) load(ctx context.Context, userID string) (*Wallet, error) {
	w, _, err := aggregate.Load(ctx, s.eventStore, WalletID(userID), newWallet)
	if err != nil {
		return nil, err
	}
	w.ID = WalletID(userID)
	w.UserID = userID
	return w, nil
}
