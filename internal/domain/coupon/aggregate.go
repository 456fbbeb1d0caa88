// Package coupon validates and redeems order coupons. The discount it computes
// is the numeric input the discount calculator stacks with CrashCash.
package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

const AggregateType = "Coupon"

type Type string

const (
	TypePercentage Type = "PERCENTAGE"
	TypeFlat       Type = "FLAT"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExists      = errors.New("coupon code already exists")
	ErrInvalidCode       = errors.New("coupon code is required")
	ErrInvalidType       = errors.New("coupon type must be PERCENTAGE or FLAT")
	ErrInvalidValue      = errors.New("coupon value must be positive")
	ErrCouponUnavailable = errors.New("coupon cannot be applied")
	ErrNotRedeemed       = errors.New("coupon was not redeemed for this order")
)

// UnavailableError is returned by Redeem when the coupon stopped applying
// after it was validated. It matches ErrCouponUnavailable.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string { return ErrCouponUnavailable.Error() + ": " + e.Reason }

func (e *UnavailableError) Unwrap() error { return ErrCouponUnavailable }

type Coupon struct {
	aggregate.Base
	Code        string          `json:"code"`
	Type        Type            `json:"type"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    decimal.Decimal `json:"min_order"`
	MaxDiscount decimal.Decimal `json:"max_discount"`
	UsageLimit  int             `json:"usage_limit"`
	UsedCount   int             `json:"used_count"`
	Description string          `json:"description"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Active      bool            `json:"active"`
	// Redemptions holds the orders currently counted in UsedCount.
	Redemptions map[string]bool `json:"redemptions,omitempty"`
}

func (c *Coupon) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventCouponCreated:
		var data CouponCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = aggregateID(data.Code)
		c.Code = data.Code
		c.Type = data.Type
		c.Value = data.Value
		c.MinOrder = data.MinOrder
		c.MaxDiscount = data.MaxDiscount
		c.UsageLimit = data.UsageLimit
		c.Description = data.Description
		c.ExpiresAt = data.ExpiresAt
		c.UsedCount = 0
		c.Redemptions = nil
		c.Active = true
	case EventCouponRedeemed:
		var data CouponRedeemed
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if c.Redemptions == nil {
			c.Redemptions = map[string]bool{}
		}
		c.Redemptions[data.OrderID] = true
		c.UsedCount++
	case EventCouponReleased:
		var data CouponReleased
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(c.Redemptions, data.OrderID)
		if c.UsedCount > 0 {
			c.UsedCount--
		}
	case EventCouponDeactivated:
		c.Active = false
	}
	c.Advance(event)
	return nil
}

// check returns the reason the coupon cannot apply to subtotal, or "".
func (c *Coupon) check(subtotal decimal.Decimal, now time.Time) string {
	switch {
	case !c.Active:
		return "Coupon is no longer active"
	case !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt):
		return "Coupon has expired"
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return "Coupon usage limit reached"
	case subtotal.LessThan(c.MinOrder):
		return fmt.Sprintf("Minimum order of %s required", c.MinOrder.StringFixed(2))
	}
	return ""
}

// Discount is the amount the coupon takes off subtotal, never more than subtotal.
func (c *Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var off decimal.Decimal
	switch c.Type {
	case TypePercentage:
		off = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.IsPositive() {
			off = decimal.Min(off, c.MaxDiscount)
		}
	case TypeFlat:
		off = c.Value
	}
	return decimal.Max(decimal.Zero, decimal.Min(off, subtotal))
}

type Summary struct {
	Code string `json:"code"`
	Type Type   `json:"type"`
}

type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Coupon   *Summary        `json:"coupon,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type CreateInput struct {
	Code        string
	Type        Type
	Value       decimal.Decimal
	MinOrder    decimal.Decimal
	MaxDiscount decimal.Decimal
	UsageLimit  int
	Description string
	ExpiresAt   time.Time
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

// NormalizeCode trims and upper-cases a customer-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func aggregateID(code string) string { return "coupon-" + NormalizeCode(code) }

func (s *Service) Create(ctx context.Context, in CreateInput) (*Coupon, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, ErrInvalidCode
	}
	if in.Type != TypePercentage && in.Type != TypeFlat {
		return nil, ErrInvalidType
	}
	if !in.Value.IsPositive() || (in.Type == TypePercentage && in.Value.GreaterThan(decimal.NewFromInt(100))) {
		return nil, ErrInvalidValue
	}

	existing, found, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if found && existing.Active {
		return nil, ErrCouponExists
	}

	c := &Coupon{Base: aggregate.Base{ID: aggregateID(code)}}
	if found {
		c = existing
	}
	err = aggregate.Record(ctx, s.eventStore, c, AggregateType, EventCouponCreated, CouponCreated{
		Code:        code,
		Type:        in.Type,
		Value:       in.Value,
		MinOrder:    in.MinOrder,
		MaxDiscount: in.MaxDiscount,
		UsageLimit:  in.UsageLimit,
		Description: in.Description,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Validate answers whether code applies to subtotal. Business rejections come
// back as Valid=false with a Message; err is reserved for storage failures.
func (s *Service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (ValidationResult, error) {
	c, found, err := s.load(ctx, NormalizeCode(code))
	if err != nil {
		return ValidationResult{}, err
	}
	if !found || NormalizeCode(code) == "" {
		return ValidationResult{Discount: decimal.Zero, Message: "Invalid coupon code"}, nil
	}
	if reason := c.check(subtotal, s.now()); reason != "" {
		return ValidationResult{Discount: decimal.Zero, Message: reason}, nil
	}

	return ValidationResult{
		Valid:    true,
		Discount: c.Discount(subtotal),
		Coupon:   &Summary{Code: c.Code, Type: c.Type},
	}, nil
}

// Redeem records one use of code for orderID. The availability check and the
// redemption are recorded against the same coupon version, so concurrent
// orders cannot push UsedCount past UsageLimit. Redeeming the same order twice
// is a no-op.
func (s *Service) Redeem(ctx context.Context, code, orderID string) error {
	return aggregate.RetryOnConflict(ctx, func() error {
		c, found, err := s.load(ctx, NormalizeCode(code))
		if err != nil {
			return err
		}
		if !found {
			return ErrCouponNotFound
		}
		if c.Redemptions[orderID] {
			return nil
		}
		// min order was checked at validation time against the pre-discount subtotal
		if reason := c.check(c.MinOrder, s.now()); reason != "" {
			return &UnavailableError{Reason: reason}
		}
		return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventCouponRedeemed, CouponRedeemed{
			Code:       c.Code,
			OrderID:    orderID,
			RedeemedAt: s.now().UTC(),
		})
	})
}

// Release undoes orderID's redemption when the order could not be placed.
func (s *Service) Release(ctx context.Context, code, orderID string) error {
	return aggregate.RetryOnConflict(ctx, func() error {
		c, found, err := s.load(ctx, NormalizeCode(code))
		if err != nil {
			return err
		}
		if !found {
			return ErrCouponNotFound
		}
		if !c.Redemptions[orderID] {
			return ErrNotRedeemed
		}
		return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventCouponReleased, CouponReleased{
			Code:       c.Code,
			OrderID:    orderID,
			ReleasedAt: s.now().UTC(),
		})
	})
}

func (s *Service) Deactivate(ctx context.Context, code string) error {
	c, found, err := s.load(ctx, NormalizeCode(code))
	if err != nil {
		return err
	}
	if !found {
		return ErrCouponNotFound
	}
	if !c.Active {
		return nil
	}
	return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventCouponDeactivated, CouponDeactivated{
		Code:          c.Code,
		DeactivatedAt: s.now().UTC(),
	})
}

func (s *Service) load(ctx context.Context, code string) (*Coupon, bool, error) {
	return aggregate.Load(ctx, s.eventStore, aggregateID(code), func() *Coupon { return &Coupon{} })
}
