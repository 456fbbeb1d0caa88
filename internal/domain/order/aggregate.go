package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/domain/discount"
	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderExists       = errors.New("order already exists")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidItem       = errors.New("order item needs a product, a positive quantity and a positive price")
	ErrInvalidTotals     = errors.New("order discounts do not add up")
	ErrUnknownStatus     = errors.New("status is not a canonical order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTerminalStatus    = errors.New("order status cannot change")
	ErrOrderDelivered    = errors.New("delivered order cannot be cancelled")
	ErrCreditReleased    = errors.New("order's CrashCash was returned to the wallet; place a new order instead")
)

// StatusChange is one entry of the order's status history.
type StatusChange struct {
	Status orderstatus.Status `json:"status"`
	Source string             `json:"source"`
	Forced bool               `json:"forced,omitempty"`
	Reason string             `json:"reason,omitempty"`
	At     time.Time          `json:"at"`
}

type Order struct {
	aggregate.Base
	UserID         string             `json:"user_id"`
	Email          string             `json:"email,omitempty"`
	Items          []OrderItem        `json:"items"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal    `json:"coupon_discount"`
	WalletApplied  decimal.Decimal    `json:"wallet_applied"`
	Total          decimal.Decimal    `json:"total"`
	Status         orderstatus.Status `json:"status"`
	History        []StatusChange     `json:"history"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.UserID = data.UserID
		o.Email = data.Email
		o.Items = data.Items
		o.Subtotal = data.Subtotal
		o.CouponCode = data.CouponCode
		o.CouponDiscount = data.CouponDiscount
		o.WalletApplied = data.WalletApplied
		o.Total = data.Total
		o.Status = orderstatus.Normalize(string(data.Status))
		o.History = []StatusChange{{Status: o.Status, Source: "checkout", At: data.PlacedAt}}
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderStatusChanged:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = data.To
		o.History = append(o.History, StatusChange{
			Status: data.To,
			Source: data.Source,
			Forced: data.Forced,
			Reason: data.Reason,
			At:     data.ChangedAt,
		})
		o.UpdatedAt = data.ChangedAt
	}
	o.Advance(event)
	return nil
}

// Timeline returns when each status was first reached.
func (o *Order) Timeline() orderstatus.Timeline {
	tl := make(orderstatus.Timeline, len(o.History))
	for _, h := range o.History {
		if _, seen := tl[h.Status]; !seen {
			tl[h.Status] = h.At
		}
	}
	return tl
}

// Tracking renders the tracking steps for the current status.
func (o *Order) Tracking() orderstatus.Tracking {
	return orderstatus.Track(string(o.Status), o.Timeline())
}

// PlaceInput carries a priced cart and the discounts checkout already validated.
// OrderID may be preassigned so a wallet debit can reference it.
type PlaceInput struct {
	OrderID        string
	UserID         string
	Email          string
	Items          []OrderItem
	CouponCode     string
	CouponDiscount decimal.Decimal
	WalletApplied  decimal.Decimal
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

func (s *Service) Place(ctx context.Context, in PlaceInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	subtotal := decimal.Zero
	for _, item := range in.Items {
		if item.ProductID == "" || item.Quantity <= 0 || !item.Price.IsPositive() {
			return nil, ErrInvalidItem
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	totals := discount.ComputeTotal(discount.Input{
		Subtotal:        subtotal,
		CouponDiscount:  in.CouponDiscount,
		WalletRequested: in.WalletApplied,
		WalletBalance:   in.WalletApplied,
		UseWallet:       in.WalletApplied.IsPositive(),
	})
	if !totals.OK() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTotals, totals.Errors[0])
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	} else if _, found, err := s.load(ctx, orderID); err != nil {
		return nil, err
	} else if found {
		return nil, ErrOrderExists
	}

	o := &Order{Base: aggregate.Base{ID: orderID}}
	err := aggregate.Record(ctx, s.eventStore, o, AggregateType, EventOrderPlaced, OrderPlaced{
		OrderID:        orderID,
		UserID:         in.UserID,
		Email:          in.Email,
		Items:          in.Items,
		Subtotal:       subtotal,
		CouponCode:     in.CouponCode,
		CouponDiscount: in.CouponDiscount,
		WalletApplied:  totals.WalletApplied,
		Total:          totals.FinalTotal,
		Status:         orderstatus.OrderPlaced,
		PlacedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// StatusUpdate describes one status write. Raw goes through the normalizer;
// Force skips the transition policy for manual admin corrections.
type StatusUpdate struct {
	Raw    string
	Source string
	Reason string
	Force  bool
}

// UpdateStatus normalizes the raw status and applies it. Writing the current
// status again is a no-op so webhook redeliveries are harmless.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, u StatusUpdate) (*Order, error) {
	to := orderstatus.Normalize(u.Raw)
	if !to.IsCanonical() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, u.Raw)
	}

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == to {
		return o, nil
	}
	if !u.Force {
		if err := checkTransition(o.Status, to); err != nil {
			return nil, err
		}
	}
	// Leaving CANCELLED or REFUND_COMPLETED would revive an order whose
	// CrashCash has already been refunded.
	if o.Status.IsTerminal() && !to.IsTerminal() && o.WalletApplied.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrCreditReleased, o.Status)
	}

	err = aggregate.Record(ctx, s.eventStore, o, AggregateType, EventOrderStatusChanged, OrderStatusChanged{
		OrderID:   orderID,
		UserID:    o.UserID,
		From:      o.Status,
		To:        to,
		RawStatus: u.Raw,
		Source:    u.Source,
		Forced:    u.Force,
		Reason:    u.Reason,
		ChangedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Cancel moves the order to CANCELLED under the normal policy.
func (s *Service) Cancel(ctx context.Context, orderID, source, reason string) (*Order, error) {
	return s.UpdateStatus(ctx, orderID, StatusUpdate{
		Raw:    string(orderstatus.Cancelled),
		Source: source,
		Reason: reason,
	})
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	o, found, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*Order, bool, error) {
	return aggregate.Load(ctx, s.eventStore, orderID, func() *Order { return &Order{} })
}
