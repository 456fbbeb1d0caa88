// Package checkout prices a cart and turns it into an order. Pricing applies
// flash sale prices, resolves flash sale eligibility, validates the coupon and
// stacks CrashCash on top with the discount calculator.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/coupon"
	"github.com/example/ec-storefront/internal/domain/discount"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MsgCouponsDisabled   = "Coupons are not allowed during this flash sale"
	MsgCrashCashDisabled = "CrashCash is not allowed during this flash sale"
)

var ErrEmptyCart = errors.New("cart is empty")

// CouponError is returned by PlaceOrder when the requested coupon does not apply.
type CouponError struct {
	Message string
}

func (e *CouponError) Error() string { return "coupon rejected: " + e.Message }

type Request struct {
	UserID       string
	Email        string
	CouponCode   string
	UseWallet    bool
	WalletAmount decimal.Decimal
}

type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Price     decimal.Decimal `json:"price"`
	OnSale    bool            `json:"onSale"`
}

// Quote is the priced cart. Total carries the calculator result, including
// any validation errors.
type Quote struct {
	Lines           []Line                `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Eligibility     flashsale.Eligibility `json:"eligibility"`
	Coupon          *coupon.Summary       `json:"coupon,omitempty"`
	CouponDiscount  decimal.Decimal       `json:"couponDiscount"`
	CouponMessage   string                `json:"couponMessage,omitempty"`
	WalletBalance   decimal.Decimal       `json:"walletBalance"`
	MaxWalletCredit decimal.Decimal       `json:"maxWalletCredit"`
	WalletMessage   string                `json:"walletMessage,omitempty"`
	Total           discount.Result       `json:"total"`
}

type Service struct {
	carts    *cart.Service
	coupons  *coupon.Service
	wallets  *wallet.Service
	orders   *order.Service
	resolver *flashsale.Resolver
	logger   *slog.Logger
}

func NewService(
	carts *cart.Service,
	coupons *coupon.Service,
	wallets *wallet.Service,
	orders *order.Service,
	resolver *flashsale.Resolver,
	logger *slog.Logger,
) *Service {
	return &Service{
		carts:    carts,
		coupons:  coupons,
		wallets:  wallets,
		orders:   orders,
		resolver: resolver,
		logger:   logger.With("component", "checkout"),
	}
}

// Quote prices the user's cart. A failed flash sale lookup prices at list
// price with coupons and CrashCash allowed.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	items := c.SortedItems()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(items))
	prices := make(map[string]decimal.Decimal, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
		prices[item.ProductID] = item.Price
	}

	eligibility := flashsale.Open
	active, ok := s.resolver.Active(ctx)
	if ok {
		eligibility = flashsale.ResolveEligibility(ids, active)
	}
	best := flashsale.BestPrices(prices, active)

	q := &Quote{
		Lines:          make([]Line, len(items)),
		Subtotal:       decimal.Zero,
		Eligibility:    eligibility,
		CouponDiscount: decimal.Zero,
		WalletBalance:  decimal.Zero,
	}
	for i, item := range items {
		price := best[item.ProductID]
		q.Lines[i] = Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Price:     price,
			OnSale:    price.LessThan(item.Price),
		}
		q.Subtotal = q.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	if code := coupon.NormalizeCode(req.CouponCode); code != "" {
		if !q.Eligibility.AllowCoupons {
			q.CouponMessage = MsgCouponsDisabled
		} else {
			v, err := s.coupons.Validate(ctx, code, q.Subtotal)
			if err != nil {
				return nil, err
			}
			if v.Valid {
				q.Coupon = v.Coupon
				q.CouponDiscount = v.Discount
			} else {
				q.CouponMessage = v.Message
			}
		}
	}

	useWallet := req.UseWallet
	if useWallet && !q.Eligibility.AllowCrashCash {
		useWallet = false
		q.WalletMessage = MsgCrashCashDisabled
	}
	if q.Eligibility.AllowCrashCash {
		balance, err := s.wallets.UpdateBalance(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		q.WalletBalance = balance
		q.MaxWalletCredit = discount.MaxWalletCredit(q.Subtotal, q.CouponDiscount, balance)
	} else {
		q.MaxWalletCredit = decimal.Zero
	}

	q.Total = discount.ComputeTotal(discount.Input{
		Subtotal:        q.Subtotal,
		CouponDiscount:  q.CouponDiscount,
		WalletRequested: req.WalletAmount,
		WalletBalance:   q.WalletBalance,
		UseWallet:       useWallet,
	})
	for _, e := range q.Total.Errors {
		metrics.DiscountRejections.WithLabelValues(string(e.Kind)).Inc()
	}
	return q, nil
}

// PlaceOrder quotes the cart and, when the quote is clean, redeems the
// coupon, debits the wallet, places the order and clears the cart. A failed
// step rolls back the ones before it. Discount failures come back as
// *discount.Error and coupon failures as *CouponError.
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*order.Order, *Quote, error) {
	q, err := s.Quote(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !q.Total.OK() {
		return nil, q, q.Total.Errors[0]
	}
	if coupon.NormalizeCode(req.CouponCode) != "" && q.Coupon == nil {
		return nil, q, &CouponError{Message: q.CouponMessage}
	}

	orderID := uuid.New().String()
	logger := s.logger.With("order_id", orderID, "user_id", req.UserID)

	steps := []step{
		{
			name: "redeem_coupon",
			skip: q.Coupon == nil,
			execute: func(ctx context.Context) error {
				return redeemError(s.coupons.Redeem(ctx, q.Coupon.Code, orderID))
			},
			compensate: func(ctx context.Context) error {
				return s.coupons.Release(ctx, q.Coupon.Code, orderID)
			},
		},
		{
			name: "debit_wallet",
			skip: !q.Total.WalletApplied.IsPositive(),
			execute: func(ctx context.Context) error {
				return s.wallets.Debit(ctx, req.UserID, orderID, q.Total.WalletApplied)
			},
			compensate: func(ctx context.Context) error {
				return s.wallets.Refund(ctx, req.UserID, orderID)
			},
		},
		{
			name: "place_order",
			execute: func(ctx context.Context) error {
				_, err := s.orders.Place(ctx, order.PlaceInput{
					OrderID:        orderID,
					UserID:         req.UserID,
					Email:          req.Email,
					Items:          orderItems(q.Lines),
					CouponCode:     couponCode(q.Coupon),
					CouponDiscount: q.CouponDiscount,
					WalletApplied:  q.Total.WalletApplied,
				})
				return err
			},
		},
	}
	if err := run(ctx, logger, steps); err != nil {
		return nil, q, err
	}
	metrics.OrdersPlaced.Inc()

	// The order stands from here on; a failed clear is only logged.
	if err := s.carts.Clear(ctx, req.UserID, orderID); err != nil {
		logger.WarnContext(ctx, "cart clear failed after order placement", "error", err)
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, q, err
	}
	logger.InfoContext(ctx, "order placed", "total", o.Total.String(), "wallet_applied", o.WalletApplied.String())
	return o, q, nil
}

// redeemError turns a coupon that stopped applying since the quote into a
// *CouponError.
func redeemError(err error) error {
	var unavailable *coupon.UnavailableError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unavailable):
		return &CouponError{Message: unavailable.Reason}
	case errors.Is(err, coupon.ErrCouponNotFound):
		return &CouponError{Message: "Invalid coupon code"}
	default:
		return err
	}
}

func orderItems(lines []Line) []order.OrderItem {
	items := make([]order.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = order.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price}
	}
	return items
}

func couponCode(c *coupon.Summary) string {
	if c == nil {
		return ""
	}
	return c.Code
}

// step is one unit of the placement sequence. compensate may be nil.
type step struct {
	name       string
	skip       bool
	execute    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// run executes steps in order and, on failure, compensates the completed ones
// in reverse.
func run(ctx context.Context, logger *slog.Logger, steps []step) error {
	done := make([]step, 0, len(steps))
	for _, st := range steps {
		if st.skip {
			continue
		}
		if err := st.execute(ctx); err != nil {
			logger.WarnContext(ctx, "checkout step failed, rolling back", "step", st.name, "error", err)
			for i := len(done) - 1; i >= 0; i-- {
				if done[i].compensate == nil {
					continue
				}
				if cerr := done[i].compensate(context.WithoutCancel(ctx)); cerr != nil {
					logger.ErrorContext(ctx, "compensation failed", "step", done[i].name, "error", cerr)
				}
			}
			return fmt.Errorf("%s: %w", st.name, err)
		}
		done = append(done, st)
	}
	return nil
}
