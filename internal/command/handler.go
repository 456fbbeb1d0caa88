package command

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"

	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/coupon"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

const (
	SourceCustomer = "customer"
	SourceAdmin    = "admin"
	SourceWebhook  = "webhook"
)

type Handler struct {
	productSvc   *product.Service
	cartSvc      *cart.Service
	orderSvc     *order.Service
	couponSvc    *coupon.Service
	walletSvc    *wallet.Service
	flashSaleSvc *flashsale.Service
	checkoutSvc  *checkout.Service
	resolver     *flashsale.Resolver
	text         *bluemonday.Policy
	logger       *slog.Logger
}

func NewHandler(
	productSvc *product.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	couponSvc *coupon.Service,
	walletSvc *wallet.Service,
	flashSaleSvc *flashsale.Service,
	checkoutSvc *checkout.Service,
	resolver *flashsale.Resolver,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		productSvc:   productSvc,
		cartSvc:      cartSvc,
		orderSvc:     orderSvc,
		couponSvc:    couponSvc,
		walletSvc:    walletSvc,
		flashSaleSvc: flashSaleSvc,
		checkoutSvc:  checkoutSvc,
		resolver:     resolver,
		text:         bluemonday.StrictPolicy(),
		logger:       logger.With("component", "command"),
	}
}

// plainPasses bounds how many layers of entity encoding plain unwraps.
const plainPasses = 4

// plain strips markup from admin and customer free text. Unescaping can turn
// encoded tags into real ones, so it repeats until a pass changes nothing. If
// that never happens the escaped form is returned.
func (h *Handler) plain(s string) string {
	for i := 0; i < plainPasses; i++ {
		next := html.UnescapeString(h.text.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(h.text.Sanitize(s))
}

// CreateProduct creates a new product (async projection - updates via Kafka)
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	return h.productSvc.Create(ctx, product.Details{
		Name:        h.plain(cmd.Name),
		Description: h.plain(cmd.Description),
		Price:       cmd.Price,
		Stock:       cmd.Stock,
	})
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) error {
	return h.productSvc.Update(ctx, cmd.ProductID, product.Details{
		Name:        h.plain(cmd.Name),
		Description: h.plain(cmd.Description),
		Price:       cmd.Price,
		Stock:       cmd.Stock,
	})
}

func (h *Handler) DeleteProduct(ctx context.Context, cmd DeleteProduct) error {
	return h.productSvc.Delete(ctx, cmd.ProductID)
}

// AddToCart captures the current list price from the write side.
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) error {
	p, err := h.productSvc.Get(ctx, cmd.ProductID)
	if err != nil {
		return err
	}
	return h.cartSvc.AddItem(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity, p.Price)
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) error {
	return h.cartSvc.RemoveItem(ctx, cmd.UserID, cmd.ProductID)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	return h.cartSvc.Clear(ctx, cmd.UserID, "")
}

func (h *Handler) Quote(ctx context.Context, cmd PlaceOrder) (*checkout.Quote, error) {
	return h.checkoutSvc.Quote(ctx, checkoutRequest(cmd))
}

// PlaceOrder creates an order from the cart through checkout.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, *checkout.Quote, error) {
	return h.checkoutSvc.PlaceOrder(ctx, checkoutRequest(cmd))
}

func checkoutRequest(cmd PlaceOrder) checkout.Request {
	return checkout.Request{
		UserID:       cmd.UserID,
		Email:        cmd.Email,
		CouponCode:   cmd.CouponCode,
		UseWallet:    cmd.UseWallet,
		WalletAmount: cmd.WalletAmount,
	}
}

// CancelOrder cancels a customer's own order under the normal transition policy.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) (*order.Order, error) {
	o, err := h.orderSvc.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != cmd.UserID {
		return nil, order.ErrOrderNotFound
	}
	return h.UpdateOrderStatus(ctx, UpdateOrderStatus{
		OrderID: cmd.OrderID,
		Status:  string(orderstatus.Cancelled),
		Reason:  cmd.Reason,
		Source:  SourceCustomer,
	})
}

// UpdateOrderStatus normalizes and applies a status write. Reaching a
// terminal status returns any CrashCash the order used.
func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	o, err := h.orderSvc.UpdateStatus(ctx, cmd.OrderID, order.StatusUpdate{
		Raw:    cmd.Status,
		Source: cmd.Source,
		Reason: h.plain(cmd.Reason),
		Force:  cmd.Force,
	})
	if errors.Is(err, order.ErrUnknownStatus) {
		metrics.UnknownStatuses.Inc()
		h.logger.WarnContext(ctx, "unmapped order status", "order_id", cmd.OrderID, "raw", cmd.Status, "source", cmd.Source)
	}
	if err != nil {
		return nil, err
	}
	metrics.StatusUpdates.WithLabelValues(string(o.Status), cmd.Source).Inc()

	if o.Status.IsTerminal() && o.WalletApplied.IsPositive() {
		err := h.walletSvc.Refund(ctx, o.UserID, o.ID)
		switch {
		case err == nil:
			h.logger.InfoContext(ctx, "CrashCash returned", "order_id", o.ID, "amount", o.WalletApplied.String())
		case errors.Is(err, wallet.ErrAlreadyRefunded), errors.Is(err, wallet.ErrDebitNotFound):
		default:
			return o, err
		}
	}
	return o, nil
}

func (h *Handler) CreateCoupon(ctx context.Context, cmd CreateCoupon) (*coupon.Coupon, error) {
	return h.couponSvc.Create(ctx, coupon.CreateInput{
		Code:        cmd.Code,
		Type:        coupon.Type(strings.ToUpper(strings.TrimSpace(cmd.Type))),
		Value:       cmd.Value,
		MinOrder:    cmd.MinOrder,
		MaxDiscount: cmd.MaxDiscount,
		UsageLimit:  cmd.UsageLimit,
		Description: h.plain(cmd.Description),
		ExpiresAt:   cmd.ExpiresAt,
	})
}

func (h *Handler) DeactivateCoupon(ctx context.Context, code string) error {
	return h.couponSvc.Deactivate(ctx, code)
}

func (h *Handler) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.ValidationResult, error) {
	return h.couponSvc.Validate(ctx, code, subtotal)
}

func (h *Handler) AddCredit(ctx context.Context, cmd AddCredit) (*wallet.Wallet, error) {
	source := h.plain(cmd.Source)
	if source == "" {
		source = SourceAdmin
	}
	return h.walletSvc.AddCredit(ctx, cmd.UserID, cmd.Amount, source, cmd.ExpiresAt)
}

func (h *Handler) CreateFlashSale(ctx context.Context, cmd CreateFlashSale) (*flashsale.Sale, error) {
	sale, err := h.flashSaleSvc.Create(ctx, flashsale.CreateInput{
		Name:           h.plain(cmd.Name),
		Products:       cmd.Products,
		Discount:       cmd.Discount,
		AllowCoupons:   cmd.AllowCoupons,
		AllowCrashCash: cmd.AllowCrashCash,
		StartTime:      cmd.StartTime,
		EndTime:        cmd.EndTime,
	})
	if err != nil {
		return nil, err
	}
	h.resolver.Invalidate()
	return sale, nil
}

func (h *Handler) EndFlashSale(ctx context.Context, cmd EndFlashSale) error {
	if err := h.flashSaleSvc.End(ctx, cmd.SaleID, h.plain(cmd.Reason)); err != nil {
		return err
	}
	h.resolver.Invalidate()
	return nil
}
