// Package notification mails customers when their orders are placed or change status.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/readmodel"
)

// Handler processes events for sending notifications
type Handler struct {
	sender    email.Sender
	renderer  *email.Renderer
	readStore store.ReadStoreInterface
	logger    *slog.Logger
}

func NewHandler(sender email.Sender, renderer *email.Renderer, readStore store.ReadStoreInterface, logger *slog.Logger) *Handler {
	return &Handler{
		sender:    sender,
		renderer:  renderer,
		readStore: readStore,
		logger:    logger.With("component", "notifier"),
	}
}

// HandleEvent processes an event from Kafka or Kinesis. Undecodable events
// are returned as errors; mails that cannot be addressed are skipped.
func (h *Handler) HandleEvent(ctx context.Context, _, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal event", "error", err)
		return err
	}

	switch event.EventType {
	case order.EventOrderPlaced:
		return h.handleOrderPlaced(ctx, event)
	case order.EventOrderStatusChanged:
		return h.handleStatusChanged(ctx, event)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return err
	}
	logger := h.logger.With("order_id", e.OrderID, "user_id", e.UserID)
	if e.Email == "" {
		logger.InfoContext(ctx, "no email on order, skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      h.productName(item.ProductID),
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	msg := h.renderer.OrderConfirmation(e.Email, email.OrderConfirmation{
		OrderID:        e.OrderID,
		Items:          items,
		Subtotal:       e.Subtotal,
		CouponCode:     e.CouponCode,
		CouponDiscount: e.CouponDiscount,
		WalletApplied:  e.WalletApplied,
		Total:          e.Total,
	})
	if err := h.sender.Send(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "failed to send order confirmation", "error", err)
		return err
	}
	logger.InfoContext(ctx, "order confirmation sent")
	return nil
}

func (h *Handler) handleStatusChanged(ctx context.Context, event store.Event) error {
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		return err
	}
	logger := h.logger.With("order_id", e.OrderID, "status", string(e.To))

	data, ok, err := h.readStore.Get(readmodel.Orders, e.OrderID)
	if err != nil {
		return err
	}
	o, _ := data.(*readmodel.OrderReadModel)
	if !ok || o == nil || o.Email == "" {
		logger.InfoContext(ctx, "no email for order, skipping status mail")
		return nil
	}

	msg := h.renderer.StatusChanged(o.Email, email.StatusChange{
		OrderID: e.OrderID,
		Label:   e.To.Label(),
		Reason:  e.Reason,
		At:      e.ChangedAt,
	})
	if err := h.sender.Send(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "failed to send status mail", "error", err)
		return err
	}
	logger.InfoContext(ctx, "status mail sent")
	return nil
}

func (h *Handler) productName(productID string) string {
	if data, ok, _ := h.readStore.Get(readmodel.Products, productID); ok {
		if p, ok := data.(*readmodel.ProductReadModel); ok && p.Name != "" {
			return p.Name
		}
	}
	return productID
}
