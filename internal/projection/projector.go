package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/coupon"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
)

// Projector folds domain events into the read models served by the query side.
type Projector struct {
	readStore store.ReadStoreInterface
	logger    *slog.Logger
}

func NewProjector(readStore store.ReadStoreInterface, logger *slog.Logger) *Projector {
	return &Projector{readStore: readStore, logger: logger.With("component", "projector")}
}

// HandleEvent is the Kafka and Kinesis message handler.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "received event",
		"event_type", event.EventType, "aggregate", event.AggregateType, "aggregate_id", string(key))

	err := p.Apply(event)
	result := "ok"
	if err != nil {
		result = "error"
		p.logger.ErrorContext(ctx, "projection failed", "event_id", event.ID, "event_type", event.EventType, "error", err)
	}
	metrics.EventsProjected.WithLabelValues(event.AggregateType, result).Inc()
	return err
}

// Publish lets the projector stand in for the broker: with the in-memory event
// store every appended event is projected before Append returns.
func (p *Projector) Publish(ctx context.Context, key string, event any) error {
	switch e := event.(type) {
	case store.Event:
		return p.Apply(e)
	case *store.Event:
		return p.Apply(*e)
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.HandleEvent(ctx, []byte(key), raw)
}

var _ store.Publisher = (*Projector)(nil)

// Apply projects one event. Used directly by replay.
func (p *Projector) Apply(event store.Event) error {
	switch event.AggregateType {
	case product.AggregateType:
		return p.handleProductEvent(event)
	case cart.AggregateType:
		return p.handleCartEvent(event)
	case order.AggregateType:
		return p.handleOrderEvent(event)
	case coupon.AggregateType:
		return p.handleCouponEvent(event)
	case wallet.AggregateType:
		return p.handleWalletEvent(event)
	case flashsale.AggregateType:
		return p.handleFlashSaleEvent(event)
	}
	return nil
}

// Replay rebuilds every read model from the full event history.
func (p *Projector) Replay(ctx context.Context, es store.EventStoreInterface) (int, error) {
	events, err := es.GetAllEvents(ctx)
	if err != nil {
		return 0, err
	}
	return p.replay(ctx, events)
}

// TimeRangeReader is implemented by event stores that can list events by creation time.
type TimeRangeReader interface {
	GetEventsAfter(ctx context.Context, after time.Time) ([]store.Event, error)
}

var _ TimeRangeReader = (*store.PostgresEventStore)(nil)

// ReplaySince re-applies only the events created after since.
func (p *Projector) ReplaySince(ctx context.Context, es TimeRangeReader, since time.Time) (int, error) {
	events, err := es.GetEventsAfter(ctx, since)
	if err != nil {
		return 0, err
	}
	return p.replay(ctx, events)
}

func (p *Projector) replay(ctx context.Context, events []store.Event) (int, error) {
	for i, e := range events {
		if err := p.Apply(e); err != nil {
			return i, fmt.Errorf("replay %s v%d: %w", e.AggregateID, e.Version, err)
		}
	}
	p.logger.InfoContext(ctx, "replay complete", "events", len(events))
	return len(events), nil
}

func decode[T any](event store.Event) (T, error) {
	var v T
	err := json.Unmarshal(event.Data, &v)
	return v, err
}

// update runs fn on the stored model; missing models are skipped.
func update[T any](rs store.ReadStoreInterface, collection, id string, fn func(*T)) error {
	_, err := rs.Update(collection, id, func(current any) any {
		m := current.(*T)
		fn(m)
		return m
	})
	return err
}

func (p *Projector) handleProductEvent(event store.Event) error {
	switch event.EventType {
	case product.EventProductCreated:
		e, err := decode[product.ProductCreated](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Products, e.ProductID, &readmodel.ProductReadModel{
			ID:          e.ProductID,
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price,
			Stock:       e.Stock,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.CreatedAt,
		})

	case product.EventProductUpdated:
		e, err := decode[product.ProductUpdated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Products, e.ProductID, func(prod *readmodel.ProductReadModel) {
			prod.Name = e.Name
			prod.Description = e.Description
			prod.Price = e.Price
			prod.Stock = e.Stock
			prod.UpdatedAt = e.UpdatedAt
		})

	case product.EventProductDeleted:
		e, err := decode[product.ProductDeleted](event)
		if err != nil {
			return err
		}
		return p.readStore.Delete(readmodel.Products, e.ProductID)
	}
	return nil
}

func (p *Projector) productName(productID string) string {
	prod, ok, err := p.readStore.Get(readmodel.Products, productID)
	if err != nil || !ok {
		return ""
	}
	return prod.(*readmodel.ProductReadModel).Name
}

func (p *Projector) handleCartEvent(event store.Event) error {
	switch event.EventType {
	case cart.EventItemAdded:
		e, err := decode[cart.ItemAddedToCart](event)
		if err != nil {
			return err
		}
		existing, ok, err := p.readStore.Get(readmodel.Carts, e.CartID)
		if err != nil {
			return err
		}
		c := &readmodel.CartReadModel{ID: e.CartID, UserID: e.UserID}
		if ok {
			c = existing.(*readmodel.CartReadModel)
		}

		found := false
		for i, item := range c.Items {
			if item.ProductID == e.ProductID {
				c.Items[i].Quantity += e.Quantity
				c.Items[i].Price = e.Price
				found = true
				break
			}
		}
		if !found {
			c.Items = append(c.Items, readmodel.CartItemReadModel{
				ProductID: e.ProductID,
				Name:      p.productName(e.ProductID),
				Quantity:  e.Quantity,
				Price:     e.Price,
			})
		}
		c.Total = calculateCartTotal(c.Items)
		return p.readStore.Set(readmodel.Carts, e.CartID, c)

	case cart.EventItemRemoved:
		e, err := decode[cart.ItemRemovedFromCart](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Carts, e.CartID, func(c *readmodel.CartReadModel) {
			kept := make([]readmodel.CartItemReadModel, 0, len(c.Items))
			for _, item := range c.Items {
				if item.ProductID != e.ProductID {
					kept = append(kept, item)
				}
			}
			c.Items = kept
			c.Total = calculateCartTotal(c.Items)
		})

	case cart.EventCartCleared:
		e, err := decode[cart.CartCleared](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Carts, e.CartID, &readmodel.CartReadModel{
			ID:     e.CartID,
			UserID: e.UserID,
			Items:  []readmodel.CartItemReadModel{},
			Total:  decimal.Zero,
		})
	}
	return nil
}

func calculateCartTotal(items []readmodel.CartItemReadModel) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderPlaced:
		e, err := decode[order.OrderPlaced](event)
		if err != nil {
			return err
		}
		items := make([]readmodel.OrderItemReadModel, len(e.Items))
		for i, item := range e.Items {
			items[i] = readmodel.OrderItemReadModel{
				ProductID: item.ProductID,
				Name:      p.productName(item.ProductID),
				Quantity:  item.Quantity,
				Price:     item.Price,
			}
		}
		return p.readStore.Set(readmodel.Orders, e.OrderID, &readmodel.OrderReadModel{
			ID:             e.OrderID,
			UserID:         e.UserID,
			Email:          e.Email,
			Items:          items,
			Subtotal:       e.Subtotal,
			CouponCode:     e.CouponCode,
			CouponDiscount: e.CouponDiscount,
			WalletApplied:  e.WalletApplied,
			Total:          e.Total,
			Status:         string(e.Status),
			History:        []readmodel.StatusEntry{{Status: string(e.Status), Source: "checkout", At: e.PlacedAt}},
			CreatedAt:      e.PlacedAt,
			UpdatedAt:      e.PlacedAt,
		})

	case order.EventOrderStatusChanged:
		e, err := decode[order.OrderStatusChanged](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Orders, e.OrderID, func(o *readmodel.OrderReadModel) {
			o.Status = string(e.To)
			o.History = append(o.History, readmodel.StatusEntry{
				Status: string(e.To),
				Source: e.Source,
				Forced: e.Forced,
				Reason: e.Reason,
				At:     e.ChangedAt,
			})
			o.UpdatedAt = e.ChangedAt
		})
	}
	return nil
}

func (p *Projector) handleCouponEvent(event store.Event) error {
	switch event.EventType {
	case coupon.EventCouponCreated:
		e, err := decode[coupon.CouponCreated](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.Coupons, e.Code, &readmodel.CouponReadModel{
			Code:        e.Code,
			Type:        string(e.Type),
			Value:       e.Value,
			MinOrder:    e.MinOrder,
			MaxDiscount: e.MaxDiscount,
			UsageLimit:  e.UsageLimit,
			Description: e.Description,
			ExpiresAt:   e.ExpiresAt,
			Active:      true,
		})

	case coupon.EventCouponRedeemed:
		e, err := decode[coupon.CouponRedeemed](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Coupons, e.Code, func(c *readmodel.CouponReadModel) {
			c.UsedCount++
		})

	case coupon.EventCouponReleased:
		e, err := decode[coupon.CouponReleased](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Coupons, e.Code, func(c *readmodel.CouponReadModel) {
			if c.UsedCount > 0 {
				c.UsedCount--
			}
		})

	case coupon.EventCouponDeactivated:
		e, err := decode[coupon.CouponDeactivated](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Coupons, e.Code, func(c *readmodel.CouponReadModel) {
			c.Active = false
		})
	}
	return nil
}

func (p *Projector) handleWalletEvent(event store.Event) error {
	switch event.EventType {
	case wallet.EventCreditAdded:
		e, err := decode[wallet.CreditAdded](event)
		if err != nil {
			return err
		}
		existing, ok, err := p.readStore.Get(readmodel.Wallets, e.UserID)
		if err != nil {
			return err
		}
		w := &readmodel.WalletReadModel{UserID: e.UserID}
		if ok {
			w = existing.(*readmodel.WalletReadModel)
		}
		w.Credits = append(w.Credits, readmodel.CreditReadModel{
			ID:        e.CreditID,
			Amount:    e.Amount,
			Source:    e.Source,
			ExpiresAt: e.ExpiresAt,
		})
		w.UpdatedAt = e.AddedAt
		return p.readStore.Set(readmodel.Wallets, e.UserID, w)

	case wallet.EventCreditDebited:
		e, err := decode[wallet.CreditDebited](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Wallets, e.UserID, func(w *readmodel.WalletReadModel) {
			adjustCredits(w, e.Allocations, -1)
			w.UpdatedAt = e.DebitedAt
		})

	case wallet.EventCreditRefunded:
		e, err := decode[wallet.CreditRefunded](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.Wallets, e.UserID, func(w *readmodel.WalletReadModel) {
			adjustCredits(w, e.Allocations, 1)
			w.UpdatedAt = e.RefundedAt
		})

	case wallet.EventCreditsExpired:
		e, err := decode[wallet.CreditsExpired](event)
		if err != nil {
			return err
		}
		gone := make(map[string]bool, len(e.CreditIDs))
		for _, id := range e.CreditIDs {
			gone[id] = true
		}
		return update(p.readStore, readmodel.Wallets, e.UserID, func(w *readmodel.WalletReadModel) {
			kept := make([]readmodel.CreditReadModel, 0, len(w.Credits))
			for _, c := range w.Credits {
				if !gone[c.ID] {
					kept = append(kept, c)
				}
			}
			w.Credits = kept
			w.UpdatedAt = e.ExpiredAt
		})
	}
	return nil
}

func adjustCredits(w *readmodel.WalletReadModel, allocs []wallet.Allocation, sign int64) {
	for _, a := range allocs {
		for i := range w.Credits {
			if w.Credits[i].ID == a.CreditID {
				w.Credits[i].Amount = w.Credits[i].Amount.Add(a.Amount.Mul(decimal.NewFromInt(sign)))
			}
		}
	}
}

func (p *Projector) handleFlashSaleEvent(event store.Event) error {
	switch event.EventType {
	case flashsale.EventFlashSaleCreated:
		e, err := decode[flashsale.FlashSaleCreated](event)
		if err != nil {
			return err
		}
		return p.readStore.Set(readmodel.FlashSales, e.SaleID, &flashsale.FlashSale{
			ID:             e.SaleID,
			Name:           e.Name,
			Products:       e.Products,
			Discount:       e.Discount,
			AllowCoupons:   e.AllowCoupons,
			AllowCrashCash: e.AllowCrashCash,
			StartTime:      e.StartTime,
			EndTime:        e.EndTime,
		})

	case flashsale.EventFlashSaleEnded:
		e, err := decode[flashsale.FlashSaleEnded](event)
		if err != nil {
			return err
		}
		return update(p.readStore, readmodel.FlashSales, e.SaleID, func(fs *flashsale.FlashSale) {
			fs.Ended = true
		})
	}
	return nil
}
