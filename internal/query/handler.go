package query

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// Handler serves reads from the projected read models.
type Handler struct {
	readStore store.ReadStoreInterface
	now       func() time.Time
}

func NewHandler(readStore store.ReadStoreInterface) *Handler {
	return &Handler{readStore: readStore, now: time.Now}
}

// OrderView is an order with its normalized status and tracking steps.
type OrderView struct {
	*readmodel.OrderReadModel
	StatusLabel string               `json:"statusLabel"`
	Tracking    orderstatus.Tracking `json:"tracking"`
}

// WalletView is the customer's CrashCash balance as of now.
type WalletView struct {
	UserID     string                      `json:"user_id"`
	Balance    decimal.Decimal             `json:"balance"`
	Credits    []readmodel.CreditReadModel `json:"credits"`
	NextExpiry *time.Time                  `json:"next_expiry,omitempty"`
}

func get[T any](rs store.ReadStoreInterface, collection, id string) (*T, error) {
	data, ok, err := rs.Get(collection, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return data.(*T), nil
}

func list[T any](rs store.ReadStoreInterface, collection string, keep func(*T) bool) ([]*T, error) {
	items, err := rs.GetAll(collection)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v := item.(*T)
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Products

func (h *Handler) GetProduct(id string) (*readmodel.ProductReadModel, error) {
	return get[readmodel.ProductReadModel](h.readStore, readmodel.Products, id)
}

func (h *Handler) ListProducts() ([]*readmodel.ProductReadModel, error) {
	products, err := list[readmodel.ProductReadModel](h.readStore, readmodel.Products, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// Cart

// GetCart returns an empty cart for users that never added an item.
func (h *Handler) GetCart(userID string) (*readmodel.CartReadModel, error) {
	cartID := cart.GetCartID(userID)
	c, err := get[readmodel.CartReadModel](h.readStore, readmodel.Carts, cartID)
	if errors.Is(err, ErrNotFound) {
		return &readmodel.CartReadModel{
			ID:     cartID,
			UserID: userID,
			Items:  []readmodel.CartItemReadModel{},
			Total:  decimal.Zero,
		}, nil
	}
	return c, err
}

// Orders

// GetOrder normalizes the stored status before rendering tracking, so rows
// written by older producers display the same as canonical ones.
func (h *Handler) GetOrder(id string) (*OrderView, error) {
	o, err := get[readmodel.OrderReadModel](h.readStore, readmodel.Orders, id)
	if err != nil {
		return nil, err
	}
	return viewOrder(o), nil
}

func viewOrder(o *readmodel.OrderReadModel) *OrderView {
	timeline := make(orderstatus.Timeline, len(o.History))
	for _, entry := range o.History {
		st := orderstatus.Normalize(entry.Status)
		if _, seen := timeline[st]; !seen {
			timeline[st] = entry.At
		}
	}
	tracking := orderstatus.Track(o.Status, timeline)
	return &OrderView{
		OrderReadModel: o,
		StatusLabel:    tracking.Status.Label(),
		Tracking:       tracking,
	}
}

func (h *Handler) ListOrdersByUser(userID string) ([]*OrderView, error) {
	orders, err := list(h.readStore, readmodel.Orders, func(o *readmodel.OrderReadModel) bool {
		return o.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	return viewOrders(orders), nil
}

// ListAllOrders returns all orders (for admin use), optionally filtered by
// normalized status.
func (h *Handler) ListAllOrders(status string) ([]*OrderView, error) {
	var keep func(*readmodel.OrderReadModel) bool
	if status != "" {
		want := orderstatus.Normalize(status)
		keep = func(o *readmodel.OrderReadModel) bool { return orderstatus.Normalize(o.Status) == want }
	}
	orders, err := list(h.readStore, readmodel.Orders, keep)
	if err != nil {
		return nil, err
	}
	return viewOrders(orders), nil
}

func viewOrders(orders []*readmodel.OrderReadModel) []*OrderView {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	views := make([]*OrderView, len(orders))
	for i, o := range orders {
		views[i] = viewOrder(o)
	}
	return views
}

// Coupons

func (h *Handler) ListCoupons() ([]*readmodel.CouponReadModel, error) {
	coupons, err := list[readmodel.CouponReadModel](h.readStore, readmodel.Coupons, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(coupons, func(i, j int) bool { return coupons[i].Code < coupons[j].Code })
	return coupons, nil
}

// Wallets

// GetWallet sums the credits that have not expired yet.
func (h *Handler) GetWallet(userID string) (*WalletView, error) {
	w, err := get[readmodel.WalletReadModel](h.readStore, readmodel.Wallets, userID)
	if errors.Is(err, ErrNotFound) {
		return &WalletView{UserID: userID, Balance: decimal.Zero, Credits: []readmodel.CreditReadModel{}}, nil
	}
	if err != nil {
		return nil, err
	}

	now := h.now()
	live := &readmodel.WalletReadModel{UserID: userID, Credits: []readmodel.CreditReadModel{}}
	balance := decimal.Zero
	for _, c := range w.Credits {
		if !c.Amount.IsPositive() || (!c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)) {
			continue
		}
		live.Credits = append(live.Credits, c)
		balance = balance.Add(c.Amount)
	}

	view := &WalletView{UserID: userID, Balance: balance, Credits: live.Credits}
	if next := live.NextExpiry(); !next.IsZero() {
		view.NextExpiry = &next
	}
	return view, nil
}

// ListWallets returns every projected wallet. Used by the expiry sweep.
func (h *Handler) ListWallets() ([]*readmodel.WalletReadModel, error) {
	return list[readmodel.WalletReadModel](h.readStore, readmodel.Wallets, nil)
}

// Flash sales

// ListFlashSales returns all sales, or only those active now when activeOnly is set.
func (h *Handler) ListFlashSales(activeOnly bool) ([]*flashsale.FlashSale, error) {
	var keep func(*flashsale.FlashSale) bool
	if activeOnly {
		now := h.now()
		keep = func(fs *flashsale.FlashSale) bool { return fs.IsActive(now) }
	}
	sales, err := list(h.readStore, readmodel.FlashSales, keep)
	if err != nil {
		return nil, err
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].StartTime.Before(sales[j].StartTime) })
	return sales, nil
}

// ActiveSales lets the read side act as the eligibility resolver's source.
func (h *Handler) ActiveSales(_ context.Context) ([]flashsale.FlashSale, error) {
	sales, err := h.ListFlashSales(true)
	if err != nil {
		return nil, err
	}
	out := make([]flashsale.FlashSale, len(sales))
	for i, fs := range sales {
		out[i] = *fs
	}
	return out, nil
}

var _ flashsale.Source = (*Handler)(nil)
