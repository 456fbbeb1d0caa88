package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

const AggregateType = "Cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrItemNotInCart   = errors.New("item not in cart")
)

type CartItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	aggregate.Base
	UserID string              `json:"user_id"`
	Items  map[string]CartItem `json:"items"` // productID -> item
}

// GetCartID returns the cart ID for a user
func GetCartID(userID string) string {
	return "cart-" + userID
}

func (c *Cart) ApplyEvent(event store.Event) error {
	if c.Items == nil {
		c.Items = make(map[string]CartItem)
	}
	switch event.EventType {
	case EventItemAdded:
		var data ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CartID
		c.UserID = data.UserID
		item := c.Items[data.ProductID]
		item.ProductID = data.ProductID
		item.Quantity += data.Quantity
		item.Price = data.Price
		c.Items[data.ProductID] = item
	case EventItemRemoved:
		var data ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(c.Items, data.ProductID)
	case EventCartCleared:
		c.Items = make(map[string]CartItem)
	}
	c.Advance(event)
	return nil
}

// SortedItems returns the items ordered by product id.
func (c *Cart) SortedItems() []CartItem {
	items := make([]CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

// Subtotal sums the line totals at the prices captured when items were added.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// Get returns the user's cart; a user without events has an empty cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	cartID := GetCartID(userID)
	c, _, err := aggregate.Load(ctx, s.eventStore, cartID, func() *Cart {
		return &Cart{Items: make(map[string]CartItem)}
	})
	if err != nil {
		return nil, err
	}
	c.ID = cartID
	c.UserID = userID
	return c, nil
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, price decimal.Decimal) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventItemAdded, ItemAddedToCart{
		CartID:    c.ID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		AddedAt:   time.Now().UTC(),
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if productID == "" {
		return ErrInvalidProduct
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := c.Items[productID]; !ok {
		return ErrItemNotInCart
	}
	return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventItemRemoved, ItemRemovedFromCart{
		CartID:    c.ID,
		UserID:    userID,
		ProductID: productID,
		RemovedAt: time.Now().UTC(),
	})
}

// Clear empties the cart. orderID is set when the clear follows checkout.
func (s *Service) Clear(ctx context.Context, userID, orderID string) error {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return aggregate.Record(ctx, s.eventStore, c, AggregateType, EventCartCleared, CartCleared{
		CartID:    c.ID,
		UserID:    userID,
		OrderID:   orderID,
		ClearedAt: time.Now().UTC(),
	})
}
