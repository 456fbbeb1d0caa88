package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	return service, eventStore
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGetCartID(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		expectedID string
	}{
		{"normal user ID", "user-123", "cart-user-123"},
		{"UUID user ID", "550e8400-e29b-41d4-a716-446655440000", "cart-550e8400-e29b-41d4-a716-446655440000"},
		{"empty user ID", "", "cart-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedID, GetCartID(tt.userID))
		})
	}
}

// ============================================
// Add Item Tests
// ============================================

func TestService_AddItem_Success(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()

	err := service.AddItem(ctx, "user-123", "prod-456", 2, price("10.50"))

	require.NoError(t, err)
	require.Len(t, eventStore.AppendCalls, 1)
	assert.Equal(t, EventItemAdded, eventStore.AppendCalls[0].EventType)
	assert.Equal(t, AggregateType, eventStore.AppendCalls[0].AggregateType)
	assert.Equal(t, "cart-user-123", eventStore.AppendCalls[0].AggregateID)

	data := eventStore.AppendCalls[0].Data.(ItemAddedToCart)
	assert.Equal(t, "cart-user-123", data.CartID)
	assert.Equal(t, "prod-456", data.ProductID)
	assert.Equal(t, 2, data.Quantity)
	assert.True(t, price("10.50").Equal(data.Price))
}

func TestService_AddItem_Validation(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		quantity  int
		price     decimal.Decimal
		wantErr   error
	}{
		{"empty product", "", 1, price("1"), ErrInvalidProduct},
		{"zero quantity", "prod-1", 0, price("1"), ErrInvalidQuantity},
		{"negative quantity", "prod-1", -1, price("1"), ErrInvalidQuantity},
		{"zero price", "prod-1", 1, decimal.Zero, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, eventStore := newTestCartService()

			err := service.AddItem(context.Background(), "user-123", tt.productID, tt.quantity, tt.price)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, eventStore.AppendCalls)
		})
	}
}

func TestService_AddItem_MergesSameProduct(t *testing.T) {
	service, _ := newTestCartService()
	ctx := context.Background()

	require.NoError(t, service.AddItem(ctx, "user-123", "prod-1", 2, price("10")))
	require.NoError(t, service.AddItem(ctx, "user-123", "prod-1", 3, price("12")))

	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items["prod-1"].Quantity)
	assert.True(t, price("60").Equal(c.Subtotal()))
}

// ============================================
// Remove / Clear Tests
// ============================================

func TestService_RemoveItem_Success(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()
	require.NoError(t, service.AddItem(ctx, "user-123", "prod-456", 1, price("5")))

	require.NoError(t, service.RemoveItem(ctx, "user-123", "prod-456"))

	assert.Equal(t, []string{EventItemAdded, EventItemRemoved}, eventStore.EventTypes())
	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestService_RemoveItem_Errors(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()

	assert.ErrorIs(t, service.RemoveItem(ctx, "user-123", ""), ErrInvalidProduct)
	assert.ErrorIs(t, service.RemoveItem(ctx, "user-123", "prod-404"), ErrItemNotInCart)
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_Clear_AfterCheckout(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()
	require.NoError(t, service.AddItem(ctx, "user-123", "prod-1", 2, price("10")))
	require.NoError(t, service.AddItem(ctx, "user-123", "prod-2", 1, price("20")))

	require.NoError(t, service.Clear(ctx, "user-123", "order-9"))

	data := eventStore.AppendCalls[2].Data.(CartCleared)
	assert.Equal(t, "order-9", data.OrderID)
	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 3, c.Version)
}

func TestService_Clear_EmptyCart(t *testing.T) {
	service, _ := newTestCartService()

	require.NoError(t, service.Clear(context.Background(), "user-123", ""))
}

func TestService_Get_SortedItems(t *testing.T) {
	service, _ := newTestCartService()
	ctx := context.Background()
	require.NoError(t, service.AddItem(ctx, "u", "b", 1, price("2")))
	require.NoError(t, service.AddItem(ctx, "u", "a", 1, price("1")))

	c, err := service.Get(ctx, "u")
	require.NoError(t, err)

	items := c.SortedItems()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, "b", items[1].ProductID)
}

func TestService_Get_StoreError(t *testing.T) {
	service, eventStore := newTestCartService()
	eventStore.GetEventsErr = errors.New("boom")

	_, err := service.Get(context.Background(), "u")

	assert.Error(t, err)
}

func TestService_SnapshotEveryTenEvents(t *testing.T) {
	service, eventStore := newTestCartService()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, service.AddItem(ctx, "user-123", "prod-1", 1, price("1")))
	}

	snap := eventStore.Snapshots("cart-user-123")
	require.NotNil(t, snap)
	assert.Equal(t, 10, snap.Version)

	require.NoError(t, service.AddItem(ctx, "user-123", "prod-1", 1, price("1")))
	c, err := service.Get(ctx, "user-123")
	require.NoError(t, err)
	assert.Equal(t, 11, c.Items["prod-1"].Quantity)
}
