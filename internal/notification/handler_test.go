package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []email.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeSender, *mocks.MockReadStore) {
	t.Helper()
	renderer, err := email.NewRenderer("Crash Store", "INR")
	require.NoError(t, err)
	sender := &fakeSender{}
	readStore := mocks.NewMockReadStore()
	return NewHandler(sender, renderer, readStore, slog.New(slog.NewTextHandler(io.Discard, nil))), sender, readStore
}

func eventBytes(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	value, err := json.Marshal(store.Event{
		ID:            "evt-1",
		AggregateID:   "order-1",
		AggregateType: order.AggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now(),
		Version:       1,
	})
	require.NoError(t, err)
	return value
}

func TestHandleEvent_OrderPlacedSendsConfirmation(t *testing.T) {
	h, sender, readStore := newTestHandler(t)
	readStore.SetData(readmodel.Products, "p1", &readmodel.ProductReadModel{ID: "p1", Name: "Kettle"})

	err := h.HandleEvent(context.Background(), []byte("order-1"), eventBytes(t, order.EventOrderPlaced, order.OrderPlaced{
		OrderID:  "order-1",
		UserID:   "user-1",
		Email:    "a@example.com",
		Items:    []order.OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(50)}},
		Subtotal: decimal.NewFromInt(100),
		Total:    decimal.NewFromInt(100),
		Status:   orderstatus.OrderPlaced,
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "Kettle x2")
}

func TestHandleEvent_OrderPlacedWithoutEmailSkips(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	err := h.HandleEvent(context.Background(), nil, eventBytes(t, order.EventOrderPlaced, order.OrderPlaced{OrderID: "order-1"}))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleEvent_StatusChangedMailsOrderEmail(t *testing.T) {
	h, sender, readStore := newTestHandler(t)
	readStore.SetData(readmodel.Orders, "order-1", &readmodel.OrderReadModel{ID: "order-1", Email: "a@example.com"})

	err := h.HandleEvent(context.Background(), nil, eventBytes(t, order.EventOrderStatusChanged, order.OrderStatusChanged{
		OrderID: "order-1",
		From:    orderstatus.Processing,
		To:      orderstatus.Shipped,
		Reason:  "courier",
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "is now: Shipped")
	assert.Contains(t, sender.sent[0].Body, "Note: courier")
}

func TestHandleEvent_StatusChangedUnknownOrderSkips(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	err := h.HandleEvent(context.Background(), nil, eventBytes(t, order.EventOrderStatusChanged, order.OrderStatusChanged{
		OrderID: "missing",
		To:      orderstatus.Shipped,
	}))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleEvent_SendFailureIsReturned(t *testing.T) {
	h, sender, _ := newTestHandler(t)
	sender.err = errors.New("smtp down")

	err := h.HandleEvent(context.Background(), nil, eventBytes(t, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "order-1",
		Email:   "a@example.com",
	}))

	assert.EqualError(t, err, "smtp down")
}

func TestHandleEvent_IgnoresOtherEventsAndRejectsGarbage(t *testing.T) {
	h, sender, _ := newTestHandler(t)

	require.NoError(t, h.HandleEvent(context.Background(), nil, eventBytes(t, "CartCleared", map[string]string{})))
	assert.Empty(t, sender.sent)

	assert.Error(t, h.HandleEvent(context.Background(), nil, []byte("{nope")))
}
