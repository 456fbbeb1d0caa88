package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestWalletService() (*Service, *mocks.MockEventStore, *time.Time) {
	eventStore := mocks.NewMockEventStore()
	service := NewService(eventStore)
	now := testNow
	service.now = func() time.Time { return now }
	return service, eventStore, &now
}

// ============================================
// Balance Tests
// ============================================

func TestService_UpdateBalance_NoWallet(t *testing.T) {
	service, eventStore, _ := newTestWalletService()

	balance, err := service.UpdateBalance(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.Empty(t, eventStore.AppendCalls)
}

func TestService_UpdateBalance_PrunesExpired(t *testing.T) {
	service, eventStore, now := newTestWalletService()
	ctx := context.Background()
	_, err := service.AddCredit(ctx, "user-1", dec("100"), "signup", testNow.Add(24*time.Hour))
	require.NoError(t, err)
	_, err = service.AddCredit(ctx, "user-1", dec("40"), "referral", time.Time{})
	require.NoError(t, err)

	balance, err := service.UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, dec("140").Equal(balance))

	*now = testNow.Add(48 * time.Hour)
	balance, err = service.UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(balance))
	assert.Equal(t, EventCreditsExpired, eventStore.EventTypes()[2])

	w, err := service.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, w.Credits, 1)

	// nothing left to prune, no new event
	_, err = service.UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, eventStore.AppendCalls, 3)
}

func TestService_AddCredit_InvalidAmount(t *testing.T) {
	service, _, _ := newTestWalletService()

	_, err := service.AddCredit(context.Background(), "user-1", dec("0"), "promo", time.Time{})

	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// ============================================
// Debit / Refund Tests
// ============================================

func TestService_Debit_SoonestExpiringFirst(t *testing.T) {
	service, eventStore, _ := newTestWalletService()
	ctx := context.Background()
	_, _ = service.AddCredit(ctx, "user-1", dec("50"), "forever", time.Time{})
	_, _ = service.AddCredit(ctx, "user-1", dec("30"), "late", testNow.Add(72*time.Hour))
	_, _ = service.AddCredit(ctx, "user-1", dec("20"), "soon", testNow.Add(time.Hour))

	require.NoError(t, service.Debit(ctx, "user-1", "order-1", dec("35")))

	last := eventStore.AppendCalls[len(eventStore.AppendCalls)-1]
	debit, ok := last.Data.(CreditDebited)
	require.True(t, ok)
	require.Len(t, debit.Allocations, 2)
	assert.True(t, dec("20").Equal(debit.Allocations[0].Amount))
	assert.True(t, dec("15").Equal(debit.Allocations[1].Amount))

	balance, err := service.UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, dec("65").Equal(balance))
}

func TestService_Debit_Errors(t *testing.T) {
	service, _, _ := newTestWalletService()
	ctx := context.Background()
	_, _ = service.AddCredit(ctx, "user-1", dec("10"), "promo", time.Time{})

	assert.ErrorIs(t, service.Debit(ctx, "user-1", "order-1", dec("-1")), ErrInvalidAmount)
	assert.ErrorIs(t, service.Debit(ctx, "user-1", "order-1", dec("10.01")), ErrInsufficientBalance)

	require.NoError(t, service.Debit(ctx, "user-1", "order-1", dec("10")))
	assert.ErrorIs(t, service.Debit(ctx, "user-1", "order-1", dec("1")), ErrAlreadyDebited)
}

func TestService_Refund_RestoresCredits(t *testing.T) {
	service, _, _ := newTestWalletService()
	ctx := context.Background()
	_, _ = service.AddCredit(ctx, "user-1", dec("25"), "promo", testNow.Add(time.Hour))
	require.NoError(t, service.Debit(ctx, "user-1", "order-1", dec("25")))

	require.NoError(t, service.Refund(ctx, "user-1", "order-1"))

	balance, err := service.UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(balance))

	assert.ErrorIs(t, service.Refund(ctx, "user-1", "order-1"), ErrAlreadyRefunded)
	assert.ErrorIs(t, service.Refund(ctx, "user-1", "order-9"), ErrDebitNotFound)
}

func TestService_Debit_StoreFailure(t *testing.T) {
	service, eventStore, _ := newTestWalletService()
	ctx := context.Background()
	_, _ = service.AddCredit(ctx, "user-1", dec("25"), "promo", time.Time{})
	eventStore.AppendErr = errors.New("database unavailable")

	err := service.Debit(ctx, "user-1", "order-1", dec("5"))

	assert.EqualError(t, err, "database unavailable")
}

func TestService_Debit_ConcurrentDebitsCannotOverdraw(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemoryEventStore(nil)
	_, err := NewService(backing).AddCredit(ctx, "user-1", dec("100"), "promo", time.Time{})
	require.NoError(t, err)

	service := NewService(mocks.NewGatedEventStore(backing, 2))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, orderID := range []string{"order-1", "order-2"} {
		i, orderID := i, orderID
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = service.Debit(ctx, "user-1", orderID, dec("100"))
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	balance, err := NewService(backing).UpdateBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), balance.String())
}

func TestService_Debit_RecordsAgainstLoadedVersion(t *testing.T) {
	service, eventStore, _ := newTestWalletService()
	ctx := context.Background()
	_, err := service.AddCredit(ctx, "user-1", dec("40"), "promo", time.Time{})
	require.NoError(t, err)

	require.NoError(t, service.Debit(ctx, "user-1", "order-1", dec("15")))

	require.Len(t, eventStore.AppendCalls, 2)
	assert.Equal(t, 0, eventStore.AppendCalls[0].ExpectedVersion)
	assert.Equal(t, 1, eventStore.AppendCalls[1].ExpectedVersion)
}
