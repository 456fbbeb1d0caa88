package coupon

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

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestCouponService() (*Service, *mocks.MockEventStore) {
	eventStore := mocks.NewMockEventStore()
	return NewService(eventStore), eventStore
}

func seedCoupon(t *testing.T, s *Service, in CreateInput) {
	t.Helper()
	_, err := s.Create(context.Background(), in)
	require.NoError(t, err)
}

// ============================================
// Create Tests
// ============================================

func TestService_Create_NormalizesCode(t *testing.T) {
	service, eventStore := newTestCouponService()

	c, err := service.Create(context.Background(), CreateInput{Code: " save10 ", Type: TypePercentage, Value: dec("10")})

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.Code)
	assert.Equal(t, "coupon-SAVE10", c.ID)
	assert.True(t, c.Active)
	assert.Equal(t, AggregateType, eventStore.AppendCalls[0].AggregateType)
}

func TestService_Create_Validation(t *testing.T) {
	service, _ := newTestCouponService()
	ctx := context.Background()

	_, err := service.Create(ctx, CreateInput{Code: "", Type: TypeFlat, Value: dec("5")})
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = service.Create(ctx, CreateInput{Code: "X", Type: "BOGO", Value: dec("5")})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = service.Create(ctx, CreateInput{Code: "X", Type: TypePercentage, Value: dec("150")})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = service.Create(ctx, CreateInput{Code: "X", Type: TypeFlat, Value: dec("0")})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestService_Create_DuplicateActiveCode(t *testing.T) {
	service, _ := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "DUP", Type: TypeFlat, Value: dec("5")})

	_, err := service.Create(context.Background(), CreateInput{Code: "dup", Type: TypeFlat, Value: dec("7")})

	assert.ErrorIs(t, err, ErrCouponExists)
}

// ============================================
// Validate Tests
// ============================================

func TestService_Validate_Percentage(t *testing.T) {
	service, _ := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "TENOFF", Type: TypePercentage, Value: dec("10"), MaxDiscount: dec("50")})
	ctx := context.Background()

	res, err := service.Validate(ctx, "tenoff", dec("200"))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, dec("20").Equal(res.Discount))
	assert.Equal(t, &Summary{Code: "TENOFF", Type: TypePercentage}, res.Coupon)

	capped, err := service.Validate(ctx, "TENOFF", dec("1000"))
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(capped.Discount))
}

func TestService_Validate_FlatNeverExceedsSubtotal(t *testing.T) {
	service, _ := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "FLAT100", Type: TypeFlat, Value: dec("100")})

	res, err := service.Validate(context.Background(), "FLAT100", dec("60"))

	require.NoError(t, err)
	assert.True(t, dec("60").Equal(res.Discount))
}

func TestService_Validate_Rejections(t *testing.T) {
	service, _ := newTestCouponService()
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }
	seedCoupon(t, service, CreateInput{Code: "MIN500", Type: TypeFlat, Value: dec("50"), MinOrder: dec("500")})
	seedCoupon(t, service, CreateInput{Code: "OLD", Type: TypeFlat, Value: dec("50"), ExpiresAt: now.Add(-time.Hour)})
	ctx := context.Background()

	tests := []struct {
		code    string
		message string
	}{
		{"NOPE", "Invalid coupon code"},
		{"", "Invalid coupon code"},
		{"MIN500", "Minimum order of 500.00 required"},
		{"OLD", "Coupon has expired"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			res, err := service.Validate(ctx, tt.code, dec("100"))
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.True(t, res.Discount.IsZero())
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

// ============================================
// Redeem Tests
// ============================================

func TestService_Redeem_UsageLimit(t *testing.T) {
	service, eventStore := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "ONCE", Type: TypeFlat, Value: dec("5"), UsageLimit: 1})
	ctx := context.Background()

	require.NoError(t, service.Redeem(ctx, "once", "order-1"))
	err := service.Redeem(ctx, "ONCE", "order-2")

	assert.ErrorIs(t, err, ErrCouponUnavailable)
	assert.Equal(t, []string{EventCouponCreated, EventCouponRedeemed}, eventStore.EventTypes())

	res, err := service.Validate(ctx, "ONCE", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "Coupon usage limit reached", res.Message)
}

func TestService_Redeem_NotFound(t *testing.T) {
	service, _ := newTestCouponService()

	assert.ErrorIs(t, service.Redeem(context.Background(), "GHOST", "order-1"), ErrCouponNotFound)
}

func TestService_Redeem_SameOrderTwiceCountsOnce(t *testing.T) {
	service, eventStore := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "TWICE", Type: TypeFlat, Value: dec("5"), UsageLimit: 2})
	ctx := context.Background()

	require.NoError(t, service.Redeem(ctx, "TWICE", "order-1"))
	require.NoError(t, service.Redeem(ctx, "TWICE", "order-1"))

	assert.Equal(t, []string{EventCouponCreated, EventCouponRedeemed}, eventStore.EventTypes())
}

func TestService_Release_ReturnsTheUse(t *testing.T) {
	service, _ := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "ONCE", Type: TypeFlat, Value: dec("5"), UsageLimit: 1})
	ctx := context.Background()

	require.NoError(t, service.Redeem(ctx, "ONCE", "order-1"))
	require.NoError(t, service.Release(ctx, "once", "order-1"))
	assert.ErrorIs(t, service.Release(ctx, "ONCE", "order-1"), ErrNotRedeemed)
	assert.ErrorIs(t, service.Release(ctx, "GHOST", "order-1"), ErrCouponNotFound)

	require.NoError(t, service.Redeem(ctx, "ONCE", "order-2"))
	res, err := service.Validate(ctx, "ONCE", dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "Coupon usage limit reached", res.Message)
}

func TestService_Redeem_ConcurrentOrdersRespectUsageLimit(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemoryEventStore(nil)
	seedCoupon(t, NewService(backing), CreateInput{Code: "LAST1", Type: TypeFlat, Value: dec("5"), UsageLimit: 1})

	service := NewService(mocks.NewGatedEventStore(backing, 2))
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, orderID := range []string{"order-1", "order-2"} {
		i, orderID := i, orderID
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = service.Redeem(ctx, "LAST1", orderID)
		}()
	}
	wg.Wait()

	var redeemed, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			redeemed++
		case errors.Is(err, ErrCouponUnavailable):
			refused++
		default:
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	assert.Equal(t, 1, redeemed)
	assert.Equal(t, 1, refused)

	c, found, err := NewService(backing).load(ctx, "LAST1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, c.UsedCount)
}

func TestService_Deactivate(t *testing.T) {
	service, _ := newTestCouponService()
	seedCoupon(t, service, CreateInput{Code: "BYE", Type: TypeFlat, Value: dec("5")})
	ctx := context.Background()

	require.NoError(t, service.Deactivate(ctx, "BYE"))

	res, err := service.Validate(ctx, "BYE", dec("10"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Coupon is no longer active", res.Message)

	// the code can be reissued once inactive
	_, err = service.Create(ctx, CreateInput{Code: "BYE", Type: TypeFlat, Value: dec("8")})
	assert.NoError(t, err)
}
