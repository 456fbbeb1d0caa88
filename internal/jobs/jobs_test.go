package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/infrastructure/store/mocks"
	"github.com/example/ec-storefront/internal/query"
	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

// ============================================
// Scheduler Tests
// ============================================

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler(discardLogger())
	job := funcJob{name: "noop", run: func(context.Context) error { return nil }}

	_, err := s.Register("", job)
	assert.Error(t, err)

	_, err = s.Register("@every 1m", nil)
	assert.Error(t, err)

	_, err = s.Register("not a spec", job)
	assert.Error(t, err)

	_, err = s.Register("*/30 * * * * *", job)
	assert.NoError(t, err)

	_, err = s.Register("@every 15m", job)
	assert.NoError(t, err)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(discardLogger())
	ran := make(chan struct{}, 1)
	_, err := s.Register("@every 1s", funcJob{name: "tick", run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

// ============================================
// Wallet Expiry Tests
// ============================================

type failingUpdater struct{}

func (failingUpdater) UpdateBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("store unavailable")
}

func TestWalletExpiry_PrunesOnlyWalletsWithExpiredCredit(t *testing.T) {
	ctx := context.Background()
	eventStore := mocks.NewMockEventStore()
	readStore := mocks.NewMockReadStore()
	wallets := wallet.NewService(eventStore)

	past := time.Now().Add(-time.Hour)
	_, err := wallets.AddCredit(ctx, "user-1", dec("10"), "promo", past)
	require.NoError(t, err)
	_, err = wallets.AddCredit(ctx, "user-2", dec("10"), "promo", time.Now().Add(time.Hour))
	require.NoError(t, err)

	readStore.SetData(readmodel.Wallets, "user-1", &readmodel.WalletReadModel{
		UserID:  "user-1",
		Credits: []readmodel.CreditReadModel{{ID: "c1", Amount: dec("10"), ExpiresAt: past}},
	})
	readStore.SetData(readmodel.Wallets, "user-2", &readmodel.WalletReadModel{
		UserID:  "user-2",
		Credits: []readmodel.CreditReadModel{{ID: "c2", Amount: dec("10"), ExpiresAt: time.Now().Add(time.Hour)}},
	})

	job := NewWalletExpiry(query.NewHandler(readStore), wallets, discardLogger())
	require.NoError(t, job.Run(ctx))

	expired := 0
	for _, call := range eventStore.AppendCalls {
		if call.EventType == wallet.EventCreditsExpired {
			expired++
			assert.Equal(t, wallet.WalletID("user-1"), call.AggregateID)
		}
	}
	assert.Equal(t, 1, expired)
}

func TestWalletExpiry_CollectsErrors(t *testing.T) {
	readStore := mocks.NewMockReadStore()
	readStore.SetData(readmodel.Wallets, "user-1", &readmodel.WalletReadModel{
		UserID:  "user-1",
		Credits: []readmodel.CreditReadModel{{ID: "c1", Amount: dec("1"), ExpiresAt: time.Now().Add(-time.Minute)}},
	})

	job := NewWalletExpiry(query.NewHandler(readStore), failingUpdater{}, discardLogger())

	assert.ErrorContains(t, job.Run(context.Background()), "store unavailable")
}

// ============================================
// Flash Sale Expiry Tests
// ============================================

func TestFlashSaleExpiry_EndsOverdueSales(t *testing.T) {
	ctx := context.Background()
	eventStore := mocks.NewMockEventStore()
	readStore := mocks.NewMockReadStore()
	sales := flashsale.NewService(eventStore)

	start := time.Now().Add(-2 * time.Hour)
	overdue, err := sales.Create(ctx, flashsale.CreateInput{
		Name: "Morning", Products: []string{"p1"}, Discount: dec("10"),
		StartTime: start, EndTime: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	running, err := sales.Create(ctx, flashsale.CreateInput{
		Name: "Evening", Products: []string{"p2"}, Discount: dec("10"),
		StartTime: start, EndTime: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	readStore.SetData(readmodel.FlashSales, overdue.ID, &flashsale.FlashSale{ID: overdue.ID, EndTime: time.Now().Add(-time.Minute)})
	readStore.SetData(readmodel.FlashSales, running.ID, &flashsale.FlashSale{ID: running.ID, EndTime: time.Now().Add(time.Hour)})

	resolver := flashsale.NewResolver(flashsale.SourceFunc(func(context.Context) ([]flashsale.FlashSale, error) {
		return nil, nil
	}), time.Minute, discardLogger())
	job := NewFlashSaleExpiry(query.NewHandler(readStore), sales, resolver, discardLogger())

	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx), "second run sees the sale already ended on the write side")

	ended, err := sales.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, ended.Ended)
	still, err := sales.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.False(t, still.Ended)
}
