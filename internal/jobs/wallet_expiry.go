package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/ec-storefront/internal/readmodel"
	"github.com/shopspring/decimal"
)

type WalletLister interface {
	ListWallets() ([]*readmodel.WalletReadModel, error)
}

type BalanceUpdater interface {
	UpdateBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// WalletExpiry finds wallets holding expired CrashCash in the read model and
// lets the wallet aggregate prune them.
type WalletExpiry struct {
	wallets WalletLister
	updater BalanceUpdater
	logger  *slog.Logger
	now     func() time.Time
}

func NewWalletExpiry(wallets WalletLister, updater BalanceUpdater, logger *slog.Logger) *WalletExpiry {
	return &WalletExpiry{wallets: wallets, updater: updater, logger: logger, now: time.Now}
}

func (j *WalletExpiry) Name() string { return "wallet_expiry" }

func (j *WalletExpiry) Run(ctx context.Context) error {
	wallets, err := j.wallets.ListWallets()
	if err != nil {
		return err
	}

	now := j.now()
	var errs []error
	swept := 0
	for _, w := range wallets {
		if !hasExpired(w, now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := j.updater.UpdateBalance(ctx, w.UserID); err != nil {
			errs = append(errs, err)
			continue
		}
		swept++
	}
	if swept > 0 {
		j.logger.InfoContext(ctx, "expired CrashCash swept", "wallets", swept)
	}
	return errors.Join(errs...)
}

func hasExpired(w *readmodel.WalletReadModel, now time.Time) bool {
	for _, c := range w.Credits {
		if c.Amount.IsPositive() && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
			return true
		}
	}
	return false
}
