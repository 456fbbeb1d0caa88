package bootstrap

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/coupon"
	"github.com/example/ec-storefront/internal/domain/flashsale"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/wallet"
	"github.com/example/ec-storefront/internal/jobs"
	"github.com/example/ec-storefront/internal/query"
)

// Services is the command and query side built over a set of Stores.
type Services struct {
	Commands   *command.Handler
	Queries    *query.Handler
	Resolver   *flashsale.Resolver
	Checkout   *checkout.Service
	Wallets    *wallet.Service
	FlashSales *flashsale.Service
}

// NewServices wires the domain services. Active flash sales come from
// FLASH_SALE_SOURCE_URL when set, otherwise from the local read model.
func NewServices(s *Stores, cfg *config.Config, logger *slog.Logger) *Services {
	queries := query.NewHandler(s.Read)

	var source flashsale.Source = queries
	if cfg.FlashSaleSourceURL != "" {
		source = flashsale.NewHTTPSource(cfg.FlashSaleSourceURL, cfg.FlashSaleSourceKey, &http.Client{Timeout: 5 * time.Second})
	}
	resolver := flashsale.NewResolver(source, cfg.FlashSaleCacheTTL, logger)

	productSvc := product.NewService(s.Events)
	cartSvc := cart.NewService(s.Events)
	orderSvc := order.NewService(s.Events)
	couponSvc := coupon.NewService(s.Events)
	walletSvc := wallet.NewService(s.Events)
	flashSaleSvc := flashsale.NewService(s.Events)
	checkoutSvc := checkout.NewService(cartSvc, couponSvc, walletSvc, orderSvc, resolver, logger)

	return &Services{
		Commands:   command.NewHandler(productSvc, cartSvc, orderSvc, couponSvc, walletSvc, flashSaleSvc, checkoutSvc, resolver, logger),
		Queries:    queries,
		Resolver:   resolver,
		Checkout:   checkoutSvc,
		Wallets:    walletSvc,
		FlashSales: flashSaleSvc,
	}
}

// Scheduler registers the CrashCash and flash sale expiry sweeps.
func (svc *Services) Scheduler(cfg *config.Config, logger *slog.Logger) (*jobs.Scheduler, error) {
	scheduler := jobs.NewScheduler(logger)
	if _, err := scheduler.Register(cfg.CronWalletExpiry, jobs.NewWalletExpiry(svc.Queries, svc.Wallets, logger)); err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.CronFlashSaleExpiry, jobs.NewFlashSaleExpiry(svc.Queries, svc.FlashSales, svc.Resolver, logger)); err != nil {
		return nil, err
	}
	return scheduler, nil
}
