package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/ec-storefront/internal/domain/flashsale"
)

type SaleLister interface {
	ListFlashSales(activeOnly bool) ([]*flashsale.FlashSale, error)
}

type SaleEnder interface {
	End(ctx context.Context, saleID, reason string) error
}

// FlashSaleExpiry records FlashSaleEnded for sales past their end time.
type FlashSaleExpiry struct {
	sales    SaleLister
	ender    SaleEnder
	resolver *flashsale.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

func NewFlashSaleExpiry(sales SaleLister, ender SaleEnder, resolver *flashsale.Resolver, logger *slog.Logger) *FlashSaleExpiry {
	return &FlashSaleExpiry{sales: sales, ender: ender, resolver: resolver, logger: logger, now: time.Now}
}

func (j *FlashSaleExpiry) Name() string { return "flash_sale_expiry" }

func (j *FlashSaleExpiry) Run(ctx context.Context) error {
	sales, err := j.sales.ListFlashSales(false)
	if err != nil {
		return err
	}

	now := j.now()
	var errs []error
	ended := 0
	for _, sale := range sales {
		if sale.Ended || now.Before(sale.EndTime) {
			continue
		}
		err := j.ender.End(ctx, sale.ID, "expired")
		if err != nil && !errors.Is(err, flashsale.ErrSaleEnded) {
			errs = append(errs, err)
			continue
		}
		ended++
		j.logger.InfoContext(ctx, "flash sale expired", "sale_id", sale.ID, "name", sale.Name)
	}
	if ended > 0 && j.resolver != nil {
		j.resolver.Invalidate()
	}
	return errors.Join(errs...)
}
