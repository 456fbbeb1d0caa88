package flashsale

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ec-storefront/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
)

const activeSalesKey = "active"

// Source lists the flash sales active right now.
type Source interface {
	ActiveSales(ctx context.Context) ([]FlashSale, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]FlashSale, error)

func (f SourceFunc) ActiveSales(ctx context.Context) ([]FlashSale, error) { return f(ctx) }

// Resolver answers eligibility for a cart. It caches the active sale list for
// ttl and fails open when the source errors: checkout is never blocked by a
// flash sale lookup.
type Resolver struct {
	source Source
	cache  *gocache.Cache
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(source Source, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Resolver{
		source: source,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.With("component", "flashsale"),
		now:    time.Now,
	}
}

// Resolve returns the eligibility for productIDs. It never returns an error.
func (r *Resolver) Resolve(ctx context.Context, productIDs []string) Eligibility {
	active, ok := r.Active(ctx)
	if !ok {
		return Open
	}
	return ResolveEligibility(productIDs, active)
}

// Active returns the sales active right now, from the cached or freshly
// fetched list; ok is false when the fetch failed. The cache keeps the list as
// fetched and the time window is checked on every call, so a sale that ends
// while cached stops applying at its end time.
func (r *Resolver) Active(ctx context.Context) ([]FlashSale, bool) {
	sales, ok := r.fetch(ctx)
	if !ok {
		return nil, false
	}

	now := r.now()
	active := make([]FlashSale, 0, len(sales))
	for _, s := range sales {
		if s.IsActive(now) {
			active = append(active, s)
		}
	}
	return active, true
}

func (r *Resolver) fetch(ctx context.Context) ([]FlashSale, bool) {
	if cached, found := r.cache.Get(activeSalesKey); found {
		return cached.([]FlashSale), true
	}

	sales, err := r.source.ActiveSales(ctx)
	if err != nil {
		metrics.FlashSaleFetchFailures.Inc()
		r.logger.WarnContext(ctx, "active flash sales unavailable, allowing coupons and CrashCash", "error", err)
		return nil, false
	}
	r.cache.SetDefault(activeSalesKey, sales)
	return sales, true
}

// Invalidate drops the cached list after an admin change.
func (r *Resolver) Invalidate() {
	r.cache.Delete(activeSalesKey)
}
