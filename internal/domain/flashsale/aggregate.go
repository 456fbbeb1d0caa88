package flashsale

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "FlashSale"

var (
	ErrSaleNotFound     = errors.New("flash sale not found")
	ErrSaleEnded        = errors.New("flash sale already ended")
	ErrNoProducts       = errors.New("flash sale must cover at least one product")
	ErrInvalidDiscount  = errors.New("discount must be greater than 0 and at most 100 percent")
	ErrInvalidSaleTimes = errors.New("end time must be after start time")
)

// Sale is the event-sourced flash sale.
type Sale struct {
	aggregate.Base
	Name           string          `json:"name"`
	Products       []string        `json:"products"`
	Discount       decimal.Decimal `json:"discount"`
	AllowCoupons   *bool           `json:"allow_coupons,omitempty"`
	AllowCrashCash *bool           `json:"allow_crash_cash,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        time.Time       `json:"end_time"`
	Ended          bool            `json:"ended"`
}

func (s *Sale) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventFlashSaleCreated:
		var data FlashSaleCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		s.ID = data.SaleID
		s.Name = data.Name
		s.Products = data.Products
		s.Discount = data.Discount
		s.AllowCoupons = data.AllowCoupons
		s.AllowCrashCash = data.AllowCrashCash
		s.StartTime = data.StartTime
		s.EndTime = data.EndTime
	case EventFlashSaleEnded:
		s.Ended = true
	}
	s.Advance(event)
	return nil
}

// View converts the aggregate to the shared read shape.
func (s *Sale) View() FlashSale {
	return FlashSale{
		ID:             s.ID,
		Name:           s.Name,
		Products:       s.Products,
		Discount:       s.Discount,
		AllowCoupons:   s.AllowCoupons,
		AllowCrashCash: s.AllowCrashCash,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Ended:          s.Ended,
	}
}

type CreateInput struct {
	Name           string
	Products       []string
	Discount       decimal.Decimal
	AllowCoupons   *bool
	AllowCrashCash *bool
	StartTime      time.Time
	EndTime        time.Time
}

type Service struct {
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Sale, error) {
	if len(in.Products) == 0 {
		return nil, ErrNoProducts
	}
	if !in.Discount.IsPositive() || in.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidDiscount
	}
	now := s.now().UTC()
	if in.StartTime.IsZero() {
		in.StartTime = now
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, ErrInvalidSaleTimes
	}

	sale := &Sale{Base: aggregate.Base{ID: uuid.New().String()}}
	err := aggregate.Record(ctx, s.eventStore, sale, AggregateType, EventFlashSaleCreated, FlashSaleCreated{
		SaleID:         sale.ID,
		Name:           in.Name,
		Products:       in.Products,
		Discount:       in.Discount,
		AllowCoupons:   in.AllowCoupons,
		AllowCrashCash: in.AllowCrashCash,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// End closes a sale early or on expiry.
func (s *Service) End(ctx context.Context, saleID, reason string) error {
	sale, err := s.load(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Ended {
		return ErrSaleEnded
	}
	return aggregate.Record(ctx, s.eventStore, sale, AggregateType, EventFlashSaleEnded, FlashSaleEnded{
		SaleID:  saleID,
		Reason:  reason,
		EndedAt: s.now().UTC(),
	})
}

func (s *Service) Get(ctx context.Context, saleID string) (*Sale, error) {
	return s.load(ctx, saleID)
}

func (s *Service) load(ctx context.Context, saleID string) (*Sale, error) {
	sale, found, err := aggregate.Load(ctx, s.eventStore, saleID, func() *Sale { return &Sale{} })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}
