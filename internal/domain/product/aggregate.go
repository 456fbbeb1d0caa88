package product

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/domain/aggregate"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Product"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidStock    = errors.New("stock must not be negative")
)

type Product struct {
	aggregate.Base
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsDeleted   bool            `json:"is_deleted,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var data ProductCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.ProductID
		p.Name = data.Name
		p.Description = data.Description
		p.Price = data.Price
		p.Stock = data.Stock
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt
	case EventProductUpdated:
		var data ProductUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Name = data.Name
		p.Description = data.Description
		p.Price = data.Price
		p.Stock = data.Stock
		p.UpdatedAt = data.UpdatedAt
	case EventProductDeleted:
		p.IsDeleted = true
	}
	p.Advance(event)
	return nil
}

type Details struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

func (d Details) validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return ErrInvalidName
	case !d.Price.IsPositive():
		return ErrInvalidPrice
	case d.Stock < 0:
		return ErrInvalidStock
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Create(ctx context.Context, d Details) (*Product, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	p := &Product{Base: aggregate.Base{ID: uuid.New().String()}}
	err := aggregate.Record(ctx, s.eventStore, p, AggregateType, EventProductCreated, ProductCreated{
		ProductID:   p.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, productID string, d Details) error {
	if err := d.validate(); err != nil {
		return err
	}
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	return aggregate.Record(ctx, s.eventStore, p, AggregateType, EventProductUpdated, ProductUpdated{
		ProductID:   productID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		UpdatedAt:   time.Now().UTC(),
	})
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	return aggregate.Record(ctx, s.eventStore, p, AggregateType, EventProductDeleted, ProductDeleted{
		ProductID: productID,
		DeletedAt: time.Now().UTC(),
	})
}

// Get loads a live product; deleted products are not found.
func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	p, found, err := aggregate.Load(ctx, s.eventStore, productID, func() *Product { return &Product{} })
	if err != nil {
		return nil, err
	}
	if !found || p.IsDeleted {
		return nil, ErrProductNotFound
	}
	return p, nil
}
