package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/alert"
	"github.com/prn-tf/stockwarden/internal/catalog"
	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/metrics"
	"github.com/prn-tf/stockwarden/internal/pkg/validation"
	"github.com/prn-tf/stockwarden/internal/report"
)

// InventoryService validates catalog input, applies it to the store and
// forwards quantity changes to the alert engine.
type InventoryService struct {
	store   *catalog.Store
	alerts  *alert.Engine
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(store *catalog.Store, alerts *alert.Engine, m *metrics.Metrics, logger zerolog.Logger) *InventoryService {
	return &InventoryService{
		store:   store,
		alerts:  alerts,
		metrics: m,
		logger:  logger.With().Str("service", "inventory").Logger(),
		now:     time.Now,
	}
}

// Store returns the underlying catalog.
func (s *InventoryService) Store() *catalog.Store {
	return s.store
}

// StockOutput is returned by operations that may change a product's quantity.
type StockOutput struct {
	Product domain.Product

	// Decision is the alert engine's verdict on the new quantity.
	Decision alert.Decision

	// AlertErr is set when an alert was due but could not be delivered.
	// The catalog change stands.
	AlertErr error
}

// =============================================================================
// Add
// =============================================================================

// AddProductInput contains the data needed to add a product.
type AddProductInput struct {
	ID       string  `validate:"required,max=64"`
	Name     string  `validate:"required,max=200"`
	Category string  `validate:"max=100"`
	Price    float64 `validate:"gte=0"`
	Quantity int     `validate:"gte=0"`
	Supplier string  `validate:"max=200"`

	// UpdatedAt is the acquisition date. Zero means today.
	UpdatedAt time.Time
}

// Add inserts a new product.
func (s *InventoryService) Add(ctx context.Context, input AddProductInput) (*StockOutput, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}

	date := input.UpdatedAt
	if date.IsZero() {
		date = s.now()
	}

	p := domain.Product{
		ID:        input.ID,
		Name:      input.Name,
		Category:  input.Category,
		Price:     input.Price,
		Quantity:  input.Quantity,
		UpdatedAt: truncateDay(date),
		Supplier:  input.Supplier,
	}

	err := s.store.Add(p)
	s.metrics.CatalogMutation("add", err)
	if err != nil {
		return nil, err
	}
	s.metrics.CatalogSize(s.store.TotalCount())

	s.logger.Debug().Str("product_id", p.ID).Int("quantity", p.Quantity).Msg("product added")
	return s.checkStock(ctx, p), nil
}

// =============================================================================
// Update
// =============================================================================

// UpdateProductInput contains a partial stock update. Nil fields keep their current value.
type UpdateProductInput struct {
	ID       string   `validate:"required"`
	Price    *float64 `validate:"omitnil,gte=0"`
	Quantity *int     `validate:"omitnil,gte=0"`
}

// Update changes price and/or quantity. A quantity change is checked against
// the alert policy.
func (s *InventoryService) Update(ctx context.Context, input UpdateProductInput) (*StockOutput, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	if input.Price == nil && input.Quantity == nil {
		return nil, ErrEmptyUpdate
	}

	updated, err := s.store.UpdatePartial(input.ID, input.Price, input.Quantity)
	s.metrics.CatalogMutation("update", err)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("product_id", updated.ID).
		Float64("price", updated.Price).
		Int("quantity", updated.Quantity).
		Msg("product updated")

	if input.Quantity == nil {
		return &StockOutput{Product: updated, Decision: alert.NotDue}, nil
	}
	return s.checkStock(ctx, updated), nil
}

// =============================================================================
// Remove / Read
// =============================================================================

// Remove deletes a product.
func (s *InventoryService) Remove(ctx context.Context, id string) error {
	err := s.store.Remove(id)
	s.metrics.CatalogMutation("remove", err)
	if err != nil {
		return err
	}
	s.metrics.CatalogSize(s.store.TotalCount())
	s.logger.Debug().Str("product_id", id).Msg("product removed")
	return nil
}

// Get returns a product by id.
func (s *InventoryService) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.store.Get(id)
}

// List returns all products ordered by the named sort key. An empty key keeps
// catalog order.
func (s *InventoryService) List(ctx context.Context, sortBy string) ([]domain.Product, error) {
	if sortBy == "" {
		return s.store.Snapshot(), nil
	}
	key, err := domain.ParseSortKey(sortBy)
	if err != nil {
		return nil, err
	}
	return s.store.Sorted(key)
}

// SearchByKeyword matches name or supplier.
func (s *InventoryService) SearchByKeyword(ctx context.Context, text string) []domain.Product {
	return s.store.SearchByKeyword(text)
}

// LowStock returns the products inside the alert band, in catalog order.
func (s *InventoryService) LowStock(ctx context.Context) []domain.Product {
	return s.store.Filter(func(p domain.Product) bool {
		return s.alerts.IsLow(p.Quantity)
	})
}

// Summary aggregates the current catalog.
func (s *InventoryService) Summary(ctx context.Context) report.Summary {
	return report.Summarize(s.store.Snapshot(), s.alerts.Threshold(), s.now())
}

func (s *InventoryService) checkStock(ctx context.Context, p domain.Product) *StockOutput {
	out := &StockOutput{Product: p}
	out.Decision, out.AlertErr = s.alerts.Check(ctx, p)
	if out.AlertErr != nil {
		s.logger.Warn().Err(out.AlertErr).Str("product_id", p.ID).Msg("stock alert failed")
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
