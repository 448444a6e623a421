package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// ProductRepository keeps the last checkpoint in memory.
type ProductRepository struct {
	mu       sync.RWMutex
	products []domain.Product
}

// NewProductRepository creates an empty ProductRepository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// List returns every stored product in the order it was written.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.products), nil
}

// ReplaceAll replaces the stored catalog.
func (r *ProductRepository) ReplaceAll(ctx context.Context, products []domain.Product) error {
	stored := slices.Clone(products)

	r.mu.Lock()
	r.products = stored
	r.mu.Unlock()
	return nil
}

// Ensure ProductRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*ProductRepository)(nil)
