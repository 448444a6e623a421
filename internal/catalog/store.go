// Package catalog provides the in-memory product catalog.
// The Store is the source of truth during a session; persistence layers hydrate
// it at startup and receive snapshots at checkpoints.
package catalog

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/prn-tf/stockwarden/internal/domain"
)

// Store is a concurrency-safe keyed collection of products.
// Writes are serialized globally; reads share a lock and always observe a
// complete mutation. Iteration follows insertion order.
type Store struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	order    []string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]*domain.Product),
	}
}

// Add inserts a product. Fails with ErrDuplicateKey if the id exists.
func (s *Store) Add(p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; exists {
		return domain.NewDomainError(domain.ErrDuplicateKey, "product already exists", p.ID)
	}

	stored := p
	s.products[p.ID] = &stored
	s.order = append(s.order, p.ID)
	return nil
}

// Get returns a copy of the product with the given id.
func (s *Store) Get(id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NewDomainError(domain.ErrNotFound, "product not found", id)
	}
	return *p, nil
}

// Search is a point lookup with the same contract as Get.
func (s *Store) Search(id string) (domain.Product, error) {
	return s.Get(id)
}

// Update sets price and quantity in place and returns the resulting snapshot.
func (s *Store) Update(id string, price float64, quantity int) (domain.Product, error) {
	if err := domain.ValidateStock(price, quantity); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NewDomainError(domain.ErrNotFound, "product not found", id)
	}
	p.Price = price
	p.Quantity = quantity
	return *p, nil
}

// UpdatePartial sets whichever of price and quantity is non-nil, keeping the
// other field, in a single step under the write lock.
func (s *Store) UpdatePartial(id string, price *float64, quantity *int) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NewDomainError(domain.ErrNotFound, "product not found", id)
	}

	newPrice, newQuantity := p.Price, p.Quantity
	if price != nil {
		newPrice = *price
	}
	if quantity != nil {
		newQuantity = *quantity
	}
	if err := domain.ValidateStock(newPrice, newQuantity); err != nil {
		return domain.Product{}, err
	}

	p.Price = newPrice
	p.Quantity = newQuantity
	return *p, nil
}

// Remove deletes the product with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.NewDomainError(domain.ErrNotFound, "product not found", id)
	}
	delete(s.products, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// Replace swaps the whole collection atomically. Used to hydrate from persistence.
// Fails without modifying the store if products contain a duplicate or invalid entry.
func (s *Store) Replace(products []domain.Product) error {
	next := make(map[string]*domain.Product, len(products))
	order := make([]string, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("product %q: %w", p.ID, err)
		}
		if _, exists := next[p.ID]; exists {
			return domain.NewDomainError(domain.ErrDuplicateKey, "duplicate product in batch", p.ID)
		}
		stored := p
		next[p.ID] = &stored
		order = append(order, p.ID)
	}

	s.mu.Lock()
	s.products = next
	s.order = order
	s.mu.Unlock()
	return nil
}

// Snapshot returns an owned copy of every product in iteration order.
func (s *Store) Snapshot() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.products[id])
	}
	return out
}

// List returns a lazy sequence over all products. Each range over the sequence
// takes a fresh snapshot, so the sequence can be restarted.
func (s *Store) List() iter.Seq[domain.Product] {
	return func(yield func(domain.Product) bool) {
		for _, p := range s.Snapshot() {
			if !yield(p) {
				return
			}
		}
	}
}

// Sorted returns all products ordered ascending by key. Ties keep iteration order.
func (s *Store) Sorted(key domain.SortKey) ([]domain.Product, error) {
	compare, err := Comparator(key)
	if err != nil {
		return nil, err
	}
	return s.SortedFunc(compare), nil
}

// SortedFunc returns all products ordered by compare. The sort is stable.
func (s *Store) SortedFunc(compare func(a, b domain.Product) int) []domain.Product {
	products := s.Snapshot()
	slices.SortStableFunc(products, compare)
	return products
}

// Filter returns the products matching keep, in iteration order.
func (s *Store) Filter(keep func(domain.Product) bool) []domain.Product {
	var out []domain.Product
	for p := range s.List() {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// SearchByKeyword matches text case-insensitively against name or supplier.
// A blank query yields an empty result.
func (s *Store) SearchByKeyword(text string) []domain.Product {
	keyword := strings.ToLower(strings.TrimSpace(text))
	if keyword == "" {
		return []domain.Product{}
	}
	matches := s.Filter(func(p domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), keyword) ||
			strings.Contains(strings.ToLower(p.Supplier), keyword)
	})
	if matches == nil {
		return []domain.Product{}
	}
	return matches
}

// TotalCount returns the number of products.
func (s *Store) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// TotalQuantity sums quantity across all products.
func (s *Store) TotalQuantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, p := range s.products {
		total += p.Quantity
	}
	return total
}

// TotalValue sums price*quantity across all products.
func (s *Store) TotalValue() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, id := range s.order {
		total += s.products[id].Value()
	}
	return total
}

// Comparator returns the ascending comparator for key.
func Comparator(key domain.SortKey) (func(a, b domain.Product) int, error) {
	switch key {
	case domain.SortByID:
		return func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) }, nil
	case domain.SortByName:
		return func(a, b domain.Product) int { return cmp.Compare(a.Name, b.Name) }, nil
	case domain.SortByCategory:
		return func(a, b domain.Product) int { return cmp.Compare(a.Category, b.Category) }, nil
	case domain.SortByPrice:
		return func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) }, nil
	case domain.SortByQuantity:
		return func(a, b domain.Product) int { return cmp.Compare(a.Quantity, b.Quantity) }, nil
	}
	return nil, fmt.Errorf("%w: unknown sort key %q", domain.ErrInvalidArgument, key)
}
