package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// productRepository implements repository.ProductRepository.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

// List returns the stored catalog in checkpoint order.
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, category, price, quantity, updated_at, supplier
		FROM products
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Quantity, &p.UpdatedAt, &p.Supplier)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

// ReplaceAll swaps the stored catalog in a single transaction using COPY.
func (r *productRepository) ReplaceAll(ctx context.Context, products []domain.Product) error {
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM products`); err != nil {
			return fmt.Errorf("failed to clear products: %w", err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"products"},
			[]string{"id", "position", "name", "category", "price", "quantity", "updated_at", "supplier"},
			pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
				p := products[i]
				return []any{p.ID, i, p.Name, p.Category, p.Price, p.Quantity, p.UpdatedAt, p.Supplier}, nil
			}),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate product id", repository.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert products: %w", err)
		}
		return nil
	})
}

// Ensure productRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*productRepository)(nil)
