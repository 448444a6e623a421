package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// productRepository implements repository.ProductRepository for SQLite.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new SQLite product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

// List returns the stored catalog in checkpoint order.
func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT id, name, category, price, quantity, updated_at, supplier
		FROM products
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var date string
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Quantity, &date, &p.Supplier); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(domain.DateLayout, date); err != nil {
			return nil, fmt.Errorf("product %q has malformed date %q: %w", p.ID, date, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// ReplaceAll swaps the stored catalog in a single transaction.
func (r *productRepository) ReplaceAll(ctx context.Context, products []domain.Product) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
			return fmt.Errorf("failed to clear products: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO products (id, position, name, category, price, quantity, updated_at, supplier)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range products {
			_, err := stmt.ExecContext(ctx,
				p.ID, i, p.Name, p.Category, p.Price, p.Quantity,
				p.UpdatedAt.Format(domain.DateLayout), p.Supplier)
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: product %q", repository.ErrAlreadyExists, p.ID)
				}
				return fmt.Errorf("failed to insert product %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Ensure productRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*productRepository)(nil)
