// internal/repository/postgres/product_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/repository"
	"finflow-commitments/internal/util"
)

// ProductRepository implements repository.ProductRepository for PostgreSQL.
type ProductRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) repository.ProductRepository {
	return &ProductRepository{}
}

// GetProductByID retrieves a product by its ID using the provided DBExecutor.
func (r *ProductRepository) GetProductByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT id, kind, name, minimum_amount, created_at FROM products WHERE id = $1`
	err := q.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}
