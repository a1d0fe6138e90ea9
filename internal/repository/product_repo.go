// internal/repository/product_repo.go
package repository

import (
	"context"

	"finflow-commitments/internal/domain"
)

// ProductRepository defines the interface for the product catalog.
type ProductRepository interface {
	// GetProductByID retrieves an investment product or takaful plan by its ID.
	GetProductByID(ctx context.Context, q DBExecutor, id string) (*domain.Product, error)
}
