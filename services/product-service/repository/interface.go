package repository

import (
	"context"
	"errors"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// ErrDuplicateProduct is returned when a slug or SKU already exists.
var ErrDuplicateProduct = errors.New("duplicate product")

// ProductRepo persists imported products. Create is called concurrently
// and must be safe for that.
type ProductRepo interface {
	Create(ctx context.Context, product *models.Product) error
	EnsureIndexes(ctx context.Context) error
}

// ImportHistoryRepo keeps a durable summary of finished imports.
type ImportHistoryRepo interface {
	Record(ctx context.Context, run *models.ImportRun) error
	FindByJobID(ctx context.Context, jobID string) (*models.ImportRun, error)
	List(ctx context.Context, filter models.ImportRunFilter) ([]models.ImportRun, int64, error)
}
