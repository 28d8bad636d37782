package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

var ErrImportRunNotFound = errors.New("import run not found")

// GormImportHistoryRepository implements ImportHistoryRepo using GORM.
type GormImportHistoryRepository struct {
	db *gorm.DB
}

func NewGormImportHistoryRepository(db *gorm.DB) *GormImportHistoryRepository {
	return &GormImportHistoryRepository{db: db}
}

// Record upserts by job id so a redelivered job does not add a second row.
func (r *GormImportHistoryRepository) Record(ctx context.Context, run *models.ImportRun) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "total_rows", "total_products", "success_count",
				"failed_count", "rejected_rows", "error", "started_at", "finished_at",
			}),
		}).
		Create(run).Error
}

func (r *GormImportHistoryRepository) FindByJobID(ctx context.Context, jobID string) (*models.ImportRun, error) {
	var run models.ImportRun
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImportRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *GormImportHistoryRepository) List(ctx context.Context, filter models.ImportRunFilter) ([]models.ImportRun, int64, error) {
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := r.db.WithContext(ctx).Model(&models.ImportRun{})
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.ImportRun
	if err := query.
		Order("finished_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
