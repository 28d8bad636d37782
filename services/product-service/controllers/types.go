package controllers

import (
	"context"
	"io"
	"time"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/services"
)

// Default configuration values
const (
	DefaultContextTimeout = 30 * time.Second
	StatusContextTimeout  = 5 * time.Second
)

// ImportStarter is implemented by services.ImportProducer.
type ImportStarter interface {
	StartImport(ctx context.Context, upload io.Reader, filename string) (*models.ImportTicket, error)
}

// JobStatusAPI is implemented by services.JobStatusReporter.
type JobStatusAPI interface {
	GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	GetResult(ctx context.Context, jobID string) (*services.JobView, error)
	History(ctx context.Context, filter models.ImportRunFilter) ([]models.ImportRun, int64, error)
}

// StartImportResponse is the body returned once a job is queued.
type StartImportResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	JobID     string `json:"jobId"`
	TotalRows int    `json:"totalRows"`
}

type HistoryResponse struct {
	Runs     []models.ImportRun `json:"runs"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}
