package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	apperrors "github.com/samirvithlani/mayaa-backend/services/common/errors"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UploadArchiver keeps a copy of each uploaded workbook.
type UploadArchiver interface {
	Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error)
}

// ImportProducer turns an uploaded workbook into a queued import job.
type ImportProducer struct {
	queue      queue.Producer
	stagingDir string
	archiver   UploadArchiver
	metrics    Metrics
	now        func() time.Time
}

type ProducerOption func(*ImportProducer)

// WithArchiver enables best-effort archival of uploads.
func WithArchiver(a UploadArchiver) ProducerOption {
	return func(p *ImportProducer) { p.archiver = a }
}

func WithProducerMetrics(m Metrics) ProducerOption {
	return func(p *ImportProducer) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewImportProducer stages uploads under stagingDir; empty means os.TempDir.
func NewImportProducer(q queue.Producer, stagingDir string, opts ...ProducerOption) *ImportProducer {
	p := &ImportProducer{
		queue:      q,
		stagingDir: stagingDir,
		metrics:    (*awspkg.MetricsClient)(nil),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartImport stages and parses the upload, then enqueues one
// import-products task carrying every row. The staged copy is removed on
// every path.
func (p *ImportProducer) StartImport(ctx context.Context, upload io.Reader, filename string) (*models.ImportTicket, error) {
	if upload == nil {
		return nil, apperrors.ErrFileRequired
	}

	staged, err := p.stage(upload)
	if staged != nil {
		defer func() {
			staged.Close()
			if rmErr := os.Remove(staged.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				zap.L().Warn("failed to remove staged upload", zap.String("path", staged.Name()), zap.Error(rmErr))
			}
		}()
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.Wrap(err)
	}

	info, err := staged.Stat()
	if err != nil {
		return nil, apperrors.ErrInternalServer.Wrap(err)
	}
	if info.Size() == 0 {
		return nil, apperrors.ErrEmptyFile
	}

	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return nil, apperrors.ErrInternalServer.Wrap(err)
	}
	rows, err := ParseWorkbook(staged)
	if err != nil {
		return nil, apperrors.ErrInvalidWorkbook.Wrap(err)
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrEmptyFile
	}

	p.archive(ctx, staged, filename)

	jobID, err := p.queue.Add(ctx, models.TaskImportProducts, models.ImportTask{Rows: rows})
	if err != nil {
		zap.L().Error("failed to enqueue import", zap.Error(err))
		return nil, apperrors.ErrQueueImport.Wrap(err)
	}
	_ = p.metrics.RecordCount(ctx, awspkg.MetricImportJobsQueued, map[string]string{"Task": models.TaskImportProducts})

	zap.L().Info("import job queued",
		zap.String("job_id", jobID),
		zap.String("filename", filename),
		zap.Int("rows", len(rows)),
	)
	return &models.ImportTicket{JobID: jobID, TotalRows: len(rows)}, nil
}

func (p *ImportProducer) stage(upload io.Reader) (*os.File, error) {
	dir := p.stagingDir
	if dir == "" {
		dir = os.TempDir()
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "import-*.xlsx")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(f, upload); err != nil {
		return f, fmt.Errorf("stage upload: %w", err)
	}
	return f, nil
}

func (p *ImportProducer) archive(ctx context.Context, staged *os.File, filename string) {
	if p.archiver == nil {
		return
	}
	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		zap.L().Warn("failed to rewind upload for archive", zap.Error(err))
		return
	}
	name := fmt.Sprintf("%s/%s", p.now().Format("2006/01/02"), filepath.Base(staged.Name()))
	if filename != "" {
		name = fmt.Sprintf("%s/%d-%s", p.now().Format("2006/01/02"), p.now().UnixNano(), filepath.Base(filename))
	}
	location, err := p.archiver.Upload(ctx, name, staged, xlsxContentType)
	if err != nil {
		zap.L().Warn("failed to archive upload", zap.String("filename", filename), zap.Error(err))
		return
	}
	zap.L().Debug("upload archived", zap.String("location", location))
}
