package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/product-service/events"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
	"github.com/samirvithlani/mayaa-backend/services/product-service/repository"
)

const DefaultBatchSize = 100

// Metrics is the slice of awspkg.MetricsClient the worker reports to.
type Metrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

type WorkerConfig struct {
	BatchSize int
	// Concurrency is the number of jobs this process runs at once.
	Concurrency       int
	HeartbeatInterval time.Duration
	StalledInterval   time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = queue.DefaultLockTTL / 3
	}
	if c.StalledInterval <= 0 {
		c.StalledInterval = queue.DefaultLockTTL
	}
	return c
}

// ImportWorker consumes import-products jobs: it groups rows into products,
// persists them batch by batch and records the outcome on the job.
type ImportWorker struct {
	queue    queue.Consumer
	repo     repository.ProductRepo
	validate *validator.Validate
	cfg      WorkerConfig

	metrics Metrics
	events  events.Publisher
	cache   CacheInvalidator
	history repository.ImportHistoryRepo

	now func() time.Time
}

type WorkerOption func(*ImportWorker)

func WithMetrics(m Metrics) WorkerOption {
	return func(w *ImportWorker) {
		if m != nil {
			w.metrics = m
		}
	}
}

func WithEvents(p events.Publisher) WorkerOption {
	return func(w *ImportWorker) {
		if p != nil {
			w.events = p
		}
	}
}

func WithCache(c CacheInvalidator) WorkerOption {
	return func(w *ImportWorker) {
		if c != nil {
			w.cache = c
		}
	}
}

func WithHistory(h repository.ImportHistoryRepo) WorkerOption {
	return func(w *ImportWorker) { w.history = h }
}

func NewImportWorker(q queue.Consumer, repo repository.ProductRepo, cfg WorkerConfig, opts ...WorkerOption) *ImportWorker {
	w := &ImportWorker{
		queue:    q,
		repo:     repo,
		validate: validator.New(),
		cfg:      cfg.withDefaults(),
		metrics:  (*awspkg.MetricsClient)(nil),
		events:   events.NopPublisher{},
		cache:    nopCache{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Progress is the completion percentage after processed of total rows.
// An empty import is complete.
func Progress(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	p := float64(processed) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Process runs one job to completion. Per-product failures are collected in
// the result and never fail the job; an error is returned only when the job
// itself cannot be processed.
func (w *ImportWorker) Process(ctx context.Context, job *models.ImportJob) (*models.ImportResult, error) {
	if job.Name != models.TaskImportProducts {
		return nil, fmt.Errorf("unsupported task %q", job.Name)
	}
	log := zap.L().With(zap.String("job_id", job.ID))

	grouping := GroupRows(job.Data.Rows)
	for _, warn := range grouping.Warnings() {
		log.Warn("import cell ignored", zap.String("detail", warn))
	}

	result := &models.ImportResult{
		TotalProducts: grouping.Len(),
		Failed:        []models.FailedProduct{},
		RejectedRows:  grouping.Rejected(),
	}
	totalRows := grouping.TotalRows()
	// rejected rows never reach a batch; count them as handled up front
	processedRows := len(result.RejectedRows)
	if n := len(result.RejectedRows); n > 0 {
		log.Warn("import rows rejected", zap.Int("count", n))
		_ = w.metrics.RecordValue(ctx, awspkg.MetricImportRowsRejected, float64(n), nil)
	}

	drafts := grouping.Drafts()
	for start := 0; start < len(drafts); start += w.cfg.BatchSize {
		end := min(start+w.cfg.BatchSize, len(drafts))
		batch := drafts[start:end]

		outcomes := w.persistBatch(ctx, batch)
		for i, o := range outcomes {
			processedRows += batch[i].RowCount
			if o.Err != nil {
				result.FailedCount++
				result.Failed = append(result.Failed, models.FailedProduct{
					ProductKey: o.Key,
					Error:      o.Err.Error(),
				})
				log.Warn("product import failed", zap.String("product_key", o.Key), zap.Error(o.Err))
				continue
			}
			result.SuccessCount++
		}

		if err := w.queue.UpdateProgress(ctx, job.ID, Progress(processedRows, totalRows)); err != nil {
			return nil, fmt.Errorf("update progress: %w", err)
		}
	}

	if len(drafts) == 0 {
		if err := w.queue.UpdateProgress(ctx, job.ID, 100); err != nil {
			return nil, fmt.Errorf("update progress: %w", err)
		}
	}

	if result.SuccessCount > 0 {
		_ = w.metrics.RecordValue(ctx, awspkg.MetricProductsCreated, float64(result.SuccessCount), nil)
	}
	if result.FailedCount > 0 {
		_ = w.metrics.RecordValue(ctx, awspkg.MetricProductImportFailed, float64(result.FailedCount), nil)
	}
	return result, nil
}

// ProductOutcome is the result of persisting one draft.
type ProductOutcome struct {
	Key string
	Err error
}

// persistBatch creates every draft of the batch concurrently. Outcomes are
// returned in batch order.
func (w *ImportWorker) persistBatch(ctx context.Context, batch []models.ProductDraft) []ProductOutcome {
	outcomes := make([]ProductOutcome, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = ProductOutcome{Key: batch[i].Key, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			outcomes[i] = ProductOutcome{Key: batch[i].Key, Err: w.persist(ctx, &batch[i])}
		}(i)
	}
	wg.Wait()
	return outcomes
}

// persist checks the variant and size invariants before handing the
// document to the store, which owns slug and SKU uniqueness.
func (w *ImportWorker) persist(ctx context.Context, d *models.ProductDraft) error {
	product := d.ToProduct(w.now())
	if err := w.validate.Struct(product); err != nil {
		return validationError(err)
	}
	return w.repo.Create(ctx, product)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Product.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("product validation failed: %s", strings.Join(parts, ", "))
}

// Run takes jobs until ctx is cancelled. A job already taken runs to its
// terminal state even if ctx is cancelled meanwhile.
func (w *ImportWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.recoverStalledLoop(gctx)
		return nil
	})
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.consume(gctx)
		})
	}
	return g.Wait()
}

func (w *ImportWorker) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, err := w.queue.Take(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			if errors.Is(err, queue.ErrCorruptJob) {
				// the queue already marked it failed
				zap.L().Error("dropped corrupt import job", zap.Error(err))
				_ = w.metrics.RecordCount(ctx, awspkg.MetricImportJobsFailed, map[string]string{"Task": models.TaskImportProducts})
				continue
			}
			zap.L().Error("failed to take import job", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.Handle(context.WithoutCancel(ctx), job)
	}
}

// Handle processes a taken job and moves it to completed or failed.
func (w *ImportWorker) Handle(ctx context.Context, job *models.ImportJob) {
	log := zap.L().With(zap.String("job_id", job.ID))
	started := time.Now()
	log.Info("import job started", zap.Int("rows", len(job.Data.Rows)), zap.Int("attempt", job.AttemptsMade))

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, job.ID)

	result, err := w.safeProcess(ctx, job)
	stopHeartbeat()

	dims := map[string]string{"Task": job.Name}
	_ = w.metrics.RecordLatency(ctx, awspkg.MetricImportJobDuration, time.Since(started), dims)

	event := models.ImportFinishedEvent{
		JobID:      job.ID,
		TotalRows:  len(job.Data.Rows),
		FinishedAt: w.now(),
	}
	if err != nil {
		log.Error("import job failed", zap.Error(err))
		if ferr := w.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Error("failed to mark job failed", zap.Error(ferr))
		}
		_ = w.metrics.RecordCount(ctx, awspkg.MetricImportJobsFailed, dims)
		event.EventType = models.EventImportFailed
		event.State = models.JobStateFailed
		event.Error = err.Error()
	} else {
		if cerr := w.queue.Complete(ctx, job.ID, result); cerr != nil {
			log.Error("failed to mark job completed", zap.Error(cerr))
		}
		_ = w.metrics.RecordCount(ctx, awspkg.MetricImportJobsCompleted, dims)
		log.Info("import job completed",
			zap.Int("total_products", result.TotalProducts),
			zap.Int("success_count", result.SuccessCount),
			zap.Int("failed_count", result.FailedCount),
			zap.Int("rejected_rows", len(result.RejectedRows)),
			zap.Duration("took", time.Since(started)),
		)
		if result.SuccessCount > 0 {
			if cerr := w.cache.Invalidate(ctx); cerr != nil {
				log.Warn("failed to invalidate product cache", zap.Error(cerr))
			}
		}
		event.EventType = models.EventImportCompleted
		event.State = models.JobStateCompleted
		event.TotalProducts = result.TotalProducts
		event.SuccessCount = result.SuccessCount
		event.FailedCount = result.FailedCount
		event.RejectedRows = len(result.RejectedRows)
	}

	if perr := w.events.PublishImportFinished(ctx, event); perr != nil {
		log.Warn("failed to publish import event", zap.Error(perr))
	}
	w.recordHistory(ctx, job, event)
}

func (w *ImportWorker) safeProcess(ctx context.Context, job *models.ImportJob) (result *models.ImportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("import job panicked", zap.String("job_id", job.ID), zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, fmt.Errorf("import aborted: %v", r)
		}
	}()
	return w.Process(ctx, job)
}

func (w *ImportWorker) recordHistory(ctx context.Context, job *models.ImportJob, e models.ImportFinishedEvent) {
	if w.history == nil {
		return
	}
	run := &models.ImportRun{
		JobID:         job.ID,
		State:         string(e.State),
		TotalRows:     e.TotalRows,
		TotalProducts: e.TotalProducts,
		SuccessCount:  e.SuccessCount,
		FailedCount:   e.FailedCount,
		RejectedRows:  e.RejectedRows,
		Error:         e.Error,
		StartedAt:     job.ProcessedAt,
		FinishedAt:    e.FinishedAt,
	}
	if err := w.history.Record(ctx, run); err != nil {
		zap.L().Warn("failed to record import history", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *ImportWorker) heartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.Heartbeat(ctx, jobID); err != nil && ctx.Err() == nil {
				zap.L().Warn("job heartbeat failed", zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}
}

func (w *ImportWorker) recoverStalledLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StalledInterval)
	defer ticker.Stop()
	for {
		if n, err := w.queue.RecoverStalled(ctx); err != nil && ctx.Err() == nil {
			zap.L().Warn("stalled job check failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("requeued stalled import jobs", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
