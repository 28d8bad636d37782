package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awspkg "github.com/samirvithlani/mayaa-backend/pkg/aws"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
)

func takeJob(t *testing.T, q *queue.MemoryQueue, rows []models.ImportRow) *models.ImportJob {
	t.Helper()
	ctx := context.Background()
	_, err := q.Add(ctx, models.TaskImportProducts, models.ImportTask{Rows: rows})
	require.NoError(t, err)
	job, err := q.Take(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 100.0, Progress(0, 0))
	assert.Equal(t, 0.0, Progress(0, 10))
	assert.Equal(t, 50.0, Progress(5, 10))
	assert.Equal(t, 100.0, Progress(12, 10))
}

func TestProcessGroupsAndPersists(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q}
	repo := newFakeRepo()
	w := NewImportWorker(rec, repo, WorkerConfig{})

	job := takeJob(t, q, []models.ImportRow{
		validRow("Tee", "tee-1", "Red", "s", "SKU1"),
		validRow("Tee", "tee-1", "Red", "m", "SKU2"),
	})

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, &models.ImportResult{
		TotalProducts: 1,
		SuccessCount:  1,
		FailedCount:   0,
		Failed:        []models.FailedProduct{},
	}, result)
	assert.Equal(t, []float64{100}, rec.progress())

	require.Equal(t, 1, repo.count())
	p := repo.products[0]
	assert.Equal(t, models.ProductStatusActive, p.Status)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "#FF0000", p.Variants[0].Color.HexCode)
	require.Len(t, p.Variants[0].Sizes, 2)
	assert.Equal(t, "S", p.Variants[0].Sizes[0].Size)
	assert.Equal(t, "M", p.Variants[0].Sizes[1].Size)
}

func TestProcessReportsProgressPerBatch(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q}
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{BatchSize: 100})

	rows := make([]models.ImportRow, 0, 250)
	for i := 0; i < 250; i++ {
		rows = append(rows, validRow(fmt.Sprintf("P%d", i), fmt.Sprintf("p-%d", i), "Red", "S", fmt.Sprintf("SKU%d", i)))
	}
	job := takeJob(t, q, rows)

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 250, result.SuccessCount)
	assert.Equal(t, []float64{40, 80, 100}, rec.progress())

	stored, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Progress)
}

func TestProcessProgressIsMonotonic(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q}
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{BatchSize: 2})

	rows := []models.ImportRow{
		validRow("A", "a", "Red", "S", "A1"),
		validRow("A", "a", "Red", "M", "A2"),
		validRow("A", "a", "Blue", "S", "A3"),
		validRow("B", "b", "Red", "S", "B1"),
		validRow("C", "c", "Red", "S", "C1"),
	}
	_, err := w.Process(context.Background(), takeJob(t, q, rows))
	require.NoError(t, err)

	got := rec.progress()
	require.Equal(t, []float64{80, 100}, got)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestProcessDuplicateSKUIsPartialFailure(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	repo := newFakeRepo()
	w := NewImportWorker(q, repo, WorkerConfig{})

	job := takeJob(t, q, []models.ImportRow{
		validRow("Tee", "tee-1", "Red", "S", "SKU1"),
		validRow("Cap", "cap-1", "Black", "M", "SKU1"),
	})

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProducts)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, []string{"Tee__tee-1", "Cap__cap-1"}, result.Failed[0].ProductKey)
	assert.Contains(t, result.Failed[0].Error, "duplicate product")
	assert.Equal(t, 1, repo.count())
}

func TestProcessCollectsPerProductFailures(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	repo := newFakeRepo()
	repo.failFor["broken"] = errors.New("write conflict")
	repo.slugs["taken"] = true
	w := NewImportWorker(q, repo, WorkerConfig{})

	job := takeJob(t, q, []models.ImportRow{
		validRow("Good", "good", "Red", "S", "G1"),
		validRow("Broken", "broken", "Red", "S", "X1"),
		validRow("Taken", "taken", "Red", "S", "T1"),
	})

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalProducts)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailedCount)
	assert.Equal(t, result.TotalProducts, result.SuccessCount+result.FailedCount)

	byKey := map[string]string{}
	for _, f := range result.Failed {
		byKey[f.ProductKey] = f.Error
	}
	assert.Equal(t, "write conflict", byKey["Broken__broken"])
	assert.Contains(t, byKey["Taken__taken"], "duplicate product")
}

func TestProcessMinimalRows(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	repo := newFakeRepo()
	w := NewImportWorker(q, repo, WorkerConfig{})

	job := takeJob(t, q, []models.ImportRow{
		{"product_name": "Tee", "seo_slug": "tee-1", "color_name": "Red", "size": "S", "sku": "SKU1", "price": "100", "stock": "10"},
		{"product_name": "Tee", "seo_slug": "tee-1", "color_name": "Red", "size": "M", "sku": "SKU2", "price": "100", "stock": "5"},
	})

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, &models.ImportResult{
		TotalProducts: 1,
		SuccessCount:  1,
		FailedCount:   0,
		Failed:        []models.FailedProduct{},
	}, result)

	require.Equal(t, 1, repo.count())
	p := repo.products[0]
	assert.Equal(t, "Tee", p.Name)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "Red", p.Variants[0].Color.Name)
	assert.Equal(t, []models.VariantSize{
		{Size: "S", Stock: 10, SKU: "SKU1", Price: 100},
		{Size: "M", Stock: 5, SKU: "SKU2", Price: 100},
	}, p.Variants[0].Sizes)
}

func TestProcessFallsBackOnMalformedCells(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	repo := newFakeRepo()
	w := NewImportWorker(q, repo, WorkerConfig{})

	row := validRow("Tee", "tee-1", "Red", "S", "SKU1")
	row[ColPrice] = "abc"
	row[ColStock] = "lots"
	row[ColCategoryID] = "not-an-id"
	row[ColSEOMeta] = "{broken"

	result, err := w.Process(context.Background(), takeJob(t, q, []models.ImportRow{row}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Empty(t, result.Failed)

	require.Equal(t, 1, repo.count())
	p := repo.products[0]
	assert.True(t, p.ProductCategoryID.IsZero())
	assert.Equal(t, 0.0, p.Variants[0].Sizes[0].Price)
	assert.Equal(t, 0, p.Variants[0].Sizes[0].Stock)
}

func TestPersistRequiresVariantsAndSizes(t *testing.T) {
	repo := newFakeRepo()
	w := NewImportWorker(queue.NewMemoryQueue(queue.Options{}), repo, WorkerConfig{})

	err := w.persist(context.Background(), &models.ProductDraft{Key: "Tee__tee-1", Name: "Tee", Slug: "tee-1"})
	assert.ErrorContains(t, err, "Variants: min=1")

	err = w.persist(context.Background(), &models.ProductDraft{
		Key:      "Tee__tee-1",
		Name:     "Tee",
		Slug:     "tee-1",
		Variants: []models.VariantDraft{{ColorKey: "red", ColorName: "Red"}},
	})
	assert.ErrorContains(t, err, "Variants[0].Sizes: min=1")
	assert.Zero(t, repo.count())
}

func TestProcessCountsRejectedRows(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q}
	metrics := newFakeMetrics()
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{BatchSize: 1}, WithMetrics(metrics))

	noSlug := validRow("Tee", "", "Red", "S", "SKU0")
	job := takeJob(t, q, []models.ImportRow{
		noSlug,
		validRow("A", "a", "Red", "S", "A1"),
		validRow("B", "b", "Red", "S", "B1"),
	})

	result, err := w.Process(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalProducts)
	assert.Equal(t, []models.RejectedRow{{Row: 1, Error: "missing seo_slug"}}, result.RejectedRows)
	got := rec.progress()
	require.Len(t, got, 2)
	assert.InDelta(t, 66.67, got[0], 0.01)
	assert.Equal(t, 100.0, got[1])
	assert.Equal(t, 1.0, metrics.get(awspkg.MetricImportRowsRejected))
	assert.Equal(t, 2.0, metrics.get(awspkg.MetricProductsCreated))
}

func TestProcessEmptyJob(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q}
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{})

	result, err := w.Process(context.Background(), takeJob(t, q, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalProducts)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []float64{100}, rec.progress())
}

func TestProcessFailsOnProgressWriteError(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q, err: errors.New("redis down")}
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{})

	_, err := w.Process(context.Background(), takeJob(t, q, []models.ImportRow{validRow("A", "a", "Red", "S", "A1")}))
	assert.ErrorContains(t, err, "redis down")
}

func TestProcessRejectsUnknownTask(t *testing.T) {
	w := NewImportWorker(queue.NewMemoryQueue(queue.Options{}), newFakeRepo(), WorkerConfig{})

	_, err := w.Process(context.Background(), &models.ImportJob{ID: "1", Name: "resize-images"})
	assert.ErrorContains(t, err, "unsupported task")
}

func TestHandleCompletesJob(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(queue.Options{})
	metrics := newFakeMetrics()
	ev := &fakeEvents{}
	cache := &fakeCache{}
	history := &fakeHistory{}
	repo := newFakeRepo()
	w := NewImportWorker(q, repo, WorkerConfig{},
		WithMetrics(metrics), WithEvents(ev), WithCache(cache), WithHistory(history))

	job := takeJob(t, q, []models.ImportRow{
		validRow("Tee", "tee-1", "Red", "S", "SKU1"),
		validRow("Cap", "cap-1", "Black", "M", "SKU1"),
	})
	w.Handle(ctx, job)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, stored.State)
	assert.Equal(t, 100.0, stored.Progress)
	require.NotNil(t, stored.Result)
	assert.Equal(t, 1, stored.Result.FailedCount)

	require.Len(t, ev.events, 1)
	assert.Equal(t, models.EventImportCompleted, ev.events[0].EventType)
	assert.Equal(t, 2, ev.events[0].TotalRows)
	assert.Equal(t, 1, cache.calls)
	require.Len(t, history.runs, 1)
	assert.Equal(t, "completed", history.runs[0].State)
	assert.Equal(t, 1.0, metrics.get(awspkg.MetricImportJobsCompleted))
}

func TestHandleFailsJob(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(queue.Options{})
	rec := &progressRecorder{Consumer: q, err: errors.New("redis down")}
	ev := &fakeEvents{}
	cache := &fakeCache{}
	metrics := newFakeMetrics()
	w := NewImportWorker(rec, newFakeRepo(), WorkerConfig{}, WithEvents(ev), WithCache(cache), WithMetrics(metrics))

	job := takeJob(t, q, []models.ImportRow{validRow("A", "a", "Red", "S", "A1")})
	w.Handle(ctx, job)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, stored.State)
	assert.Contains(t, stored.FailedReason, "redis down")
	assert.Nil(t, stored.Result)

	require.Len(t, ev.events, 1)
	assert.Equal(t, models.EventImportFailed, ev.events[0].EventType)
	assert.Equal(t, 0, cache.calls)
	assert.Equal(t, 1.0, metrics.get(awspkg.MetricImportJobsFailed))
}

type panickyRepo struct{ fakeRepo }

func (p *panickyRepo) Create(ctx context.Context, prod *models.Product) error {
	panic("boom")
}

func TestProcessIsolatesPanickingCreate(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{})
	w := NewImportWorker(q, &panickyRepo{}, WorkerConfig{})

	result, err := w.Process(context.Background(), takeJob(t, q, []models.ImportRow{validRow("A", "a", "Red", "S", "A1")}))
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "panic: boom", result.Failed[0].Error)
}

type panickyProgress struct{ queue.Consumer }

func (panickyProgress) UpdateProgress(ctx context.Context, id string, progress float64) error {
	panic("progress store corrupted")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue(queue.Options{})
	w := NewImportWorker(panickyProgress{Consumer: q}, newFakeRepo(), WorkerConfig{})

	job := takeJob(t, q, []models.ImportRow{validRow("A", "a", "Red", "S", "A1")})
	w.Handle(ctx, job)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, stored.State)
	assert.Contains(t, stored.FailedReason, "import aborted")
}

func TestRunProcessesQueuedJobs(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{BlockTimeout: 20 * time.Millisecond})
	repo := newFakeRepo()
	w := NewImportWorker(q, repo, WorkerConfig{Concurrency: 2, StalledInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Add(context.Background(), models.TaskImportProducts, models.ImportTask{
			Rows: []models.ImportRow{validRow(fmt.Sprintf("P%d", i), fmt.Sprintf("p-%d", i), "Red", "S", fmt.Sprintf("SKU%d", i))},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := q.GetJob(context.Background(), id)
			if err != nil || job.State != models.JobStateCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, repo.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

// corruptFirst reports one corrupt record before delegating to the queue.
type corruptFirst struct {
	queue.Consumer
	once sync.Once
}

func (c *corruptFirst) Take(ctx context.Context) (*models.ImportJob, error) {
	var corrupt bool
	c.once.Do(func() { corrupt = true })
	if corrupt {
		return nil, fmt.Errorf("%w j0: unexpected end of JSON input", queue.ErrCorruptJob)
	}
	return c.Consumer.Take(ctx)
}

func TestRunSkipsCorruptJobs(t *testing.T) {
	q := queue.NewMemoryQueue(queue.Options{BlockTimeout: 20 * time.Millisecond})
	metrics := newFakeMetrics()
	w := NewImportWorker(&corruptFirst{Consumer: q}, newFakeRepo(), WorkerConfig{StalledInterval: time.Second}, WithMetrics(metrics))

	id, err := q.Add(context.Background(), models.TaskImportProducts, models.ImportTask{
		Rows: []models.ImportRow{validRow("A", "a", "Red", "S", "A1")},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		job, err := q.GetJob(context.Background(), id)
		return err == nil && job.State == models.JobStateCompleted
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, metrics.get(awspkg.MetricImportJobsFailed))

	cancel()
	require.NoError(t, <-done)
}
