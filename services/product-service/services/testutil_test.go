package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
	"github.com/samirvithlani/mayaa-backend/services/product-service/repository"
)

const (
	testCategoryID    = "65a1f0c2e4b0a1b2c3d4e5f6"
	testSubCategoryID = "65a1f0c2e4b0a1b2c3d4e5f7"
)

// validRow returns a row with every product column filled.
func validRow(name, slug, color, size, sku string) models.ImportRow {
	return models.ImportRow{
		ColProductName:   name,
		ColSEOSlug:       slug,
		ColDescription:   "Soft cotton",
		ColBrand:         "Acme",
		ColCategoryID:    testCategoryID,
		ColSubCategoryID: testSubCategoryID,
		ColMaterial:      "Cotton",
		ColFitType:       "Regular",
		ColGender:        "Unisex",
		ColAgeGroup:      "Adults",
		ColColorName:     color,
		ColColorHex:      "#ff0000",
		ColImageURLs:     "a.jpg,b.jpg",
		ColSize:          size,
		ColSKU:           sku,
		ColPrice:         "100",
		ColStock:         "10",
	}
}

// fakeRepo enforces slug and SKU uniqueness like the real stores.
type fakeRepo struct {
	mu       sync.Mutex
	slugs    map[string]bool
	skus     map[string]bool
	products []*models.Product
	failFor  map[string]error
	delay    time.Duration
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		slugs:   map[string]bool{},
		skus:    map[string]bool{},
		failFor: map[string]error{},
	}
}

func (r *fakeRepo) Create(ctx context.Context, p *models.Product) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[p.SEO.Slug]; ok {
		return err
	}
	if r.slugs[p.SEO.Slug] {
		return fmt.Errorf("%w: slug %s", repository.ErrDuplicateProduct, p.SEO.Slug)
	}
	for _, sku := range p.SKUs() {
		if r.skus[sku] {
			return fmt.Errorf("%w: sku %s", repository.ErrDuplicateProduct, sku)
		}
	}
	r.slugs[p.SEO.Slug] = true
	for _, sku := range p.SKUs() {
		r.skus[sku] = true
	}
	r.products = append(r.products, p)
	return nil
}

func (r *fakeRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products)
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]float64
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{counts: map[string]float64{}} }

func (m *fakeMetrics) RecordCount(ctx context.Context, name string, dims map[string]string) error {
	return m.RecordValue(ctx, name, 1, dims)
}

func (m *fakeMetrics) RecordValue(ctx context.Context, name string, v float64, dims map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] += v
	return nil
}

func (m *fakeMetrics) RecordLatency(ctx context.Context, name string, d time.Duration, dims map[string]string) error {
	return m.RecordValue(ctx, name, 1, dims)
}

func (m *fakeMetrics) get(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.ImportFinishedEvent
}

func (f *fakeEvents) PublishImportFinished(ctx context.Context, e models.ImportFinishedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type fakeCache struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCache) Invalidate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []models.ImportRun
}

func (f *fakeHistory) Record(ctx context.Context, run *models.ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeHistory) FindByJobID(ctx context.Context, jobID string) (*models.ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].JobID == jobID {
			run := f.runs[i]
			return &run, nil
		}
	}
	return nil, repository.ErrImportRunNotFound
}

func (f *fakeHistory) List(ctx context.Context, filter models.ImportRunFilter) ([]models.ImportRun, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.ImportRun(nil), f.runs...)
	return out, int64(len(out)), nil
}

// progressRecorder wraps a queue and remembers every progress write.
type progressRecorder struct {
	queue.Consumer
	mu     sync.Mutex
	values []float64
	err    error
}

func (p *progressRecorder) UpdateProgress(ctx context.Context, id string, progress float64) error {
	p.mu.Lock()
	p.values = append(p.values, progress)
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.Consumer.UpdateProgress(ctx, id, progress)
}

func (p *progressRecorder) progress() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.values...)
}
