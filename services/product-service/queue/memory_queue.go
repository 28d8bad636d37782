package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// MemoryQueue is a single-process queue for local runs and tests. Producer
// and worker must share the same instance.
type MemoryQueue struct {
	opts Options

	mu      sync.Mutex
	jobs    map[string]*models.ImportJob
	pending []string
	closed  bool

	// signal has capacity 1; a send means pending may be non-empty.
	signal chan struct{}
	now    func() time.Time
}

func NewMemoryQueue(opts Options) *MemoryQueue {
	return &MemoryQueue{
		opts:   opts.withDefaults(),
		jobs:   make(map[string]*models.ImportJob),
		signal: make(chan struct{}, 1),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (q *MemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Add(ctx context.Context, name string, task models.ImportTask) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrClosed
	}
	q.expireLocked()

	job := &models.ImportJob{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      task,
		State:     models.JobStateQueued,
		CreatedAt: q.now(),
	}
	q.jobs[job.ID] = job
	q.pending = append(q.pending, job.ID)
	q.notify()
	return job.ID, nil
}

// expireLocked drops terminal jobs older than the retention window.
func (q *MemoryQueue) expireLocked() {
	cutoff := q.now().Add(-q.opts.Retention)
	for id, job := range q.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}

func (q *MemoryQueue) GetJob(ctx context.Context, id string) (*models.ImportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.FinishedAt != nil && job.FinishedAt.Before(q.now().Add(-q.opts.Retention)) {
		delete(q.jobs, id)
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (q *MemoryQueue) Take(ctx context.Context) (*models.ImportJob, error) {
	timer := time.NewTimer(q.opts.BlockTimeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.pending) > 0 {
			id := q.pending[0]
			q.pending = q.pending[1:]
			if len(q.pending) > 0 {
				q.notify()
			}
			job, ok := q.jobs[id]
			if !ok {
				q.mu.Unlock()
				continue
			}
			now := q.now()
			job.State = models.JobStateActive
			job.ProcessedAt = &now
			job.AttemptsMade++
			cp := *job
			q.mu.Unlock()
			return &cp, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) UpdateProgress(ctx context.Context, id string, progress float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.Progress = clampProgress(progress)
	return nil
}

func (q *MemoryQueue) Complete(ctx context.Context, id string, result *models.ImportResult) error {
	return q.finish(id, func(job *models.ImportJob) {
		job.State = models.JobStateCompleted
		job.Progress = 100
		job.Result = result
	})
}

func (q *MemoryQueue) Fail(ctx context.Context, id string, reason string) error {
	return q.finish(id, func(job *models.ImportJob) {
		job.State = models.JobStateFailed
		job.FailedReason = reason
	})
}

func (q *MemoryQueue) finish(id string, apply func(*models.ImportJob)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.State.Terminal() {
		return nil
	}
	apply(job)
	now := q.now()
	job.FinishedAt = &now
	return nil
}

func (q *MemoryQueue) Heartbeat(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.State != models.JobStateActive {
		return ErrLockLost
	}
	return nil
}

// RecoverStalled is a no-op: an in-process job cannot outlive its worker.
func (q *MemoryQueue) RecoverStalled(ctx context.Context) (int, error) {
	return 0, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.signal)
	}
	return nil
}
