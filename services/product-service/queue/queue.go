// Package queue holds import jobs between the HTTP producer and the worker.
// A job moves queued -> active -> completed|failed; records outlive the
// terminal transition by the configured retention so clients can poll.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrLockLost means another worker may have taken the job over.
	ErrLockLost = errors.New("job lock lost")
	ErrClosed   = errors.New("queue closed")
	// ErrCorruptJob means a stored record no longer decodes. The queue marks
	// such a job failed when it is taken.
	ErrCorruptJob = errors.New("corrupt job record")
)

const (
	DefaultName         = "product-import-queue"
	DefaultRetention    = 24 * time.Hour
	DefaultLockTTL      = 30 * time.Second
	DefaultBlockTimeout = 5 * time.Second
)

// Producer is the only queue surface the upload handler sees.
type Producer interface {
	Add(ctx context.Context, name string, task models.ImportTask) (string, error)
}

// Reader looks up job records for status polling.
type Reader interface {
	GetJob(ctx context.Context, id string) (*models.ImportJob, error)
}

// Consumer is what a worker needs to process jobs.
type Consumer interface {
	// Take blocks until a job is available, moves it to active and returns it.
	// It returns (nil, nil) when nothing arrived within the block timeout.
	Take(ctx context.Context) (*models.ImportJob, error)
	UpdateProgress(ctx context.Context, id string, progress float64) error
	Complete(ctx context.Context, id string, result *models.ImportResult) error
	Fail(ctx context.Context, id string, reason string) error
	// Heartbeat extends the active lock of a job.
	Heartbeat(ctx context.Context, id string) error
	// RecoverStalled requeues active jobs whose lock expired. A job may take
	// more than one call to be recognised as stalled.
	RecoverStalled(ctx context.Context) (int, error)
}

type Queue interface {
	Producer
	Reader
	Consumer
	Close() error
}

// Options tune a queue. Zero values fall back to the defaults above.
type Options struct {
	Name         string
	Retention    time.Duration
	LockTTL      time.Duration
	BlockTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = DefaultBlockTimeout
	}
	return o
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
