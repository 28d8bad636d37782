package services

import (
	"context"
	"errors"

	apperrors "github.com/samirvithlani/mayaa-backend/services/common/errors"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
	"github.com/samirvithlani/mayaa-backend/services/product-service/queue"
	"github.com/samirvithlani/mayaa-backend/services/product-service/repository"
)

// JobView is the full record of a job for clients that need the outcome.
type JobView struct {
	JobID        string               `json:"jobId"`
	State        models.JobState      `json:"state"`
	Progress     float64              `json:"progress"`
	Result       *models.ImportResult `json:"result,omitempty"`
	FailedReason string               `json:"failedReason,omitempty"`
	AttemptsMade int                  `json:"attemptsMade"`
}

// JobStatusReporter answers status polls from the queue's job records.
// It never writes.
type JobStatusReporter struct {
	jobs    queue.Reader
	history repository.ImportHistoryRepo
}

func NewJobStatusReporter(jobs queue.Reader, history repository.ImportHistoryRepo) *JobStatusReporter {
	return &JobStatusReporter{jobs: jobs, history: history}
}

func (r *JobStatusReporter) load(ctx context.Context, jobID string) (*models.ImportJob, error) {
	if jobID == "" {
		return nil, apperrors.ErrJobNotFound
	}
	job, err := r.jobs.GetJob(ctx, jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.Wrap(err)
	}
	return job, nil
}

// GetStatus returns state and progress of a job.
func (r *JobStatusReporter) GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	job, err := r.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &models.JobStatus{JobID: job.ID, State: job.State, Progress: job.Progress}, nil
}

// GetResult returns the finished job including its result. Jobs still queued
// or active yield ErrJobNotFinished.
func (r *JobStatusReporter) GetResult(ctx context.Context, jobID string) (*JobView, error) {
	job, err := r.load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view := &JobView{
		JobID:        job.ID,
		State:        job.State,
		Progress:     job.Progress,
		Result:       job.Result,
		FailedReason: job.FailedReason,
		AttemptsMade: job.AttemptsMade,
	}
	if !job.State.Terminal() {
		return view, apperrors.ErrJobNotFinished
	}
	return view, nil
}

// History lists finished imports from the durable store.
func (r *JobStatusReporter) History(ctx context.Context, filter models.ImportRunFilter) ([]models.ImportRun, int64, error) {
	if r.history == nil {
		return nil, 0, apperrors.ErrHistoryDisabled
	}
	runs, total, err := r.history.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.ErrInternalServer.Wrap(err)
	}
	return runs, total, nil
}
