package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// Keys, all prefixed with the queue name:
//
//	<name>:wait       list of queued job ids, LPUSH in / BRPOPLPUSH out
//	<name>:active     list of taken job ids
//	<name>:stalled    active ids seen without a lock on the last check
//	<name>:job:<id>   JSON job record, expires after the retention window
//	<name>:lock:<id>  held by the worker processing <id>
type RedisQueue struct {
	rdb   *redis.Client
	opts  Options
	token string
}

var extendLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// moveStalled moves ids that were unlocked on the previous check and are
// still unlocked back to wait, then marks every unlocked active id for the
// next check. Take locks right after BRPOPLPUSH, so a job caught in that gap
// has its lock by the next check and stays put.
//
// KEYS: active, wait, stalled. ARGV[1]: lock key prefix.
var moveStalled = redis.NewScript(`
local moved = {}
for _, id in ipairs(redis.call("SMEMBERS", KEYS[3])) do
	if redis.call("EXISTS", ARGV[1] .. id) == 0 and redis.call("LREM", KEYS[1], 1, id) > 0 then
		redis.call("RPUSH", KEYS[2], id)
		table.insert(moved, id)
	end
end
redis.call("DEL", KEYS[3])
for _, id in ipairs(redis.call("LRANGE", KEYS[1], 0, -1)) do
	if redis.call("EXISTS", ARGV[1] .. id) == 0 then
		redis.call("SADD", KEYS[3], id)
	end
end
return moved
`)

func NewRedisQueue(rdb *redis.Client, opts Options) *RedisQueue {
	return &RedisQueue{
		rdb:   rdb,
		opts:  opts.withDefaults(),
		token: uuid.NewString(),
	}
}

func (q *RedisQueue) waitKey() string    { return q.opts.Name + ":wait" }
func (q *RedisQueue) activeKey() string  { return q.opts.Name + ":active" }
func (q *RedisQueue) stalledKey() string { return q.opts.Name + ":stalled" }
func (q *RedisQueue) lockPrefix() string { return q.opts.Name + ":lock:" }

func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", q.opts.Name, id)
}

func (q *RedisQueue) lockKey(id string) string {
	return q.lockPrefix() + id
}

func (q *RedisQueue) Add(ctx context.Context, name string, task models.ImportTask) (string, error) {
	job := &models.ImportJob{
		ID:        uuid.NewString(),
		Name:      name,
		Data:      task,
		State:     models.JobStateQueued,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(job.ID), b, q.opts.Retention)
		pipe.LPush(ctx, q.waitKey(), job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

func (q *RedisQueue) GetJob(ctx context.Context, id string) (*models.ImportJob, error) {
	val, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	var job models.ImportJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptJob, id, err)
	}
	return &job, nil
}

func (q *RedisQueue) save(ctx context.Context, job *models.ImportJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.rdb.Set(ctx, q.jobKey(job.ID), b, q.opts.Retention).Err()
}

// Take returns ErrCorruptJob, after marking the job failed, when the taken
// record does not decode.
func (q *RedisQueue) Take(ctx context.Context) (*models.ImportJob, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.waitKey(), q.activeKey(), q.opts.BlockTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := q.rdb.Set(ctx, q.lockKey(id), q.token, q.opts.LockTTL).Err(); err != nil {
		return nil, fmt.Errorf("lock job %s: %w", id, err)
	}

	job, err := q.GetJob(ctx, id)
	switch {
	case errors.Is(err, ErrJobNotFound):
		// record expired while waiting; nothing left to process
		zap.L().Warn("dropping queued job without record", zap.String("job_id", id))
		q.release(ctx, id)
		return nil, nil
	case errors.Is(err, ErrCorruptJob):
		q.failCorrupt(ctx, id, err)
		return nil, err
	case err != nil:
		return nil, err
	}

	if job.State.Terminal() {
		// finished but requeued by a stalled check before its release landed
		q.release(ctx, id)
		return nil, nil
	}

	now := time.Now().UTC()
	job.State = models.JobStateActive
	job.ProcessedAt = &now
	job.AttemptsMade++
	if err := q.save(ctx, job); err != nil {
		return nil, fmt.Errorf("activate job %s: %w", id, err)
	}
	return job, nil
}

// failCorrupt overwrites an undecodable record with a failed one so pollers
// get a terminal state. Name and timestamps are kept when they still parse.
func (q *RedisQueue) failCorrupt(ctx context.Context, id string, cause error) {
	var salvaged struct {
		Name         string    `json:"name"`
		CreatedAt    time.Time `json:"createdAt"`
		AttemptsMade int       `json:"attemptsMade"`
	}
	if raw, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes(); err == nil {
		_ = json.Unmarshal(raw, &salvaged)
	}

	now := time.Now().UTC()
	job := &models.ImportJob{
		ID:           id,
		Name:         salvaged.Name,
		State:        models.JobStateFailed,
		FailedReason: cause.Error(),
		AttemptsMade: salvaged.AttemptsMade,
		CreatedAt:    salvaged.CreatedAt,
		FinishedAt:   &now,
	}
	if err := q.save(ctx, job); err != nil {
		zap.L().Error("failed to mark corrupt job failed", zap.String("job_id", id), zap.Error(err))
	}
	q.release(ctx, id)
	zap.L().Error("import job record corrupt", zap.String("job_id", id), zap.Error(cause))
}

func (q *RedisQueue) UpdateProgress(ctx context.Context, id string, progress float64) error {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Progress = clampProgress(progress)
	return q.save(ctx, job)
}

func (q *RedisQueue) Complete(ctx context.Context, id string, result *models.ImportResult) error {
	return q.finish(ctx, id, func(job *models.ImportJob) {
		job.State = models.JobStateCompleted
		job.Progress = 100
		job.Result = result
	})
}

func (q *RedisQueue) Fail(ctx context.Context, id string, reason string) error {
	return q.finish(ctx, id, func(job *models.ImportJob) {
		job.State = models.JobStateFailed
		job.FailedReason = reason
	})
}

func (q *RedisQueue) finish(ctx context.Context, id string, apply func(*models.ImportJob)) error {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	apply(job)
	job.FinishedAt = &now
	if err := q.save(ctx, job); err != nil {
		return err
	}
	q.release(ctx, id)
	return nil
}

func (q *RedisQueue) release(ctx context.Context, id string) {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(), 0, id)
		pipe.Del(ctx, q.lockKey(id))
		return nil
	})
	if err != nil {
		zap.L().Warn("failed to release job", zap.String("job_id", id), zap.Error(err))
	}
}

func (q *RedisQueue) Heartbeat(ctx context.Context, id string) error {
	n, err := extendLock.Run(ctx, q.rdb, []string{q.lockKey(id)}, q.token, q.opts.LockTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", id, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// RecoverStalled moves a job back to wait once two consecutive checks found
// it active without a lock. The move is atomic, so a job is always on one of
// the two lists; its record is only relabelled queued afterwards.
func (q *RedisQueue) RecoverStalled(ctx context.Context) (int, error) {
	ids, err := moveStalled.Run(ctx, q.rdb,
		[]string{q.activeKey(), q.waitKey(), q.stalledKey()},
		q.lockPrefix(),
	).StringSlice()
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		q.markQueued(ctx, id)
	}
	return len(ids), nil
}

// markQueued relabels a requeued record. Take re-reads the record anyway, so
// a failure here only leaves a stale state visible to pollers.
func (q *RedisQueue) markQueued(ctx context.Context, id string) {
	job, err := q.GetJob(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) {
			zap.L().Warn("requeued job record unreadable", zap.String("job_id", id), zap.Error(err))
		}
		return
	}
	if job.State.Terminal() {
		return
	}
	job.State = models.JobStateQueued
	if err := q.save(ctx, job); err != nil {
		zap.L().Warn("failed to relabel requeued job", zap.String("job_id", id), zap.Error(err))
		return
	}
	zap.L().Warn("requeued stalled import job",
		zap.String("job_id", id),
		zap.Int("attempts_made", job.AttemptsMade),
	)
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}
