package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scheduledKey = "delivery:scheduled"
	pollInterval = time.Second

	// MaxRetries bounds how many times a failed job is retried before it
	// is dropped for good.
	MaxRetries = 3

	baseBackoff = 10 * time.Second
)

// Handler processes one delivery job. A returned error marks the job as
// failed and triggers the retry policy.
type Handler func(ctx context.Context, job Job) error

// Queue is a durable delayed job queue over a Redis sorted set. Members are
// JSON-encoded jobs scored by their fire time, so delayed jobs survive
// process restarts.
type Queue struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger

	// enqueue is how dispatch stages retries; swapped out in tests.
	enqueue func(ctx context.Context, job Job, delay time.Duration) error
}

func New(rdb *redis.Client, logger *zap.Logger) *Queue {
	q := &Queue{
		rdb:    rdb,
		key:    scheduledKey,
		logger: logger,
	}
	q.enqueue = q.Enqueue
	return q
}

// Enqueue stages a job to fire after the given delay. A non-positive delay
// makes the job eligible immediately.
func (q *Queue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	member, err := encodeJob(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	fireAt := time.Now().Add(delay)
	err = q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Info("Delivery job enqueued",
		zap.Int("email_id", job.EmailID),
		zap.Duration("delay", delay),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

// RemoveByEmailID removes the not-yet-fired job for the given email, if one
// is still in the queue. Jobs are keyed by payload, so the scheduled set is
// scanned and matched on the embedded email id. Returns false when no
// matching job was found, which callers treat as best-effort.
func (q *Queue) RemoveByEmailID(ctx context.Context, emailID int) (bool, error) {
	members, err := q.rdb.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to scan scheduled jobs: %w", err)
	}

	for _, member := range members {
		if !matchesEmailID(member, emailID) {
			continue
		}
		n, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return false, fmt.Errorf("failed to remove job: %w", err)
		}
		return n > 0, nil
	}

	return false, nil
}

// Run polls for due jobs and dispatches them to the handler. It blocks until
// the context is cancelled.
func (q *Queue) Run(ctx context.Context, handler Handler) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	q.logger.Info("Delivery queue consumer started", zap.String("key", q.key))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := q.drainDue(ctx, handler); err != nil {
				q.logger.Error("Failed to drain due jobs", zap.Error(err))
			}
		}
	}
}

func (q *Queue) drainDue(ctx context.Context, handler Handler) error {
	now := time.Now().UnixMilli()
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		// Claim by removal. Another consumer may have taken the job between
		// the range read and here; ZREM returning 0 means we lost the race.
		n, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		job, err := decodeJob(member)
		if err != nil {
			q.logger.Error("Dropping malformed job payload", zap.Error(err))
			continue
		}

		q.dispatch(ctx, handler, job)
	}

	return nil
}

func (q *Queue) dispatch(ctx context.Context, handler Handler, job Job) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return handler(ctx, job)
	}()

	if err == nil {
		return
	}

	if job.Attempt >= MaxRetries {
		q.logger.Error("Delivery job exhausted retries, dropping",
			zap.Int("email_id", job.EmailID),
			zap.Int("attempts", job.Attempt),
			zap.Error(err),
		)
		return
	}

	job.Attempt++
	delay := backoffDelay(job.Attempt)
	if enqErr := q.enqueue(ctx, job, delay); enqErr != nil {
		q.logger.Error("Failed to requeue delivery job",
			zap.Int("email_id", job.EmailID),
			zap.Error(enqErr),
		)
		return
	}

	q.logger.Warn("Delivery job failed, retry scheduled",
		zap.Int("email_id", job.EmailID),
		zap.Int("attempt", job.Attempt),
		zap.Duration("backoff", delay),
		zap.Error(err),
	)
}

// backoffDelay returns the exponential backoff before retry n: 10s, 20s, 40s.
func backoffDelay(attempt int) time.Duration {
	return baseBackoff << (attempt - 1)
}
