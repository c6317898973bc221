package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper gates at-least-once event handlers behind a Redis SetNX lock so a
// redelivered or repeated event is processed only once per TTL window.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{
		rdb: rdb,
		ttl: ttl,
	}
}

func NewDeduperWithLogger(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// AcquireOnce tries to acquire the dedup lock for a handler + email pair.
// It returns true on the first acquisition and false for duplicates. When
// Redis is unavailable the event is allowed through rather than lost.
func (d *Deduper) AcquireOnce(ctx context.Context, handler string, emailID int) bool {
	key := fmt.Sprintf("dedup:%s:%d", handler, emailID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("Redis dedup check failed, allowing processing",
				zap.String("handler", handler),
				zap.Int("email_id", emailID),
				zap.Error(err),
			)
		}
		return true
	}

	if !ok && d.logger != nil {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.Int("email_id", emailID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}
