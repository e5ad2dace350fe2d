package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/roomwatt/internal/config"
	"go.uber.org/zap"
)

const keyReadingIngestRoom = "readings:ingest:room:%s"

// ReadingIngestLimiter throttles meter uploads per room so a misbehaving
// device cannot flood the usage store.
type ReadingIngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewReadingIngestLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *ReadingIngestLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if client == nil {
		log.Warn("reading ingest rate limit enabled without redis; limiter disabled")
		return nil
	}
	if limitCfg.ReadingIngestRate <= 0 || limitCfg.ReadingIngestBurst <= 0 {
		log.Warn("reading ingest rate limit must be positive; limiter disabled",
			zap.Float64("rate", limitCfg.ReadingIngestRate),
			zap.Int("burst", limitCfg.ReadingIngestBurst),
		)
		return nil
	}
	return &ReadingIngestLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.ReadingIngestRate,
		burst:  limitCfg.ReadingIngestBurst,
	}
}

func (l *ReadingIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowRoom takes one token from the room's bucket. A disabled limiter always allows.
func (l *ReadingIngestLimiter) AllowRoom(ctx context.Context, roomID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyReadingIngestRoom, strings.TrimSpace(roomID)), l.rate, l.burst)
}
