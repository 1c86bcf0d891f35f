package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixology/fixology/internal/config"
)

// AdminCommandLimiter throttles state-mutating admin commands per actor and
// endpoint. A nil limiter allows everything.
type AdminCommandLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewAdminCommandLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *AdminCommandLimiter {
	if !cfg.RateLimit.Enabled || bucket == nil {
		return nil
	}
	return &AdminCommandLimiter{
		bucket: bucket,
		log:    log.Named("ratelimit"),
		rate:   cfg.RateLimit.AdminCommandRate,
		burst:  cfg.RateLimit.AdminCommandBurst,
	}
}

// Allow reports whether the actor may run another command right now. Redis
// failures fail open: a broken limiter must not take the back office down.
func (l *AdminCommandLimiter) Allow(ctx context.Context, actorID, endpoint string) (*Result, bool) {
	if l == nil {
		return nil, true
	}
	key := fmt.Sprintf("ratelimit:admin:%s:%s", actorID, endpoint)
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return nil, true
	}
	return res, res.Allowed
}
