package repository

import (
	"context"
	"sync/atomic"
	"time"

	"slotnik/internal/domain"
	"slotnik/internal/models"

	"github.com/rs/zerolog"
)

// FailoverProfileCache prefers the primary (redis) cache and degrades to the
// in-memory fallback when it errors, probing the primary again after a minute.
type FailoverProfileCache struct {
	primary   domain.ProfileCache
	fallback  domain.ProfileCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverProfileCache(primary, fallback domain.ProfileCache, logger *zerolog.Logger) *FailoverProfileCache {
	return &FailoverProfileCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverProfileCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary profile cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverProfileCache) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if !r.isDown.Load() {
		profile, err := r.primary.GetProfile(ctx, uid)
		if err == nil {
			return profile, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		profile, err := r.primary.GetProfile(ctx, uid)
		if err == nil {
			r.isDown.Store(false)
			return profile, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetProfile(ctx, uid)
}

func (r *FailoverProfileCache) SetProfile(ctx context.Context, profile *models.UserProfile) error {
	if !r.isDown.Load() {
		err := r.primary.SetProfile(ctx, profile)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetProfile(ctx, profile)
}

func (r *FailoverProfileCache) ClearProfile(ctx context.Context, uid string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearProfile(ctx, uid)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearProfile(ctx, uid)
}

func (r *FailoverProfileCache) CheckRateLimit(ctx context.Context, uid string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, uid, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, uid, limit, window)
}
