// Package repository caches profile snapshots for display and rate-limits
// user actions. The cache is a display hint, not authoritative: it is always
// overwritten by the next authoritative read and never consulted by the
// booking engine.
package repository

import (
	"context"
	"sync"
	"time"

	"slotnik/internal/models"
)

type MemoryProfileCache struct {
	profiles   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

type cachedProfile struct {
	profile   *models.UserProfile
	expiresAt time.Time
}

func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	return &MemoryProfileCache{
		ttl: ttl,
	}
}

func (r *MemoryProfileCache) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	val, ok := r.profiles.Load(uid)
	if !ok {
		return nil, nil
	}
	entry := val.(*cachedProfile)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.profiles.Delete(uid)
		return nil, nil
	}
	return entry.profile.Clone(), nil
}

func (r *MemoryProfileCache) SetProfile(ctx context.Context, profile *models.UserProfile) error {
	r.profiles.Store(profile.UID, &cachedProfile{
		profile:   profile.Clone(),
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryProfileCache) ClearProfile(ctx context.Context, uid string) error {
	r.profiles.Delete(uid)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryProfileCache) CheckRateLimit(ctx context.Context, uid string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(uid)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(uid, entry)
	return entry.count <= limit, nil
}
