package repository

import (
	"context"
	"testing"
	"time"

	"slotnik/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestMemoryProfileCache_SetGetClear(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	ctx := context.Background()

	profile := &models.UserProfile{
		UID:         "u-1",
		DisplayName: "Chris",
		PhoneNumber: "0912345678",
		MonthlyCancellations: map[string]int{
			"2023_12": 1,
		},
	}
	assert.NoError(t, cache.SetProfile(ctx, profile))

	got, err := cache.GetProfile(ctx, "u-1")
	assert.NoError(t, err)
	assert.Equal(t, "Chris", got.DisplayName)
	assert.Equal(t, 1, got.MonthlyCancellations["2023_12"])

	// Cached copies are isolated from caller mutations.
	got.DisplayName = "changed"
	again, err := cache.GetProfile(ctx, "u-1")
	assert.NoError(t, err)
	assert.Equal(t, "Chris", again.DisplayName)

	assert.NoError(t, cache.ClearProfile(ctx, "u-1"))
	gone, err := cache.GetProfile(ctx, "u-1")
	assert.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryProfileCache_Miss(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)

	got, err := cache.GetProfile(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryProfileCache_RateLimit(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "u-1", 3, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := cache.CheckRateLimit(ctx, "u-1", 3, time.Minute)
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Different user has its own window.
	allowed, err = cache.CheckRateLimit(ctx, "u-2", 3, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryProfileCache_RateLimitWindowReset(t *testing.T) {
	cache := NewMemoryProfileCache(time.Minute)
	ctx := context.Background()

	allowed, err := cache.CheckRateLimit(ctx, "u-1", 1, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = cache.CheckRateLimit(ctx, "u-1", 1, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(20 * time.Millisecond)

	allowed, err = cache.CheckRateLimit(ctx, "u-1", 1, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, allowed)
}
