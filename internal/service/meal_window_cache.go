package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/pkg/cache"
	"github.com/noah-isme/meal-gate-api/pkg/clock"
	appErrors "github.com/noah-isme/meal-gate-api/pkg/errors"
)

// MealWindowCache holds the registry's view of the current configuration.
type MealWindowCache interface {
	Load(ctx context.Context) ([]models.MealWindow, bool)
	Store(ctx context.Context, windows []models.MealWindow)
	Invalidate(ctx context.Context)
}

type mealWindowCacheKey struct{}

type memoryMealWindowCache struct {
	store *cache.TTLStore[mealWindowCacheKey, []models.MealWindow]
}

// NewMemoryMealWindowCache keeps the configuration in process for ttl.
func NewMemoryMealWindowCache(ttl time.Duration, clk clock.Clock) MealWindowCache {
	return &memoryMealWindowCache{store: cache.NewTTLStore[mealWindowCacheKey, []models.MealWindow](ttl, clk)}
}

func (c *memoryMealWindowCache) Load(context.Context) ([]models.MealWindow, bool) {
	windows, ok := c.store.Get(mealWindowCacheKey{})
	if !ok {
		return nil, false
	}
	return cloneWindows(windows), true
}

func (c *memoryMealWindowCache) Store(_ context.Context, windows []models.MealWindow) {
	c.store.Set(mealWindowCacheKey{}, cloneWindows(windows))
}

func (c *memoryMealWindowCache) Invalidate(context.Context) {
	c.store.Delete(mealWindowCacheKey{})
}

// jsonCacheRepository is satisfied by repository.CacheRepository.
type jsonCacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const mealWindowsCacheKey = "meal_windows"

type redisMealWindowCache struct {
	repo   jsonCacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisMealWindowCache shares the configuration between instances through Redis.
// Redis failures degrade to cache misses.
func NewRedisMealWindowCache(repo jsonCacheRepository, ttl time.Duration, logger *zap.Logger) MealWindowCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisMealWindowCache{repo: repo, ttl: ttl, logger: logger}
}

func (c *redisMealWindowCache) Load(ctx context.Context) ([]models.MealWindow, bool) {
	var windows []models.MealWindow
	if err := c.repo.Get(ctx, mealWindowsCacheKey, &windows); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("meal window cache get failed", zap.Error(err))
		}
		return nil, false
	}
	return windows, len(windows) > 0
}

func (c *redisMealWindowCache) Store(ctx context.Context, windows []models.MealWindow) {
	if err := c.repo.Set(ctx, mealWindowsCacheKey, windows, c.ttl); err != nil {
		c.logger.Warn("meal window cache set failed", zap.Error(err))
	}
}

func (c *redisMealWindowCache) Invalidate(ctx context.Context) {
	if err := c.repo.Delete(ctx, mealWindowsCacheKey); err != nil {
		c.logger.Warn("meal window cache invalidate failed", zap.Error(err))
	}
}

func cloneWindows(windows []models.MealWindow) []models.MealWindow {
	if windows == nil {
		return nil
	}
	out := make([]models.MealWindow, len(windows))
	copy(out, windows)
	return out
}
