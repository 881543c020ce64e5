package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	appErrors "github.com/noah-isme/rbac-console/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilService *CacheService
	hit, err := nilService.Get(context.Background(), "k", &struct{}{})
	assert.False(t, hit)
	assert.NoError(t, err)
	assert.NoError(t, nilService.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilService.Invalidate(context.Background(), "*"))

	disabled := NewCacheService(newMemoryCache(), nil, 0, nil, false)
	assert.False(t, disabled.Enabled())
}

func TestCacheServiceHitMissMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCache(), metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", map[string]int{"a": 1}, 0))
	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	assert.Equal(t, uint64(1), metrics.cacheHitCount)
	assert.Equal(t, uint64(1), metrics.cacheMissCount)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var ratio float64
	for _, family := range families {
		if family.GetName() == "cache_hit_ratio" {
			ratio = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 0.5, ratio)
}

func TestCacheServiceSetError(t *testing.T) {
	repo := newMemoryCache()
	repo.setErr = errors.New("redis down")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	assert.Error(t, svc.Set(context.Background(), "k", 1, 0))
}

func TestUserMutationsInvalidateCachedPages(t *testing.T) {
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	repo := newMockUserRepo(models.User{ID: "1", Email: "a@school.com", Role: models.RoleStudent})
	svc := NewUserService(repo, nil, nil, cache, UserServiceConfig{PasswordCost: 4})
	ctx := context.Background()

	_, err := svc.List(ctx, dto.ListUsersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	_, err = svc.List(ctx, dto.ListUsersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.Create(ctx, dto.CreateUserRequest{Name: "B", Email: "b@school.com", Password: "secret1"}, "", models.RequestMeta{})
	require.NoError(t, err)

	resp, err := svc.List(ctx, dto.ListUsersQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.Equal(t, 2, resp.Total)
}
