package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/repository"
)

func newCacheService(t *testing.T, metrics *MetricsService) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := repository.NewCacheRepository(client, nil)
	return NewCacheService(repo, metrics, time.Minute, "casework", nil, true), mr
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	metrics := NewMetricsService()
	svc, mr := newCacheService(t, metrics)
	ctx := context.Background()

	var detail models.CaseDetail
	hit, err := svc.Get(ctx, "cases:detail:case-1", &detail)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "cases:detail:case-1", models.CaseDetail{Case: models.Case{ID: "case-1"}}, 0))
	assert.True(t, mr.Exists("casework:cases:detail:case-1"))
	assert.Equal(t, time.Minute, mr.TTL("casework:cases:detail:case-1"))

	hit, err = svc.Get(ctx, "cases:detail:case-1", &detail)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "case-1", detail.Case.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceInvalidate(t *testing.T) {
	svc, mr := newCacheService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "cases:detail:case-1", map[string]string{"id": "case-1"}, time.Hour))
	require.NoError(t, svc.Set(ctx, "cases:detail:case-2", map[string]string{"id": "case-2"}, time.Hour))

	require.NoError(t, svc.Invalidate(ctx, "cases:detail:case-1*"))
	assert.False(t, mr.Exists("casework:cases:detail:case-1"))
	assert.True(t, mr.Exists("casework:cases:detail:case-2"))
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, "", nil, true)
	assert.False(t, svc.Enabled())

	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, svc.Invalidate(context.Background(), "k*"))
}
