package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/models"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, zap.NewNop()), srv
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	detail := models.CaseDetail{Case: models.Case{ID: "case-1", Status: models.CaseStatusInIntake}}
	require.NoError(t, repo.Set(ctx, "cases:detail:case-1", detail, time.Minute))
	assert.True(t, srv.Exists("cases:detail:case-1"))

	var got models.CaseDetail
	require.NoError(t, repo.Get(ctx, "cases:detail:case-1", &got))
	assert.Equal(t, models.CaseStatusInIntake, got.Case.Status)

	srv.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "cases:detail:case-1", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "cases:detail:case-1", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "cases:detail:case-2", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.Set(ctx, "other:key", map[string]string{"a": "b"}, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "cases:detail:*"))
	assert.False(t, srv.Exists("cases:detail:case-1"))
	assert.False(t, srv.Exists("cases:detail:case-2"))
	assert.True(t, srv.Exists("other:key"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
