package infrastructure

import (
	"context"
	"testing"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchHistoryRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewSearchHistoryRepository(24*time.Hour, logger.Discard())
	repo.now = func() time.Time { return now }

	err := repo.SaveSearch(ctx, domain.SearchHistoryItem{
		Provider:    domain.ProviderMeta,
		Brand:       "Nike",
		Ads:         []domain.Ad{{ID: "a1"}},
		BrandSource: domain.BrandSourceCached,
	})
	require.NoError(t, err)

	item, err := repo.GetCachedSearch(ctx, domain.ProviderMeta, "  NIKE ")
	require.NoError(t, err)
	assert.Equal(t, "nike", item.BrandKey)
	assert.Len(t, item.Ads, 1)
	assert.Equal(t, now, item.SearchedAt)

	_, err = repo.GetCachedSearch(ctx, domain.ProviderGoogle, "Nike")
	assert.ErrorIs(t, err, domain.ErrSearchNotFound)
}

func TestSearchHistoryRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewSearchHistoryRepository(24*time.Hour, logger.Discard())
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.SaveSearch(ctx, domain.SearchHistoryItem{Provider: domain.ProviderMeta, Brand: "Nike"}))

	now = now.Add(23 * time.Hour)
	_, err := repo.GetCachedSearch(ctx, domain.ProviderMeta, "nike")
	assert.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = repo.GetCachedSearch(ctx, domain.ProviderMeta, "nike")
	assert.ErrorIs(t, err, domain.ErrSearchNotFound)
	assert.Equal(t, 1, repo.Purge(ctx))
	assert.Equal(t, 0, repo.Purge(ctx))
}
