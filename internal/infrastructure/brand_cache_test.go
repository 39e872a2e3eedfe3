package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBrandCache(t *testing.T, path string) *BrandCacheStore {
	t.Helper()
	store := NewBrandCacheStore(path, "meta", logger.Discard(), metrics.New(prometheus.NewRegistry()))
	store.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return store
}

func TestBrandCacheStore_LookupNormalizesTerm(t *testing.T) {
	ctx := context.Background()
	store := newTestBrandCache(t, filepath.Join(t.TempDir(), "cache.json"))

	saved, err := store.Save(ctx, "Nike", domain.BrandCacheEntry{ExternalID: "100", Name: "Nike"})
	require.NoError(t, err)
	assert.True(t, saved)

	for _, term := range []string{"Nike", " nike ", "NIKE", "\tNiKe\n"} {
		entry, ok := store.Lookup(ctx, term)
		require.True(t, ok, term)
		assert.Equal(t, "100", entry.ExternalID, term)
	}

	_, ok := store.Lookup(ctx, "adidas")
	assert.False(t, ok)
	_, ok = store.Lookup(ctx, "   ")
	assert.False(t, ok)
}

func TestBrandCacheStore_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := newTestBrandCache(t, filepath.Join(t.TempDir(), "cache.json"))

	saved, err := store.Save(ctx, "Nike", domain.BrandCacheEntry{ExternalID: "A", Name: "Nike"})
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = store.Save(ctx, " NIKE", domain.BrandCacheEntry{ExternalID: "B", Name: "Nike Inc."})
	require.NoError(t, err)
	assert.False(t, saved)

	entry, ok := store.Lookup(ctx, "nike")
	require.True(t, ok)
	assert.Equal(t, "A", entry.ExternalID)
	assert.Equal(t, "Nike", entry.Name)
}

func TestBrandCacheStore_RejectsEmptyIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestBrandCache(t, filepath.Join(t.TempDir(), "cache.json"))

	_, err := store.Save(ctx, "Nike", domain.BrandCacheEntry{Name: "Nike"})
	assert.Error(t, err)
	_, err = store.Save(ctx, "  ", domain.BrandCacheEntry{ExternalID: "1"})
	assert.Error(t, err)
	assert.Empty(t, store.Snapshot(ctx))
}

func TestBrandCacheStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	first := newTestBrandCache(t, path)
	_, err := first.Save(ctx, "Acme", domain.BrandCacheEntry{ExternalID: "1", Name: "Acme Corp", Domain: "acme.com"})
	require.NoError(t, err)
	_, err = first.Save(ctx, "Widgets", domain.BrandCacheEntry{ExternalID: "2", Name: "Widgets Inc"})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc brandCacheDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 2, doc.Metadata.TotalEntries)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), doc.Metadata.LastUpdated)
	assert.Equal(t, "acme.com", doc.Brands["acme"].Domain)

	second := newTestBrandCache(t, path)
	entry, ok := second.Lookup(ctx, "ACME")
	require.True(t, ok)
	assert.Equal(t, domain.BrandCacheEntry{ExternalID: "1", Name: "Acme Corp", Domain: "acme.com"}, entry)
	snapshot := second.Snapshot(ctx)
	assert.Len(t, snapshot, 2)
	assert.Contains(t, snapshot, "widgets")
}

func TestBrandCacheStore_CorruptOrMissingFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	store := newTestBrandCache(t, corrupt)
	store.Init(ctx)
	assert.Empty(t, store.Snapshot(ctx))

	// a save after a corrupt load replaces the file with a valid document
	_, err := store.Save(ctx, "Nike", domain.BrandCacheEntry{ExternalID: "100", Name: "Nike"})
	require.NoError(t, err)
	reloaded := newTestBrandCache(t, corrupt)
	_, ok := reloaded.Lookup(ctx, "nike")
	assert.True(t, ok)

	missing := newTestBrandCache(t, filepath.Join(dir, "missing.json"))
	_, ok = missing.Lookup(ctx, "nike")
	assert.False(t, ok)
}

func TestBrandCacheStore_LoadNormalizesStoredKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	doc := `{"brands":{" Nike ":{"externalId":"100","name":"Nike"},"blank":{"externalId":"","name":"x"}},"metadata":{"totalEntries":2}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	store := newTestBrandCache(t, path)
	entry, ok := store.Lookup(ctx, "nike")
	require.True(t, ok)
	assert.Equal(t, "100", entry.ExternalID)
	_, ok = store.Lookup(ctx, "blank")
	assert.False(t, ok)
}

func TestBrandCacheStore_PersistFailureKeepsEntryInMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	store := newTestBrandCache(t, filepath.Join(blocker, "cache.json"))
	saved, err := store.Save(ctx, "Nike", domain.BrandCacheEntry{ExternalID: "100", Name: "Nike"})
	assert.True(t, saved)
	assert.Error(t, err)

	_, ok := store.Lookup(ctx, "nike")
	assert.True(t, ok)
	assert.Error(t, store.Flush(ctx))
}

func TestBrandCacheStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")
	store := newTestBrandCache(t, path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Save(ctx, fmt.Sprintf("brand-%d", i), domain.BrandCacheEntry{ExternalID: fmt.Sprint(i), Name: "B"})
			_, _ = store.Save(ctx, "shared", domain.BrandCacheEntry{ExternalID: fmt.Sprint(i), Name: "S"})
		}(i)
	}
	wg.Wait()

	require.NoError(t, store.Flush(ctx))
	reloaded := newTestBrandCache(t, path)
	assert.Len(t, reloaded.Snapshot(ctx), 21)
}
