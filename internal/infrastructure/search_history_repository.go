package infrastructure

import (
	"context"
	"sync"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
)

// in-memory domain.SearchHistoryStore with a fixed TTL
type SearchHistoryRepository struct {
	data   map[string]domain.SearchHistoryItem
	ttl    time.Duration
	mutex  sync.RWMutex
	logger *logger.Logger
	now    func() time.Time
}

func NewSearchHistoryRepository(ttl time.Duration, logger *logger.Logger) *SearchHistoryRepository {
	return &SearchHistoryRepository{
		data:   make(map[string]domain.SearchHistoryItem),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func historyKey(provider domain.Provider, brand string) string {
	return string(provider) + "|" + domain.NormalizeBrandKey(brand)
}

func (r *SearchHistoryRepository) SaveSearch(ctx context.Context, item domain.SearchHistoryItem) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if item.SearchedAt.IsZero() {
		item.SearchedAt = r.now()
	}
	item.BrandKey = domain.NormalizeBrandKey(item.Brand)
	r.data[historyKey(item.Provider, item.Brand)] = item

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"provider": item.Provider,
		"brand":    item.BrandKey,
		"count":    len(item.Ads),
	}).Debug("Stored search in history")
	return nil
}

func (r *SearchHistoryRepository) GetCachedSearch(ctx context.Context, provider domain.Provider, brand string) (*domain.SearchHistoryItem, error) {
	r.mutex.RLock()
	item, ok := r.data[historyKey(provider, brand)]
	r.mutex.RUnlock()

	if !ok || r.now().Sub(item.SearchedAt) > r.ttl {
		return nil, domain.ErrSearchNotFound
	}
	return &item, nil
}

// Purge drops expired entries and returns how many were removed.
func (r *SearchHistoryRepository) Purge(ctx context.Context) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for key, item := range r.data {
		if r.now().Sub(item.SearchedAt) > r.ttl {
			delete(r.data, key)
			removed++
		}
	}
	if removed > 0 {
		r.logger.WithContext(ctx).WithField("removed", removed).Debug("Purged expired searches")
	}
	return removed
}
