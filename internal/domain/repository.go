package domain

import (
	"context"
	"time"
)

// interface for the remote actor platform
type ActorClient interface {
	Run(ctx context.Context, actorID string, input RunInput, timeout time.Duration) (*RunHandle, error)
	ListItems(ctx context.Context, datasetID string, limit int) ([]RawRecord, error)
}

// interface for the brand -> advertiser identity cache
type BrandCache interface {
	Lookup(ctx context.Context, term string) (BrandCacheEntry, bool)
	Save(ctx context.Context, term string, entry BrandCacheEntry) (bool, error)
}

// interface for the coarse search-history cache layered above the fetchers
type SearchHistoryStore interface {
	SaveSearch(ctx context.Context, item SearchHistoryItem) error
	GetCachedSearch(ctx context.Context, provider Provider, brand string) (*SearchHistoryItem, error)
}

// interface for a per-provider fetch orchestrator
type AdFetcher interface {
	Provider() Provider
	FetchAdsByBrand(ctx context.Context, brand string, opts FetchOptions) *FetchResult
}
