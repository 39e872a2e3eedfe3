package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/pkg/errors"
)

type brandCacheMetadata struct {
	LastUpdated  time.Time `json:"lastUpdated"`
	TotalEntries int       `json:"totalEntries"`
}

type brandCacheDocument struct {
	Brands   map[string]domain.BrandCacheEntry `json:"brands"`
	Metadata brandCacheMetadata                `json:"metadata"`
}

// BrandCacheStore maps normalized brand keys to verified advertiser identities.
// It is hydrated from a JSON file on first use and written through on every
// successful save. Existing keys are never overwritten.
//
// Two processes sharing one file can lose each other's entries: each save
// rewrites the whole document from its own in-memory view.
type BrandCacheStore struct {
	path     string
	provider string
	entries  map[string]domain.BrandCacheEntry
	meta     brandCacheMetadata
	dirty    bool
	loadOnce sync.Once
	mutex    sync.RWMutex
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewBrandCacheStore(path, provider string, logger *logger.Logger, metrics *metrics.Metrics) *BrandCacheStore {
	return &BrandCacheStore{
		path:     path,
		provider: provider,
		entries:  make(map[string]domain.BrandCacheEntry),
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Init hydrates the cache eagerly. Calling it is optional.
func (s *BrandCacheStore) Init(ctx context.Context) {
	s.ensureLoaded(ctx)
}

func (s *BrandCacheStore) ensureLoaded(ctx context.Context) {
	s.loadOnce.Do(func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		s.load(ctx)
	})
}

func (s *BrandCacheStore) load(ctx context.Context) {
	log := s.logger.WithProvider(ctx, s.provider).WithField("path", s.path)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("Brand cache file not found, starting empty")
		} else {
			log.WithError(errors.Wrap(err, "read brand cache")).Warn("Brand cache unreadable, starting empty")
		}
		return
	}

	var doc brandCacheDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithError(errors.Wrap(domain.ErrCacheCorrupt, err.Error())).Warn("Brand cache corrupt, starting empty")
		return
	}

	for key, entry := range doc.Brands {
		normalized := domain.NormalizeBrandKey(key)
		if normalized == "" || entry.ExternalID == "" {
			continue
		}
		if _, exists := s.entries[normalized]; exists {
			continue
		}
		s.entries[normalized] = entry
	}
	s.meta = doc.Metadata

	log.WithField("entries", len(s.entries)).Info("Brand cache loaded")
}

func (s *BrandCacheStore) Lookup(ctx context.Context, term string) (domain.BrandCacheEntry, bool) {
	s.ensureLoaded(ctx)

	key := domain.NormalizeBrandKey(term)
	if key == "" {
		return domain.BrandCacheEntry{}, false
	}

	s.mutex.RLock()
	entry, ok := s.entries[key]
	s.mutex.RUnlock()

	s.metrics.RecordBrandCacheLookup(s.provider, ok)
	return entry, ok
}

// Save stores entry under term unless the key already exists. It reports
// whether a new entry was added. A persistence error leaves the entry in
// memory and is retried by the next save or Flush.
func (s *BrandCacheStore) Save(ctx context.Context, term string, entry domain.BrandCacheEntry) (bool, error) {
	key := domain.NormalizeBrandKey(term)
	if key == "" || entry.ExternalID == "" {
		s.metrics.RecordBrandCacheWrite(s.provider, "invalid")
		return false, errors.Errorf("brand cache entry needs a term and an external id (term=%q)", term)
	}

	s.ensureLoaded(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entries[key]; exists {
		s.metrics.RecordBrandCacheWrite(s.provider, "exists")
		return false, nil
	}

	s.entries[key] = entry
	s.meta = brandCacheMetadata{LastUpdated: s.now().UTC(), TotalEntries: len(s.entries)}
	s.dirty = true

	if err := s.persistLocked(); err != nil {
		s.metrics.RecordBrandCacheWrite(s.provider, "persist_failed")
		return true, err
	}

	s.metrics.RecordBrandCacheWrite(s.provider, "saved")
	s.logger.WithProvider(ctx, s.provider).WithFields(map[string]any{
		"brand_key":   key,
		"external_id": entry.ExternalID,
		"name":        entry.Name,
	}).Info("Brand cache entry saved")

	return true, nil
}

// Flush writes pending changes to disk.
func (s *BrandCacheStore) Flush(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.logger.WithProvider(ctx, s.provider).WithField("entries", len(s.entries)).Info("Brand cache flushed")
	return nil
}

// Snapshot returns a copy of all entries keyed by normalized brand.
func (s *BrandCacheStore) Snapshot(ctx context.Context) map[string]domain.BrandCacheEntry {
	s.ensureLoaded(ctx)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make(map[string]domain.BrandCacheEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

func (s *BrandCacheStore) persistLocked() error {
	doc := brandCacheDocument{Brands: s.entries, Metadata: s.meta}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode brand cache")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create brand cache directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create brand cache temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write brand cache")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close brand cache temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace brand cache file")
	}

	s.dirty = false
	return nil
}
