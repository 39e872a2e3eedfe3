package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"
)

const (
	maxAdsLimit        = 100
	historySaveTimeout = 10 * time.Second
)

type FetchSettings struct {
	DefaultMaxAds    int
	OverFetchFactor  int
	MaxUpstreamItems int
	RunTimeout       time.Duration
}

// FetchService resolves a brand to one advertiser and returns that
// advertiser's ads for a single provider. Known brands are fetched by their
// cached advertiser id; unknown brands go through a keyword search followed by
// identity resolution, and a confident match is written to the brand cache.
type FetchService struct {
	strategy  ProviderStrategy
	retry     *RetryController
	cache     domain.BrandCache
	resolver  *IdentityResolver
	history   domain.SearchHistoryStore
	settings  FetchSettings
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	historyWG sync.WaitGroup
}

// NewFetchService wires a provider pipeline. history may be nil.
func NewFetchService(
	strategy ProviderStrategy,
	retry *RetryController,
	cache domain.BrandCache,
	history domain.SearchHistoryStore,
	settings FetchSettings,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *FetchService {
	if settings.DefaultMaxAds <= 0 {
		settings.DefaultMaxAds = 20
	}
	if settings.OverFetchFactor < 1 {
		settings.OverFetchFactor = 1
	}
	return &FetchService{
		strategy: strategy,
		retry:    retry,
		cache:    cache,
		resolver: NewIdentityResolver(),
		history:  history,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *FetchService) Provider() domain.Provider {
	return s.strategy.Name()
}

// FetchAdsByBrand never returns an error: upstream failures come back as a
// result with Success false and a classified ErrorCode.
func (s *FetchService) FetchAdsByBrand(ctx context.Context, brand string, opts domain.FetchOptions) *domain.FetchResult {
	start := s.now()
	brand = strings.TrimSpace(brand)
	opts = s.applyDefaults(opts)
	provider := s.strategy.Name()

	result := &domain.FetchResult{
		Ads:      []domain.Ad{},
		Metadata: domain.FetchMetadata{Query: brand, Provider: provider},
	}

	if brand == "" {
		s.fail(ctx, result, domain.NewFetchError(domain.KindUnknown, domain.ErrBrandRequired.Error(), nil))
	} else if entry, ok := s.cache.Lookup(ctx, brand); ok {
		s.fetchByID(ctx, result, entry, opts)
	} else {
		s.coldSearch(ctx, result, brand, opts)
	}

	duration := s.now().Sub(start)
	result.Metadata.DurationMs = duration.Milliseconds()
	s.metrics.RecordFetch(string(provider), outcomeLabel(result), duration)

	s.logger.WithProvider(ctx, string(provider)).WithFields(map[string]any{
		"brand":        brand,
		"outcome":      result.Outcome,
		"brand_source": result.BrandSource,
		"ads":          len(result.Ads),
		"total_found":  result.TotalFound,
		"duration":     duration,
	}).Info("Fetch completed")

	if result.Success && len(result.Ads) > 0 {
		s.saveHistory(ctx, brand, result)
	}

	return result
}

// Wait blocks until pending search-history writes finish.
func (s *FetchService) Wait() {
	s.historyWG.Wait()
}

func (s *FetchService) applyDefaults(opts domain.FetchOptions) domain.FetchOptions {
	if opts.MaxAds <= 0 {
		opts.MaxAds = s.settings.DefaultMaxAds
	}
	if opts.MaxAds > maxAdsLimit {
		opts.MaxAds = maxAdsLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.settings.RunTimeout
	}
	opts.CountryCode = strings.ToUpper(strings.TrimSpace(opts.CountryCode))
	return opts
}

func (s *FetchService) fetchByID(ctx context.Context, result *domain.FetchResult, entry domain.BrandCacheEntry, opts domain.FetchOptions) {
	s.logger.WithProvider(ctx, string(s.strategy.Name())).WithFields(map[string]any{
		"external_id": entry.ExternalID,
		"name":        entry.Name,
	}).Info("Brand cache hit, fetching by advertiser id")

	input := s.strategy.ByIDInput(entry, opts, opts.MaxAds)
	ads, err := s.runActor(ctx, result, input, opts.MaxAds, result.Metadata.Query, opts.Timeout)
	if err != nil {
		s.fail(ctx, result, err)
		return
	}

	// Scraped pages occasionally include ads run by partner pages
	scoped := filterAds(ads, func(ad domain.Ad) bool {
		return ad.AdvertiserID == "" || ad.AdvertiserID == entry.ExternalID
	})

	s.succeed(result, scoped, opts, domain.BrandSourceCached, entry.Name)
}

func (s *FetchService) coldSearch(ctx context.Context, result *domain.FetchResult, brand string, opts domain.FetchOptions) {
	log := s.logger.WithProvider(ctx, string(s.strategy.Name())).WithField("brand", brand)

	limit := s.upstreamLimit(opts.MaxAds)
	input := s.strategy.SearchInput(brand, opts, limit)
	ads, err := s.runActor(ctx, result, input, limit, brand, opts.Timeout)
	if err != nil {
		s.fail(ctx, result, err)
		return
	}

	if len(ads) == 0 {
		log.Info("Keyword search returned no ads")
		s.notVerified(result)
		return
	}

	candidate := s.resolver.ResolveBestIdentity(ads, brand)
	if candidate == nil {
		log.WithField("ads", len(ads)).Info("No advertiser matches the brand name")
		s.notVerified(result)
		return
	}

	log.WithFields(map[string]any{
		"external_id": candidate.ExternalID,
		"name":        candidate.Name,
		"score":       candidate.Score,
		"count":       candidate.Count,
	}).Info("Advertiser identity discovered")

	matched := filterAds(ads, func(ad domain.Ad) bool {
		return ad.AdvertiserID == candidate.ExternalID
	})

	s.saveBrand(ctx, brand, candidate)
	s.succeed(result, matched, opts, domain.BrandSourceDiscovered, candidate.Name)
}

// upstreamLimit over-fetches so filtering to one advertiser still leaves
// enough ads.
func (s *FetchService) upstreamLimit(maxAds int) int {
	limit := maxAds * s.settings.OverFetchFactor
	if s.settings.MaxUpstreamItems > 0 && limit > s.settings.MaxUpstreamItems {
		limit = s.settings.MaxUpstreamItems
	}
	return max(limit, maxAds)
}

// runActor starts a run, checks its terminal status and normalizes the dataset.
func (s *FetchService) runActor(ctx context.Context, result *domain.FetchResult, input domain.RunInput, limit int, term string, timeout time.Duration) ([]domain.Ad, error) {
	handle, err := s.retry.RunWithRetry(ctx, s.strategy.ActorID(), input, timeout)
	if err != nil {
		return nil, err
	}
	result.Metadata.RunID = handle.ID
	result.Metadata.DatasetID = handle.DefaultDatasetID

	switch handle.Status {
	case domain.RunStatusSucceeded:
	case domain.RunStatusTimedOut:
		return nil, domain.NewFetchError(domain.KindTimeout, fmt.Sprintf("actor run %s timed out", handle.ID), nil)
	default:
		return nil, domain.NewFetchError(domain.KindRunFailed, fmt.Sprintf("actor run %s finished with status %s", handle.ID, handle.Status), nil)
	}

	records, err := s.retry.ListItemsWithRetry(ctx, handle.DefaultDatasetID, limit)
	if err != nil {
		return nil, err
	}
	result.Metadata.UpstreamItems = len(records)

	return s.normalizeAll(ctx, records, term), nil
}

func (s *FetchService) normalizeAll(ctx context.Context, records []domain.RawRecord, term string) []domain.Ad {
	provider := string(s.strategy.Name())
	normalizer := s.strategy.Normalizer()
	fetchedAt := s.now().UTC()

	ads := make([]domain.Ad, 0, len(records))
	seen := make(map[string]bool, len(records))

	for i, raw := range records {
		ad, err := normalizer.Normalize(raw, term, fetchedAt)
		if err != nil {
			s.metrics.RecordSkippedRecord(provider, "malformed")
			s.logger.WithProvider(ctx, provider).WithError(err).WithField("index", i).Warn("Skipping malformed record")
			continue
		}
		if seen[ad.ID] {
			s.metrics.RecordSkippedRecord(provider, "duplicate")
			continue
		}
		seen[ad.ID] = true
		ads = append(ads, ad)
	}

	return ads
}

// saveBrand is best-effort; failures never reach the caller.
func (s *FetchService) saveBrand(ctx context.Context, brand string, candidate *domain.CandidateIdentity) {
	if candidate.ExternalID == "" {
		return
	}

	entry := domain.BrandCacheEntry{
		ExternalID: candidate.ExternalID,
		Name:       candidate.Name,
		Domain:     candidate.Domain,
	}
	if _, err := s.cache.Save(ctx, brand, entry); err != nil {
		s.logger.WithProvider(ctx, string(s.strategy.Name())).WithError(err).
			WithField("brand", brand).Warn("Failed to save brand cache entry")
	}
}

func (s *FetchService) saveHistory(ctx context.Context, brand string, result *domain.FetchResult) {
	if s.history == nil {
		return
	}

	item := domain.SearchHistoryItem{
		Provider:          s.strategy.Name(),
		Brand:             brand,
		BrandKey:          domain.NormalizeBrandKey(brand),
		Ads:               result.Ads,
		TotalFound:        result.TotalFound,
		BrandSource:       result.BrandSource,
		VerifiedBrandName: result.VerifiedBrandName,
		SearchedAt:        s.now().UTC(),
	}

	s.historyWG.Add(1)
	go func() {
		defer s.historyWG.Done()

		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
		defer cancel()

		if err := s.history.SaveSearch(saveCtx, item); err != nil {
			s.logger.WithProvider(saveCtx, string(item.Provider)).WithError(err).
				WithField("brand", brand).Warn("Failed to save search history")
		}
	}()
}

// succeed applies the activeOnly filter, counts, then truncates.
func (s *FetchService) succeed(result *domain.FetchResult, ads []domain.Ad, opts domain.FetchOptions, source domain.BrandSource, verifiedName string) {
	if opts.ActiveOnly {
		ads = filterAds(ads, func(ad domain.Ad) bool {
			return ad.Status != domain.StatusInactive && ad.Status != domain.StatusRemoved
		})
	}

	result.TotalFound = len(ads)
	if len(ads) > opts.MaxAds {
		ads = ads[:opts.MaxAds]
	}

	result.Success = true
	result.Outcome = domain.OutcomeSuccess
	result.Ads = ads
	result.BrandSource = source
	result.VerifiedBrandName = verifiedName
}

func (s *FetchService) notVerified(result *domain.FetchResult) {
	result.Success = true
	result.Outcome = domain.OutcomeNotVerified
	result.Ads = []domain.Ad{}
	result.TotalFound = 0
	result.BrandSource = domain.BrandSourceNotVerified
}

func (s *FetchService) fail(ctx context.Context, result *domain.FetchResult, err error) {
	kind := domain.KindOf(err)

	result.Success = false
	result.Outcome = domain.OutcomeFailure
	result.Ads = []domain.Ad{}
	result.ErrorCode = kind
	result.Error = err.Error()

	s.logger.WithProvider(ctx, string(s.strategy.Name())).WithError(err).WithFields(map[string]any{
		"brand":      result.Metadata.Query,
		"error_kind": kind,
		"run_id":     result.Metadata.RunID,
	}).Error("Fetch failed")
}

func outcomeLabel(result *domain.FetchResult) string {
	switch result.Outcome {
	case domain.OutcomeFailure:
		return string(result.ErrorCode)
	case domain.OutcomeSuccess:
		return string(result.BrandSource)
	}
	return string(result.Outcome)
}

func filterAds(ads []domain.Ad, keep func(domain.Ad) bool) []domain.Ad {
	out := make([]domain.Ad, 0, len(ads))
	for _, ad := range ads {
		if keep(ad) {
			out = append(out, ad)
		}
	}
	return out
}
