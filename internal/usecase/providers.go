package usecase

import (
	"net/url"
	"strings"

	"adlens/internal/domain"
)

const metaAdLibraryURL = "https://www.facebook.com/ads/library/"

// ProviderStrategy holds what differs between ad-transparency providers: the
// actor that scrapes them, how its input is shaped and how its records are
// normalized.
type ProviderStrategy interface {
	Name() domain.Provider
	ActorID() string
	SearchInput(term string, opts domain.FetchOptions, limit int) domain.RunInput
	ByIDInput(entry domain.BrandCacheEntry, opts domain.FetchOptions, limit int) domain.RunInput
	Normalizer() Normalizer
}

// MetaStrategy drives a Facebook Ad Library scraper through library URLs.
type MetaStrategy struct {
	actorID    string
	normalizer *MetaNormalizer
}

func NewMetaStrategy(actorID string) *MetaStrategy {
	return &MetaStrategy{actorID: actorID, normalizer: NewMetaNormalizer()}
}

func (s *MetaStrategy) Name() domain.Provider  { return domain.ProviderMeta }
func (s *MetaStrategy) ActorID() string        { return s.actorID }
func (s *MetaStrategy) Normalizer() Normalizer { return s.normalizer }

func (s *MetaStrategy) SearchInput(term string, opts domain.FetchOptions, limit int) domain.RunInput {
	q := metaBaseQuery(opts)
	q.Set("q", term)
	q.Set("search_type", "keyword_unordered")
	return metaInput(q, limit)
}

func (s *MetaStrategy) ByIDInput(entry domain.BrandCacheEntry, opts domain.FetchOptions, limit int) domain.RunInput {
	q := metaBaseQuery(opts)
	q.Set("view_all_page_id", entry.ExternalID)
	q.Set("search_type", "page")
	return metaInput(q, limit)
}

func metaBaseQuery(opts domain.FetchOptions) url.Values {
	country := strings.ToUpper(opts.CountryCode)
	if country == "" {
		country = "ALL"
	}
	status := "all"
	if opts.ActiveOnly {
		status = "active"
	}

	q := url.Values{}
	q.Set("active_status", status)
	q.Set("ad_type", "all")
	q.Set("country", country)
	q.Set("media_type", "all")
	return q
}

func metaInput(q url.Values, limit int) domain.RunInput {
	return domain.RunInput{
		"urls":            []map[string]string{{"url": metaAdLibraryURL + "?" + q.Encode()}},
		"count":           limit,
		"scrapeAdDetails": false,
	}
}

// GoogleStrategy drives a Google Ads Transparency Center scraper.
type GoogleStrategy struct {
	actorID    string
	normalizer *GoogleNormalizer
}

func NewGoogleStrategy(actorID string) *GoogleStrategy {
	return &GoogleStrategy{actorID: actorID, normalizer: NewGoogleNormalizer()}
}

func (s *GoogleStrategy) Name() domain.Provider  { return domain.ProviderGoogle }
func (s *GoogleStrategy) ActorID() string        { return s.actorID }
func (s *GoogleStrategy) Normalizer() Normalizer { return s.normalizer }

func (s *GoogleStrategy) SearchInput(term string, opts domain.FetchOptions, limit int) domain.RunInput {
	return domain.RunInput{
		"searchQuery": term,
		"region":      googleRegionCode(opts.CountryCode),
		"maxItems":    limit,
	}
}

func (s *GoogleStrategy) ByIDInput(entry domain.BrandCacheEntry, opts domain.FetchOptions, limit int) domain.RunInput {
	return domain.RunInput{
		"advertiserIds": []string{entry.ExternalID},
		"region":        googleRegionCode(opts.CountryCode),
		"maxItems":      limit,
	}
}

func googleRegionCode(country string) string {
	if country == "" {
		return "anywhere"
	}
	return strings.ToUpper(country)
}
