package delivery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/gin-gonic/gin"
)

const (
	maxBrandLength   = 100
	maxAdsPerRequest = 100
	minTimeoutMs     = 10_000
	maxTimeoutMs     = 600_000

	searchCacheHeader   = "X-Search-Cache"
	validationErrorCode = "VALIDATION_ERROR"
)

// BrandDirectory is the read side of a provider's brand cache.
type BrandDirectory interface {
	Lookup(ctx context.Context, term string) (domain.BrandCacheEntry, bool)
	Snapshot(ctx context.Context) map[string]domain.BrandCacheEntry
}

// handles HTTP requests
type HTTPHandlers struct {
	fetchers   map[domain.Provider]domain.AdFetcher
	brands     map[domain.Provider]BrandDirectory
	history       domain.SearchHistoryStore
	defaultMaxAds int
	logger        *logger.Logger
	metrics       *metrics.Metrics
	production    bool
}

// creates new HTTP handlers; history may be nil. defaultMaxAds is the limit
// fetchers apply when a request leaves maxAds unset.
func NewHTTPHandlers(
	fetchers []domain.AdFetcher,
	brands map[domain.Provider]BrandDirectory,
	history domain.SearchHistoryStore,
	defaultMaxAds int,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	production bool,
) *HTTPHandlers {
	byProvider := make(map[domain.Provider]domain.AdFetcher, len(fetchers))
	for _, f := range fetchers {
		byProvider[f.Provider()] = f
	}
	return &HTTPHandlers{
		fetchers:      byProvider,
		brands:        brands,
		history:       history,
		defaultMaxAds: defaultMaxAds,
		logger:        logger,
		metrics:       metrics,
		production:    production,
	}
}

type searchRequest struct {
	Brand       string `json:"brand"`
	MaxAds      int    `json:"maxAds"`
	CountryCode string `json:"countryCode"`
	TimeoutMs   int    `json:"timeoutMs"`
	ActiveOnly  bool   `json:"activeOnly"`
}

// options validates the request and converts it to fetch options.
func (r *searchRequest) options() (domain.FetchOptions, error) {
	r.Brand = strings.TrimSpace(r.Brand)
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))

	switch {
	case r.Brand == "":
		return domain.FetchOptions{}, domain.ErrBrandRequired
	case utf8.RuneCountInString(r.Brand) > maxBrandLength:
		return domain.FetchOptions{}, domain.ErrBrandTooLong
	case r.MaxAds < 0 || r.MaxAds > maxAdsPerRequest:
		return domain.FetchOptions{}, domain.ErrInvalidMaxAds
	case r.CountryCode != "" && !isCountryCode(r.CountryCode):
		return domain.FetchOptions{}, domain.ErrInvalidCountryCode
	case r.TimeoutMs != 0 && (r.TimeoutMs < minTimeoutMs || r.TimeoutMs > maxTimeoutMs):
		return domain.FetchOptions{}, domain.ErrInvalidTimeout
	}

	return domain.FetchOptions{
		MaxAds:      r.MaxAds,
		CountryCode: r.CountryCode,
		Timeout:     time.Duration(r.TimeoutMs) * time.Millisecond,
		ActiveOnly:  r.ActiveOnly,
	}, nil
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, ch := range s {
		if ch < 'A' || ch > 'Z' {
			return false
		}
	}
	return true
}

// SearchAds fetches a brand's ads from one provider
func (h *HTTPHandlers) SearchAds(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.GetString("request_id")

	fetcher, ok := h.fetcherFor(c)
	if !ok {
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error":      "Invalid request body",
			"errorCode":  validationErrorCode,
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	opts, err := req.options()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":    false,
			"error":      "Invalid parameters",
			"errorCode":  validationErrorCode,
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	provider := fetcher.Provider()
	log := h.logger.WithProvider(ctx, string(provider)).WithField("brand", req.Brand)

	// Recent identical searches are served from history
	if cached := h.recentSearch(ctx, provider, req, opts); cached != nil {
		log.Info("Serving search from history")
		c.Header(searchCacheHeader, "hit")
		c.JSON(http.StatusOK, cached)
		return
	}

	result := fetcher.FetchAdsByBrand(ctx, req.Brand, opts)
	if !result.Success {
		c.JSON(statusForKind(result.ErrorCode), h.failureBody(result, requestID))
		return
	}

	c.Header(searchCacheHeader, "miss")
	c.JSON(http.StatusOK, result)
}

// recentSearch returns a history hit shaped as a fetch result, or nil.
// activeOnly searches always go upstream since history keeps every status.
func (h *HTTPHandlers) recentSearch(ctx context.Context, provider domain.Provider, req searchRequest, opts domain.FetchOptions) *domain.FetchResult {
	if h.history == nil || opts.ActiveOnly {
		return nil
	}

	item, err := h.history.GetCachedSearch(ctx, provider, req.Brand)
	if err != nil {
		if !errors.Is(err, domain.ErrSearchNotFound) {
			h.logger.WithProvider(ctx, string(provider)).WithError(err).Warn("Search history lookup failed")
		}
		h.metrics.RecordSearchHistoryLookup(string(provider), false)
		return nil
	}

	maxAds := opts.MaxAds
	if maxAds <= 0 {
		maxAds = h.defaultMaxAds
	}

	// The stored ads were cut to the earlier request's limit
	if maxAds > len(item.Ads) && item.TotalFound > len(item.Ads) {
		h.metrics.RecordSearchHistoryLookup(string(provider), false)
		return nil
	}
	h.metrics.RecordSearchHistoryLookup(string(provider), true)

	ads := item.Ads
	if ads == nil {
		ads = []domain.Ad{}
	}
	if maxAds > 0 && len(ads) > maxAds {
		ads = ads[:maxAds]
	}

	return &domain.FetchResult{
		Success:           true,
		Outcome:           domain.OutcomeSuccess,
		Ads:               ads,
		TotalFound:        item.TotalFound,
		BrandSource:       item.BrandSource,
		VerifiedBrandName: item.VerifiedBrandName,
		Metadata: domain.FetchMetadata{
			Query:    req.Brand,
			Provider: provider,
		},
	}
}

func (h *HTTPHandlers) failureBody(result *domain.FetchResult, requestID string) gin.H {
	body := gin.H{
		"success":    false,
		"outcome":    result.Outcome,
		"error":      safeMessage(result.ErrorCode),
		"errorCode":  result.ErrorCode,
		"metadata":   result.Metadata,
		"request_id": requestID,
	}
	if !h.production {
		body["detail"] = result.Error
	}
	return body
}

// ListBrands returns every cached brand identity for a provider
func (h *HTTPHandlers) ListBrands(c *gin.Context) {
	directory, provider, ok := h.directoryFor(c)
	if !ok {
		return
	}

	brands := directory.Snapshot(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"provider":   provider,
		"brands":     brands,
		"total":      len(brands),
		"request_id": c.GetString("request_id"),
	})
}

// LookupBrand resolves a single brand through the cache
func (h *HTTPHandlers) LookupBrand(c *gin.Context) {
	requestID := c.GetString("request_id")

	directory, provider, ok := h.directoryFor(c)
	if !ok {
		return
	}

	brand := strings.TrimSpace(c.Query("brand"))
	if brand == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Missing required parameter",
			"message":    "brand parameter is required",
			"request_id": requestID,
		})
		return
	}

	entry, found := directory.Lookup(c.Request.Context(), brand)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      domain.ErrBrandNotFound.Error(),
			"brand":      brand,
			"provider":   provider,
			"request_id": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider":   provider,
		"brand":      brand,
		"brandKey":   domain.NormalizeBrandKey(brand),
		"entry":      entry,
		"request_id": requestID,
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	apiInfo := gin.H{
		"api_version": "v1",
		"service":     "adlens",
		"version":     "1.0.0",
		"description": "Brand ad search across ad transparency libraries with advertiser identity resolution",
		"providers":   []domain.Provider{domain.ProviderMeta, domain.ProviderGoogle},
		"endpoints": gin.H{
			"search": gin.H{
				"path":        "/api/v1/ads/{provider}/search",
				"method":      "POST",
				"description": "Fetch ads for a brand, resolving it to a single advertiser",
				"body": gin.H{
					"brand":       "Required: brand name, up to 100 characters",
					"maxAds":      "Optional: 1-100 (default: 20)",
					"countryCode": "Optional: 2-letter country code",
					"timeoutMs":   "Optional: 10000-600000",
					"activeOnly":  "Optional: only return running ads",
				},
				"example": `{"brand": "Nike", "maxAds": 10, "countryCode": "US"}`,
			},
			"brands": gin.H{
				"path":        "/api/v1/brands/{provider}",
				"method":      "GET",
				"description": "List cached brand identities",
			},
			"lookup": gin.H{
				"path":        "/api/v1/brands/{provider}/lookup",
				"method":      "GET",
				"description": "Look up one cached brand identity",
				"parameters": gin.H{
					"brand": "Required: brand name",
				},
				"example": "/api/v1/brands/meta/lookup?brand=nike",
			},
		},
		"request_id": c.GetString("request_id"),
	}

	c.JSON(http.StatusOK, apiInfo)
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	health := gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"service":    "adlens",
		"version":    "1.0.0",
		"providers":  len(h.fetchers),
		"request_id": c.GetString("request_id"),
	}

	c.JSON(http.StatusOK, health)
}

func (h *HTTPHandlers) fetcherFor(c *gin.Context) (domain.AdFetcher, bool) {
	provider, ok := domain.ParseProvider(strings.ToLower(c.Param("provider")))
	if ok {
		if fetcher, exists := h.fetchers[provider]; exists {
			return fetcher, true
		}
	}
	h.unknownProvider(c)
	return nil, false
}

func (h *HTTPHandlers) directoryFor(c *gin.Context) (BrandDirectory, domain.Provider, bool) {
	provider, ok := domain.ParseProvider(strings.ToLower(c.Param("provider")))
	if ok {
		if directory, exists := h.brands[provider]; exists {
			return directory, provider, true
		}
	}
	h.unknownProvider(c)
	return nil, "", false
}

func (h *HTTPHandlers) unknownProvider(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":    false,
		"error":      domain.ErrUnknownProvider.Error(),
		"provider":   c.Param("provider"),
		"request_id": c.GetString("request_id"),
	})
}
