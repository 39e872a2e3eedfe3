package usecase

import (
	"net/url"
	"testing"

	"adlens/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaInputURL(t *testing.T, input domain.RunInput) url.Values {
	t.Helper()
	urls, ok := input["urls"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, urls, 1)

	u, err := url.Parse(urls[0]["url"])
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)
	return u.Query()
}

func TestMetaStrategy_SearchInput(t *testing.T) {
	s := NewMetaStrategy("curious_coder~facebook-ads-library-scraper")
	assert.Equal(t, domain.ProviderMeta, s.Name())
	assert.Equal(t, "curious_coder~facebook-ads-library-scraper", s.ActorID())
	assert.IsType(t, &MetaNormalizer{}, s.Normalizer())

	input := s.SearchInput("Acme & Sons", domain.FetchOptions{}, 60)
	q := metaInputURL(t, input)

	assert.Equal(t, "Acme & Sons", q.Get("q"))
	assert.Equal(t, "ALL", q.Get("country"))
	assert.Equal(t, "all", q.Get("active_status"))
	assert.Equal(t, "keyword_unordered", q.Get("search_type"))
	assert.Equal(t, 60, input["count"])
}

func TestMetaStrategy_ByIDInput(t *testing.T) {
	s := NewMetaStrategy("actor")

	input := s.ByIDInput(domain.BrandCacheEntry{ExternalID: "100", Name: "Nike"}, domain.FetchOptions{CountryCode: "us", ActiveOnly: true}, 5)
	q := metaInputURL(t, input)

	assert.Equal(t, "100", q.Get("view_all_page_id"))
	assert.Equal(t, "page", q.Get("search_type"))
	assert.Equal(t, "US", q.Get("country"))
	assert.Equal(t, "active", q.Get("active_status"))
	assert.Empty(t, q.Get("q"))
	assert.Equal(t, 5, input["count"])
}

func TestGoogleStrategy_Inputs(t *testing.T) {
	s := NewGoogleStrategy("silva95gustavo~google-ads-scraper")
	assert.Equal(t, domain.ProviderGoogle, s.Name())
	assert.IsType(t, &GoogleNormalizer{}, s.Normalizer())

	search := s.SearchInput("Acme", domain.FetchOptions{}, 60)
	assert.Equal(t, domain.RunInput{"searchQuery": "Acme", "region": "anywhere", "maxItems": 60}, search)

	byID := s.ByIDInput(domain.BrandCacheEntry{ExternalID: "AR1"}, domain.FetchOptions{CountryCode: "gb"}, 5)
	assert.Equal(t, domain.RunInput{"advertiserIds": []string{"AR1"}, "region": "GB", "maxItems": 5}, byID)
}
