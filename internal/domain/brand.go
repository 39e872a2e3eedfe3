package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

type BrandSource string

const (
	BrandSourceCached      BrandSource = "cached"
	BrandSourceDiscovered  BrandSource = "discovered"
	BrandSourceNotVerified BrandSource = "not_verified"
)

// BrandCacheEntry is the verified advertiser identity stored for a search term.
type BrandCacheEntry struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Domain     string `json:"domain,omitempty"`
}

// CandidateIdentity groups normalized ads sharing one advertiser id during resolution.
type CandidateIdentity struct {
	ExternalID string
	Name       string
	Domain     string
	Count      int
	NameScore  int
	Score      int
}

// NormalizeBrandKey folds a search term into the key used by the brand cache.
func NormalizeBrandKey(term string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(term)))
}
