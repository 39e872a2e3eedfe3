package domain

import "time"

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeNotVerified Outcome = "not_verified"
	OutcomeFailure     Outcome = "failure"
)

type FetchOptions struct {
	MaxAds      int
	CountryCode string
	Timeout     time.Duration
	ActiveOnly  bool
}

type FetchMetadata struct {
	Query         string   `json:"query"`
	Provider      Provider `json:"provider"`
	DurationMs    int64    `json:"durationMs"`
	RunID         string   `json:"runId,omitempty"`
	DatasetID     string   `json:"datasetId,omitempty"`
	UpstreamItems int      `json:"upstreamItems"`
}

// FetchResult is the outcome of one fetch-ads-by-brand call.
type FetchResult struct {
	Success           bool          `json:"success"`
	Outcome           Outcome       `json:"outcome"`
	Ads               []Ad          `json:"ads"`
	TotalFound        int           `json:"totalFound"`
	Error             string        `json:"error,omitempty"`
	ErrorCode         ErrorKind     `json:"errorCode,omitempty"`
	BrandSource       BrandSource   `json:"brandSource,omitempty"`
	VerifiedBrandName string        `json:"verifiedBrandName,omitempty"`
	Metadata          FetchMetadata `json:"metadata"`
}

type SearchHistoryItem struct {
	Provider          Provider    `json:"provider"`
	Brand             string      `json:"brand"`
	BrandKey          string      `json:"brandKey"`
	Ads               []Ad        `json:"ads"`
	TotalFound        int         `json:"totalFound"`
	BrandSource       BrandSource `json:"brandSource"`
	VerifiedBrandName string      `json:"verifiedBrandName,omitempty"`
	SearchedAt        time.Time   `json:"searchedAt"`
}
