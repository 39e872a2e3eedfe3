package domain

import "time"

type Provider string

const (
	ProviderMeta   Provider = "meta"
	ProviderGoogle Provider = "google"
)

// ParseProvider accepts the lowercase provider names used in routes and config.
func ParseProvider(s string) (Provider, bool) {
	switch Provider(s) {
	case ProviderMeta, ProviderGoogle:
		return Provider(s), true
	}
	return "", false
}

type AdFormat string

const (
	FormatImage      AdFormat = "image"
	FormatVideo      AdFormat = "video"
	FormatCarousel   AdFormat = "carousel"
	FormatCollection AdFormat = "collection"
	FormatText       AdFormat = "text"
	FormatUnknown    AdFormat = "unknown"
)

type AdStatus string

const (
	StatusActive   AdStatus = "active"
	StatusInactive AdStatus = "inactive"
	StatusRemoved  AdStatus = "removed"
	StatusUnknown  AdStatus = "unknown"
)

type Platform string

const (
	PlatformFacebook        Platform = "facebook"
	PlatformInstagram       Platform = "instagram"
	PlatformMessenger       Platform = "messenger"
	PlatformAudienceNetwork Platform = "audience_network"
	PlatformThreads         Platform = "threads"
	PlatformGoogleSearch    Platform = "google_search"
	PlatformYouTube         Platform = "youtube"
	PlatformGoogleDisplay   Platform = "google_display"
	PlatformGoogleMaps      Platform = "google_maps"
	PlatformGooglePlay      Platform = "google_play"
	PlatformGoogleShopping  Platform = "google_shopping"
	PlatformUnknown         Platform = "unknown"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type MediaAsset struct {
	Type            MediaType `json:"type"`
	URL             string    `json:"url"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
}

type CallToAction struct {
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
	Link string `json:"link,omitempty"`
}

// Performance values are the provider's estimate ranges, already formatted for display.
type Performance struct {
	Spend       string `json:"spend,omitempty"`
	Impressions string `json:"impressions,omitempty"`
	Reach       string `json:"reach,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type Demographics struct {
	AgeRange string   `json:"ageRange,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	Regions  []string `json:"regions,omitempty"`
}

// Ad is the canonical advertisement every provider record is normalized into.
// Values are built once by a normalizer and not modified afterwards.
//
// AdvertiserName is the name the provider reported; BrandName falls back to
// the search term when the provider reported none.
type Ad struct {
	ID               string        `json:"id"`
	Provider         Provider      `json:"provider"`
	BrandName        string        `json:"brandName"`
	AdvertiserID     string        `json:"advertiserId,omitempty"`
	AdvertiserName   string        `json:"advertiserName,omitempty"`
	AdvertiserDomain string        `json:"advertiserDomain,omitempty"`
	Headline         string        `json:"headline,omitempty"`
	PrimaryText      string        `json:"primaryText,omitempty"`
	Description      string        `json:"description,omitempty"`
	Caption          string        `json:"caption,omitempty"`
	CallToAction     *CallToAction `json:"callToAction,omitempty"`
	Media            []MediaAsset  `json:"media"`
	Platforms        []Platform    `json:"platforms"`
	Format           AdFormat      `json:"format"`
	Status           AdStatus      `json:"status"`
	StartDate        *time.Time    `json:"startDate,omitempty"`
	EndDate          *time.Time    `json:"endDate,omitempty"`
	Performance      *Performance  `json:"performance,omitempty"`
	Demographics     *Demographics `json:"demographics,omitempty"`
	AdLibraryURL     string        `json:"adLibraryUrl,omitempty"`
	FetchedAt        time.Time     `json:"fetchedAt"`
}

// DeriveFormat computes an ad format from its media list. The hint is the
// provider's own format label and only matters when there is no media.
func DeriveFormat(media []MediaAsset, hint AdFormat, hasText bool) AdFormat {
	images := 0
	for _, m := range media {
		switch m.Type {
		case MediaVideo:
			return FormatVideo
		case MediaImage:
			images++
		}
	}

	switch {
	case images > 1:
		return FormatCarousel
	case images == 1:
		return FormatImage
	}

	switch hint {
	case FormatImage, FormatVideo, FormatCarousel, FormatCollection, FormatText:
		return hint
	}
	if hasText {
		return FormatText
	}
	return FormatUnknown
}
