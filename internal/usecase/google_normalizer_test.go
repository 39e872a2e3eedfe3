package usecase

import (
	"strings"
	"testing"
	"time"

	"adlens/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleNormalizer_ImageCreativeFromHTML(t *testing.T) {
	raw := `{
		"creativeId": "CR1",
		"advertiserId": "AR1",
		"advertiserName": "Acme Corp",
		"domain": "acme.com",
		"format": "TEXT",
		"firstShown": "2026-03-01T00:00:00Z",
		"lastShown": "2026-03-09T12:00:00Z",
		"surfaces": ["SEARCH", "YouTube"],
		"regionStats": [{"regionName": "United States", "impressions": {"lowerBound": 1000, "upperBound": 2000}}],
		"variations": [{
			"type": "image",
			"imageUrl": "<div><img src=\"https://tpc.example/a.png\"><img src=\"https://tpc.example/pixel.gif\" width=\"1\" height=\"1\"></div>",
			"headline": "Acme widgets",
			"clickUrl": "https://acme.com/buy",
			"callToAction": "Buy"
		}]
	}`

	ad, err := NewGoogleNormalizer().Normalize(domain.RawRecord(raw), "acme", testFetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "google_CR1", ad.ID)
	assert.Equal(t, domain.ProviderGoogle, ad.Provider)
	assert.Equal(t, "AR1", ad.AdvertiserID)
	assert.Equal(t, "Acme Corp", ad.AdvertiserName)
	assert.Equal(t, "acme.com", ad.AdvertiserDomain)
	assert.Equal(t, "Acme widgets", ad.Headline)
	assert.Equal(t, &domain.CallToAction{Text: "Buy", Link: "https://acme.com/buy"}, ad.CallToAction)
	require.Len(t, ad.Media, 1)
	assert.Equal(t, domain.MediaAsset{Type: domain.MediaImage, URL: "https://tpc.example/a.png"}, ad.Media[0])
	assert.Equal(t, domain.FormatImage, ad.Format)
	assert.Equal(t, domain.StatusActive, ad.Status)
	assert.Equal(t, []domain.Platform{domain.PlatformGoogleSearch, domain.PlatformYouTube}, ad.Platforms)
	assert.Equal(t, &domain.Performance{Impressions: "1000-2000"}, ad.Performance)
	assert.Equal(t, &domain.Demographics{Regions: []string{"United States"}}, ad.Demographics)
	assert.Equal(t, "https://adstransparency.google.com/advertiser/AR1/creative/CR1", ad.AdLibraryURL)
}

func TestGoogleNormalizer_SnakeCaseVideo(t *testing.T) {
	raw := `{
		"advertiser_id": "AR2",
		"advertiser_name": "Widgets Inc",
		"ad_format": "VIDEO",
		"first_shown": "1735689600000",
		"last_shown": "2026-03-09",
		"removed": true,
		"variants": [{"type": "video", "video_url": "https://v.example/1.mp4", "thumbnail_url": "https://v.example/1.jpg", "duration": "15"}]
	}`

	ad, err := NewGoogleNormalizer().Normalize(domain.RawRecord(raw), "widgets", testFetchedAt)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ad.ID, "google_"))
	assert.Equal(t, "AR2", ad.AdvertiserID)
	assert.Equal(t, domain.StatusRemoved, ad.Status)
	assert.Equal(t, domain.FormatVideo, ad.Format)
	require.Len(t, ad.Media, 1)
	assert.Equal(t, domain.MediaAsset{
		Type:            domain.MediaVideo,
		URL:             "https://v.example/1.mp4",
		ThumbnailURL:    "https://v.example/1.jpg",
		DurationSeconds: 15,
	}, ad.Media[0])
	require.NotNil(t, ad.StartDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *ad.StartDate)
	assert.Empty(t, ad.AdLibraryURL)
}

func TestGoogleNormalizer_HTMLContentVideoAndText(t *testing.T) {
	raw := `{
		"creativeId": "CR3",
		"advertiserId": "AR3",
		"content": "<div><script>track()</script><video poster=\"https://p.example/poster.jpg\"><source src=\"https://v.example/clip.mp4\"></video><p>Watch now</p></div>"
	}`

	ad, err := NewGoogleNormalizer().Normalize(domain.RawRecord(raw), "x", testFetchedAt)
	require.NoError(t, err)

	require.Len(t, ad.Media, 1)
	assert.Equal(t, domain.MediaVideo, ad.Media[0].Type)
	assert.Equal(t, "https://v.example/clip.mp4", ad.Media[0].URL)
	assert.Equal(t, "https://p.example/poster.jpg", ad.Media[0].ThumbnailURL)
	assert.Equal(t, "Watch now", ad.PrimaryText)
	assert.Equal(t, domain.FormatVideo, ad.Format)
	assert.Equal(t, domain.StatusUnknown, ad.Status)
}

func TestGoogleNormalizer_TextAdAndStatusWindow(t *testing.T) {
	tests := []struct {
		name      string
		lastShown string
		want      domain.AdStatus
	}{
		{"shown yesterday", "2026-03-09T00:00:00Z", domain.StatusActive},
		{"shown last year", "2025-01-01", domain.StatusInactive},
		{"never shown", "", domain.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"advertiserId": "AR4", "advertiserName": "X", "format": "TEXT", "headline": "Hello", "description": "World", "lastShown": "` + tt.lastShown + `"}`
			ad, err := NewGoogleNormalizer().Normalize(domain.RawRecord(raw), "x", testFetchedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ad.Status)
			assert.Equal(t, domain.FormatText, ad.Format)
			assert.Equal(t, "World", ad.Description)
		})
	}
}

func TestGoogleNormalizer_DeduplicatesMediaAcrossSources(t *testing.T) {
	raw := `{
		"imageUrl": "https://i.example/a.png",
		"html": "<img src=\"https://i.example/a.png\"><img src=\"https://i.example/b.png\">",
		"variations": [{"type": "image", "imageUrl": "https://i.example/b.png"}]
	}`

	ad, err := NewGoogleNormalizer().Normalize(domain.RawRecord(raw), "x", testFetchedAt)
	require.NoError(t, err)

	require.Len(t, ad.Media, 2)
	assert.Equal(t, "https://i.example/a.png", ad.Media[0].URL)
	assert.Equal(t, "https://i.example/b.png", ad.Media[1].URL)
	assert.Equal(t, domain.FormatCarousel, ad.Format)
}

func TestGoogleNormalizer_Deterministic(t *testing.T) {
	raw := domain.RawRecord(`{"advertiserId": "AR5", "body": "Same text", "imageUrl": "https://i.example/z.png", "firstShown": "2025-05-05"}`)
	n := NewGoogleNormalizer()

	first, err := n.Normalize(raw, "x", testFetchedAt)
	require.NoError(t, err)
	second, err := n.Normalize(raw, "x", testFetchedAt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.ID, len("google_")+24)
}

func TestExtractHTML(t *testing.T) {
	content := extractHTML(`<div><style>.a{}</style><img src="https://i/1.png"><noscript><img src="https://i/ns.png"></noscript><span>Hi</span> <b>there</b></div>`)
	assert.Equal(t, []string{"https://i/1.png"}, content.Images)
	assert.Empty(t, content.Videos)
	assert.Equal(t, "Hi there", content.Text)

	assert.Equal(t, htmlContent{}, extractHTML("   "))
}
