package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"adlens/internal/domain"
)

// Google only reports when an ad was last served; anything seen within this
// window of the fetch is treated as still running.
const googleActiveWindow = 48 * time.Hour

type googleVariation struct {
	Type              flexString `json:"type"`
	Headline          flexString `json:"headline"`
	Description       flexString `json:"description"`
	Body              flexText   `json:"body"`
	URL               flexString `json:"url"`
	ImageURL          flexString `json:"imageUrl"`
	ImageURLSnake     flexString `json:"image_url"`
	VideoURL          flexString `json:"videoUrl"`
	VideoURLSnake     flexString `json:"video_url"`
	ThumbnailURL      flexString `json:"thumbnailUrl"`
	ThumbnailURLSnake flexString `json:"thumbnail_url"`
	ClickURL          flexString `json:"clickUrl"`
	ClickURLSnake     flexString `json:"click_url"`
	DestinationURL    flexString `json:"destinationUrl"`
	CallToAction      flexString `json:"callToAction"`
	CallToActionSnake flexString `json:"call_to_action"`
	Content           flexString `json:"content"`
	HTML              flexString `json:"html"`
	Duration          flexString `json:"duration"`
}

type googleRegion struct {
	RegionName      flexString `json:"regionName"`
	RegionNameSnake flexString `json:"region_name"`
	RegionCode      flexString `json:"regionCode"`
	RegionCodeSnake flexString `json:"region_code"`
	Impressions     rangeValue `json:"impressions"`
}

func (r googleRegion) name() string {
	return coalesce(r.RegionName.String(), r.RegionNameSnake.String(), r.RegionCode.String(), r.RegionCodeSnake.String())
}

// googleRecord covers the ads transparency scraper output in both camelCase
// and snake_case.
type googleRecord struct {
	CreativeID            flexString                 `json:"creativeId"`
	CreativeIDSnake       flexString                 `json:"creative_id"`
	ID                    flexString                 `json:"id"`
	AdvertiserID          flexString                 `json:"advertiserId"`
	AdvertiserIDSnake     flexString                 `json:"advertiser_id"`
	AdvertiserName        flexString                 `json:"advertiserName"`
	AdvertiserNameSnake   flexString                 `json:"advertiser_name"`
	AdvertiserDomain      flexString                 `json:"advertiserDomain"`
	AdvertiserDomainSnake flexString                 `json:"advertiser_domain"`
	Domain                flexString                 `json:"domain"`
	Format                flexString                 `json:"format"`
	AdFormat              flexString                 `json:"adFormat"`
	AdFormatSnake         flexString                 `json:"ad_format"`
	FirstShown            flexString                 `json:"firstShown"`
	FirstShownSnake       flexString                 `json:"first_shown"`
	LastShown             flexString                 `json:"lastShown"`
	LastShownSnake        flexString                 `json:"last_shown"`
	IsActive              flexBool                   `json:"isActive"`
	Removed               flexBool                   `json:"removed"`
	Headline              flexString                 `json:"headline"`
	Description           flexString                 `json:"description"`
	Body                  flexText                   `json:"body"`
	ImageURL              flexString                 `json:"imageUrl"`
	ImageURLSnake         flexString                 `json:"image_url"`
	VideoURL              flexString                 `json:"videoUrl"`
	VideoURLSnake         flexString                 `json:"video_url"`
	PreviewURL            flexString                 `json:"previewUrl"`
	PreviewURLSnake       flexString                 `json:"preview_url"`
	Content               flexString                 `json:"content"`
	HTML                  flexString                 `json:"html"`
	URL                   flexString                 `json:"url"`
	AdURL                 flexString                 `json:"adUrl"`
	Platforms             flexSlice[flexString]      `json:"platforms"`
	Surfaces              flexSlice[flexString]      `json:"surfaces"`
	Regions               flexSlice[namedValue]      `json:"regions"`
	RegionStats           flexSlice[googleRegion]    `json:"regionStats"`
	RegionStatsSnake      flexSlice[googleRegion]    `json:"region_stats"`
	Impressions           rangeValue                 `json:"impressions"`
	Variations            flexSlice[googleVariation] `json:"variations"`
	Variants              flexSlice[googleVariation] `json:"variants"`
}

// GoogleNormalizer normalizes Google ads transparency records.
type GoogleNormalizer struct{}

func NewGoogleNormalizer() *GoogleNormalizer {
	return &GoogleNormalizer{}
}

func (n *GoogleNormalizer) Normalize(raw domain.RawRecord, searchTerm string, fetchedAt time.Time) (domain.Ad, error) {
	var rec googleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Ad{}, fmt.Errorf("decode google record: %w", err)
	}

	variations := append(flexSlice[googleVariation]{}, rec.Variations...)
	variations = append(variations, rec.Variants...)
	variation, _ := variations.first()

	advertiserID := coalesce(rec.AdvertiserID.String(), rec.AdvertiserIDSnake.String())
	advertiserName := coalesce(rec.AdvertiserName.String(), rec.AdvertiserNameSnake.String())

	media, htmlText := googleMedia(rec, variations)

	headline := coalesce(rec.Headline.String(), variation.Headline.String())
	primaryText := coalesce(rec.Body.String(), variation.Body.String(), htmlText)
	description := coalesce(rec.Description.String(), variation.Description.String())

	start := parseDate(coalesce(rec.FirstShown.String(), rec.FirstShownSnake.String()))
	end := parseDate(coalesce(rec.LastShown.String(), rec.LastShownSnake.String()))

	ad := domain.Ad{
		Provider:         domain.ProviderGoogle,
		BrandName:        coalesce(advertiserName, strings.TrimSpace(searchTerm)),
		AdvertiserID:     advertiserID,
		AdvertiserName:   advertiserName,
		AdvertiserDomain: coalesce(rec.AdvertiserDomain.String(), rec.AdvertiserDomainSnake.String(), rec.Domain.String()),
		Headline:         headline,
		PrimaryText:      primaryText,
		Description:      description,
		CallToAction:     googleCallToAction(variation),
		Media:            media.list(),
		Platforms:        googlePlatforms(rec),
		Status:           googleStatus(rec, end, fetchedAt),
		StartDate:        start,
		EndDate:          end,
		Performance:      googlePerformance(rec),
		Demographics:     googleDemographics(rec),
		FetchedAt:        fetchedAt.UTC(),
	}

	hint := formatHint(coalesce(rec.Format.String(), rec.AdFormat.String(), rec.AdFormatSnake.String()))
	ad.Format = domain.DeriveFormat(ad.Media, hint, primaryText != "" || headline != "" || description != "")

	creativeID := coalesce(rec.CreativeID.String(), rec.CreativeIDSnake.String(), rec.ID.String())
	if creativeID != "" {
		ad.ID = "google_" + creativeID
	} else {
		ad.ID = stableAdID(domain.ProviderGoogle, advertiserID, coalesce(primaryText, headline, description), media.primaryURL(), start)
	}

	ad.AdLibraryURL = coalesce(rec.URL.String(), rec.AdURL.String())
	if ad.AdLibraryURL == "" && advertiserID != "" && creativeID != "" {
		ad.AdLibraryURL = fmt.Sprintf("https://adstransparency.google.com/advertiser/%s/creative/%s", advertiserID, creativeID)
	}

	return ad, nil
}

// googleMedia collects assets from direct URL fields, HTML fragments and
// per-variation blocks, and returns any visible text found in the fragments.
func googleMedia(rec googleRecord, variations []googleVariation) (*mediaList, string) {
	media := &mediaList{}
	var texts []string

	addFragment := func(fragment string) {
		content := extractHTML(fragment)
		for _, v := range content.Videos {
			media.addVideo(v.URL, v.Poster)
		}
		for _, img := range content.Images {
			media.addImage(img)
		}
		if content.Text != "" {
			texts = append(texts, content.Text)
		}
	}
	addVideo := func(u, thumb string) {
		if looksLikeHTML(u) {
			addFragment(u)
			return
		}
		media.addVideo(u, thumb)
	}
	addImage := func(u string) {
		if looksLikeHTML(u) {
			addFragment(u)
			return
		}
		media.addImage(u)
	}

	addVideo(coalesce(rec.VideoURL.String(), rec.VideoURLSnake.String()), "")
	addImage(coalesce(rec.ImageURL.String(), rec.ImageURLSnake.String()))
	for _, fragment := range []string{rec.Content.String(), rec.HTML.String()} {
		addFragment(fragment)
	}
	if preview := coalesce(rec.PreviewURL.String(), rec.PreviewURLSnake.String()); looksLikeHTML(preview) {
		addFragment(preview)
	}

	for _, v := range variations {
		thumb := coalesce(v.ThumbnailURL.String(), v.ThumbnailURLSnake.String())
		switch strings.ToLower(v.Type.String()) {
		case "video":
			addVideo(coalesce(v.VideoURL.String(), v.VideoURLSnake.String(), v.URL.String()), thumb)
		case "image":
			addImage(coalesce(v.ImageURL.String(), v.ImageURLSnake.String(), v.URL.String()))
		default:
			addVideo(coalesce(v.VideoURL.String(), v.VideoURLSnake.String()), thumb)
			addImage(coalesce(v.ImageURL.String(), v.ImageURLSnake.String()))
		}
		addFragment(coalesce(v.Content.String(), v.HTML.String()))
	}

	if d := googleVideoDuration(variations); d > 0 {
		for i := range media.items {
			if media.items[i].Type == domain.MediaVideo && media.items[i].DurationSeconds == 0 {
				media.items[i].DurationSeconds = d
				break
			}
		}
	}

	return media, strings.Join(texts, " ")
}

func googleVideoDuration(variations []googleVariation) float64 {
	for _, v := range variations {
		if d, err := strconv.ParseFloat(v.Duration.String(), 64); err == nil && d > 0 {
			return d
		}
	}
	return 0
}

func googleCallToAction(v googleVariation) *domain.CallToAction {
	cta := domain.CallToAction{
		Text: coalesce(v.CallToAction.String(), v.CallToActionSnake.String()),
		Link: coalesce(v.ClickURL.String(), v.ClickURLSnake.String(), v.DestinationURL.String()),
	}
	if cta == (domain.CallToAction{}) {
		return nil
	}
	return &cta
}

func googlePlatforms(rec googleRecord) []domain.Platform {
	var set platformSet
	for _, list := range []flexSlice[flexString]{rec.Platforms, rec.Surfaces} {
		for _, p := range stringsOf(list) {
			switch strings.ReplaceAll(strings.ToUpper(p), " ", "_") {
			case "SEARCH", "GOOGLE_SEARCH":
				set.add(domain.PlatformGoogleSearch)
			case "YOUTUBE":
				set.add(domain.PlatformYouTube)
			case "DISPLAY", "GOOGLE_DISPLAY":
				set.add(domain.PlatformGoogleDisplay)
			case "MAPS", "GOOGLE_MAPS":
				set.add(domain.PlatformGoogleMaps)
			case "PLAY", "GOOGLE_PLAY":
				set.add(domain.PlatformGooglePlay)
			case "SHOPPING", "GOOGLE_SHOPPING":
				set.add(domain.PlatformGoogleShopping)
			default:
				set.add(domain.PlatformUnknown)
			}
		}
	}
	return set.list()
}

func googleStatus(rec googleRecord, lastShown *time.Time, fetchedAt time.Time) domain.AdStatus {
	if rec.Removed.Set && rec.Removed.Value {
		return domain.StatusRemoved
	}
	if rec.IsActive.Set {
		if rec.IsActive.Value {
			return domain.StatusActive
		}
		return domain.StatusInactive
	}
	if lastShown != nil {
		if fetchedAt.Sub(*lastShown) <= googleActiveWindow {
			return domain.StatusActive
		}
		return domain.StatusInactive
	}
	return domain.StatusUnknown
}

func googleRegionStats(rec googleRecord) []googleRegion {
	return append(append([]googleRegion{}, rec.RegionStats...), rec.RegionStatsSnake...)
}

func googlePerformance(rec googleRecord) *domain.Performance {
	impressions := rec.Impressions.Format()
	if impressions == "" {
		for _, r := range googleRegionStats(rec) {
			if impressions = r.Impressions.Format(); impressions != "" {
				break
			}
		}
	}
	if impressions == "" {
		return nil
	}
	return &domain.Performance{Impressions: impressions}
}

func googleDemographics(rec googleRecord) *domain.Demographics {
	var statNames []string
	for _, r := range googleRegionStats(rec) {
		statNames = append(statNames, r.name())
	}

	regions := joinRegions(namesOf(rec.Regions), statNames)
	if len(regions) == 0 {
		return nil
	}
	return &domain.Demographics{Regions: regions}
}
