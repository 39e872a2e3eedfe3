package usecase

import (
	"fmt"
	"strings"
	"time"

	"adlens/internal/domain"
)

type metaImage struct {
	OriginalImageURL      flexString `json:"originalImageUrl"`
	OriginalImageURLSnake flexString `json:"original_image_url"`
	ResizedImageURL       flexString `json:"resizedImageUrl"`
	ResizedImageURLSnake  flexString `json:"resized_image_url"`
	URL                   flexString `json:"url"`
}

func (i metaImage) url() string {
	return coalesce(i.OriginalImageURL.String(), i.OriginalImageURLSnake.String(),
		i.ResizedImageURL.String(), i.ResizedImageURLSnake.String(), i.URL.String())
}

type metaVideo struct {
	VideoHDURL           flexString `json:"videoHdUrl"`
	VideoHDURLSnake      flexString `json:"video_hd_url"`
	VideoSDURL           flexString `json:"videoSdUrl"`
	VideoSDURLSnake      flexString `json:"video_sd_url"`
	PreviewImageURL      flexString `json:"videoPreviewImageUrl"`
	PreviewImageURLSnake flexString `json:"video_preview_image_url"`
}

func (v metaVideo) url() string {
	return coalesce(v.VideoHDURL.String(), v.VideoHDURLSnake.String(), v.VideoSDURL.String(), v.VideoSDURLSnake.String())
}

func (v metaVideo) thumbnail() string {
	return coalesce(v.PreviewImageURL.String(), v.PreviewImageURLSnake.String())
}

type metaCard struct {
	metaImage
	metaVideo
	Body                 flexText   `json:"body"`
	Title                flexString `json:"title"`
	Caption              flexString `json:"caption"`
	LinkURL              flexString `json:"linkUrl"`
	LinkURLSnake         flexString `json:"link_url"`
	LinkDescription      flexString `json:"linkDescription"`
	LinkDescriptionSnake flexString `json:"link_description"`
	CTAText              flexString `json:"ctaText"`
	CTATextSnake         flexString `json:"cta_text"`
}

type metaSnapshot struct {
	Body                 flexText             `json:"body"`
	Title                flexString           `json:"title"`
	Caption              flexString           `json:"caption"`
	LinkURL              flexString           `json:"linkUrl"`
	LinkURLSnake         flexString           `json:"link_url"`
	LinkDescription      flexString           `json:"linkDescription"`
	LinkDescriptionSnake flexString           `json:"link_description"`
	CTAText              flexString           `json:"ctaText"`
	CTATextSnake         flexString           `json:"cta_text"`
	CTAType              flexString           `json:"ctaType"`
	CTATypeSnake         flexString           `json:"cta_type"`
	DisplayFormat        flexString           `json:"displayFormat"`
	DisplayFormatSnake   flexString           `json:"display_format"`
	PageName             flexString           `json:"pageName"`
	PageNameSnake        flexString           `json:"page_name"`
	PageID               flexString           `json:"pageId"`
	PageIDSnake          flexString           `json:"page_id"`
	Images               flexSlice[metaImage] `json:"images"`
	Videos               flexSlice[metaVideo] `json:"videos"`
	Cards                flexSlice[metaCard]  `json:"cards"`
}

type metaImpressionsIndex struct {
	Text      flexString `json:"impressionsText"`
	TextSnake flexString `json:"impressions_text"`
}

// metaRecord covers both the ad library scraper output (camelCase with a nested
// snapshot) and the Graph API ad archive shape (flat snake_case).
type metaRecord struct {
	AdArchiveID                flexString            `json:"adArchiveID"`
	AdArchiveIDSnake           flexString            `json:"ad_archive_id"`
	AdID                       flexString            `json:"adId"`
	AdIDSnake                  flexString            `json:"ad_id"`
	ID                         flexString            `json:"id"`
	PageID                     flexString            `json:"pageID"`
	PageIDSnake                flexString            `json:"page_id"`
	PageName                   flexString            `json:"pageName"`
	PageNameSnake              flexString            `json:"page_name"`
	IsActive                   flexBool              `json:"isActive"`
	IsActiveSnake              flexBool              `json:"is_active"`
	StartDate                  flexString            `json:"startDate"`
	StartDateSnake             flexString            `json:"start_date"`
	DeliveryStart              flexString            `json:"ad_delivery_start_time"`
	EndDate                    flexString            `json:"endDate"`
	EndDateSnake               flexString            `json:"end_date"`
	DeliveryStop               flexString            `json:"ad_delivery_stop_time"`
	PublisherPlatform          flexSlice[flexString] `json:"publisherPlatform"`
	PublisherPlatformSnake     flexSlice[flexString] `json:"publisher_platform"`
	PublisherPlatforms         flexSlice[flexString] `json:"publisher_platforms"`
	Currency                   flexString            `json:"currency"`
	Spend                      rangeValue            `json:"spend"`
	Impressions                rangeValue            `json:"impressions"`
	ImpressionsWithIndex       metaImpressionsIndex  `json:"impressionsWithIndex"`
	ImpressionsWithIndexSnake  metaImpressionsIndex  `json:"impressions_with_index"`
	ReachEstimate              rangeValue            `json:"reachEstimate"`
	ReachEstimateSnake         rangeValue            `json:"reach_estimate"`
	AdCreativeBodies           flexSlice[flexString] `json:"ad_creative_bodies"`
	AdCreativeLinkTitles       flexSlice[flexString] `json:"ad_creative_link_titles"`
	AdCreativeLinkCaptions     flexSlice[flexString] `json:"ad_creative_link_captions"`
	AdCreativeLinkDescriptions flexSlice[flexString] `json:"ad_creative_link_descriptions"`
	AdSnapshotURL              flexString            `json:"ad_snapshot_url"`
	AdLibraryURL               flexString            `json:"adLibraryURL"`
	TargetAges                 flexSlice[flexString] `json:"targetAges"`
	TargetAgesSnake            flexSlice[flexString] `json:"target_ages"`
	TargetGender               flexString            `json:"targetGender"`
	TargetGenderSnake          flexString            `json:"target_gender"`
	TargetLocations            flexSlice[namedValue] `json:"targetLocations"`
	TargetLocationsSnake       flexSlice[namedValue] `json:"target_locations"`
	DeliveryByRegion           flexSlice[namedValue] `json:"delivery_by_region"`
	Snapshot                   metaSnapshot          `json:"snapshot"`
}

// MetaNormalizer normalizes Meta ad library records.
type MetaNormalizer struct{}

func NewMetaNormalizer() *MetaNormalizer {
	return &MetaNormalizer{}
}

func (n *MetaNormalizer) Normalize(raw domain.RawRecord, searchTerm string, fetchedAt time.Time) (domain.Ad, error) {
	var rec metaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Ad{}, fmt.Errorf("decode meta record: %w", err)
	}

	snap := rec.Snapshot
	card, _ := snap.Cards.first()

	advertiserID := coalesce(rec.PageID.String(), rec.PageIDSnake.String(), snap.PageID.String(), snap.PageIDSnake.String())
	advertiserName := coalesce(rec.PageName.String(), rec.PageNameSnake.String(), snap.PageName.String(), snap.PageNameSnake.String())

	primaryText := coalesce(firstString(rec.AdCreativeBodies), snap.Body.String(), card.Body.String())
	headline := coalesce(firstString(rec.AdCreativeLinkTitles), snap.Title.String(), card.Title.String())
	description := coalesce(firstString(rec.AdCreativeLinkDescriptions),
		snap.LinkDescription.String(), snap.LinkDescriptionSnake.String(),
		card.LinkDescription.String(), card.LinkDescriptionSnake.String())
	caption := coalesce(firstString(rec.AdCreativeLinkCaptions), snap.Caption.String(), card.Caption.String())

	start := parseDate(coalesce(rec.StartDate.String(), rec.StartDateSnake.String(), rec.DeliveryStart.String()))
	end := parseDate(coalesce(rec.EndDate.String(), rec.EndDateSnake.String(), rec.DeliveryStop.String()))

	media := metaMedia(snap)

	ad := domain.Ad{
		Provider:       domain.ProviderMeta,
		BrandName:      coalesce(advertiserName, strings.TrimSpace(searchTerm)),
		AdvertiserID:   advertiserID,
		AdvertiserName: advertiserName,
		Headline:       headline,
		PrimaryText:    primaryText,
		Description:    description,
		Caption:        caption,
		CallToAction:   metaCallToAction(snap, card),
		Media:          media.list(),
		Platforms:      metaPlatforms(rec),
		Status:         metaStatus(rec, end, fetchedAt),
		StartDate:      start,
		EndDate:        end,
		Performance:    metaPerformance(rec),
		Demographics:   metaDemographics(rec),
		FetchedAt:      fetchedAt.UTC(),
	}

	hint := formatHint(coalesce(snap.DisplayFormat.String(), snap.DisplayFormatSnake.String()))
	ad.Format = domain.DeriveFormat(ad.Media, hint, primaryText != "" || headline != "")

	archiveID := coalesce(rec.AdArchiveID.String(), rec.AdArchiveIDSnake.String(),
		rec.AdID.String(), rec.AdIDSnake.String(), rec.ID.String())
	if archiveID != "" {
		ad.ID = "meta_" + archiveID
	} else {
		ad.ID = stableAdID(domain.ProviderMeta, advertiserID, primaryText, media.primaryURL(), start)
	}

	ad.AdLibraryURL = coalesce(rec.AdSnapshotURL.String(), rec.AdLibraryURL.String())
	if ad.AdLibraryURL == "" && archiveID != "" {
		ad.AdLibraryURL = "https://www.facebook.com/ads/library/?id=" + archiveID
	}

	return ad, nil
}

func metaMedia(snap metaSnapshot) *mediaList {
	media := &mediaList{}
	for _, v := range snap.Videos {
		media.addVideo(v.url(), v.thumbnail())
	}
	for _, img := range snap.Images {
		media.addImage(img.url())
	}
	for _, c := range snap.Cards {
		if u := c.metaVideo.url(); u != "" {
			media.addVideo(u, c.metaVideo.thumbnail())
			continue
		}
		media.addImage(c.metaImage.url())
	}
	return media
}

func metaCallToAction(snap metaSnapshot, card metaCard) *domain.CallToAction {
	cta := domain.CallToAction{
		Text: coalesce(snap.CTAText.String(), snap.CTATextSnake.String(), card.CTAText.String(), card.CTATextSnake.String()),
		Type: coalesce(snap.CTAType.String(), snap.CTATypeSnake.String()),
		Link: coalesce(snap.LinkURL.String(), snap.LinkURLSnake.String(), card.LinkURL.String(), card.LinkURLSnake.String()),
	}
	if cta == (domain.CallToAction{}) {
		return nil
	}
	return &cta
}

func metaPlatforms(rec metaRecord) []domain.Platform {
	var set platformSet
	for _, list := range []flexSlice[flexString]{rec.PublisherPlatform, rec.PublisherPlatformSnake, rec.PublisherPlatforms} {
		for _, p := range stringsOf(list) {
			switch strings.ToUpper(p) {
			case "FACEBOOK":
				set.add(domain.PlatformFacebook)
			case "INSTAGRAM":
				set.add(domain.PlatformInstagram)
			case "MESSENGER":
				set.add(domain.PlatformMessenger)
			case "AUDIENCE_NETWORK":
				set.add(domain.PlatformAudienceNetwork)
			case "THREADS":
				set.add(domain.PlatformThreads)
			default:
				set.add(domain.PlatformUnknown)
			}
		}
	}
	return set.list()
}

func metaStatus(rec metaRecord, end *time.Time, fetchedAt time.Time) domain.AdStatus {
	for _, flag := range []flexBool{rec.IsActive, rec.IsActiveSnake} {
		if flag.Set {
			if flag.Value {
				return domain.StatusActive
			}
			return domain.StatusInactive
		}
	}
	if end != nil && end.Before(fetchedAt) {
		return domain.StatusInactive
	}
	return domain.StatusUnknown
}

func metaPerformance(rec metaRecord) *domain.Performance {
	impressions := coalesce(rec.ImpressionsWithIndex.Text.String(), rec.ImpressionsWithIndexSnake.TextSnake.String(),
		rec.ImpressionsWithIndexSnake.Text.String(), rec.Impressions.Format())

	perf := domain.Performance{
		Spend:       rec.Spend.Format(),
		Impressions: impressions,
		Reach:       coalesce(rec.ReachEstimate.Format(), rec.ReachEstimateSnake.Format()),
		Currency:    rec.Currency.String(),
	}
	if perf.Spend == "" && perf.Impressions == "" && perf.Reach == "" {
		return nil
	}
	return &perf
}

func metaDemographics(rec metaRecord) *domain.Demographics {
	ages := stringsOf(rec.TargetAges)
	if len(ages) == 0 {
		ages = stringsOf(rec.TargetAgesSnake)
	}

	demo := domain.Demographics{
		AgeRange: ageRange(ages),
		Gender:   strings.ToLower(coalesce(rec.TargetGender.String(), rec.TargetGenderSnake.String())),
		Regions:  joinRegions(namesOf(rec.TargetLocations), namesOf(rec.TargetLocationsSnake), namesOf(rec.DeliveryByRegion)),
	}
	if demo.AgeRange == "" && demo.Gender == "" && len(demo.Regions) == 0 {
		return nil
	}
	return &demo
}

func ageRange(ages []string) string {
	switch len(ages) {
	case 0:
		return ""
	case 1:
		return ages[0]
	}
	return ages[0] + "-" + ages[len(ages)-1]
}
