package usecase

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"adlens/internal/domain"

	"github.com/araddon/dateparse"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Normalizer converts one raw record of a provider's dataset into a canonical Ad.
// Implementations never fail on missing or malformed optional fields; an error
// means the record is not a JSON object at all.
type Normalizer interface {
	Normalize(raw domain.RawRecord, searchTerm string, fetchedAt time.Time) (domain.Ad, error)
}

const (
	idTextLimit = 100
)

// flexString accepts a JSON string, number or bool. Anything else decodes to "".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		*s = flexString(v)
	case '{', '[', 'n':
		*s = ""
	default:
		*s = flexString(data)
	}
	return nil
}

func (s flexString) String() string {
	return cleanText(string(s))
}

// flexBool accepts true/false, "true"/"false", 1/0.
type flexBool struct {
	Set   bool
	Value bool
}

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var s flexString
	_ = s.UnmarshalJSON(data)
	switch strings.ToLower(strings.TrimSpace(string(s))) {
	case "true", "1", "yes", "active":
		*b = flexBool{Set: true, Value: true}
	case "false", "0", "no", "inactive":
		*b = flexBool{Set: true, Value: false}
	}
	return nil
}

// flexSlice accepts either an array of T or a single T.
type flexSlice[T any] []T

func (s *flexSlice[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil
		}
		*s = items
	case 'n':
		*s = nil
	default:
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil
		}
		*s = flexSlice[T]{item}
	}
	return nil
}

func (s flexSlice[T]) first() (T, bool) {
	if len(s) == 0 {
		var zero T
		return zero, false
	}
	return s[0], true
}

func stringsOf(values flexSlice[flexString]) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := v.String(); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstString(values flexSlice[flexString]) string {
	for _, v := range values {
		if t := v.String(); t != "" {
			return t
		}
	}
	return ""
}

// flexText is a plain string or an object carrying the text, as in
// {"text": "..."} or {"markup": {"__html": "..."}}.
type flexText string

func (t *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var s flexString
		_ = s.UnmarshalJSON(data)
		*t = flexText(s)
		return nil
	}

	var obj struct {
		Text   flexString `json:"text"`
		Markup struct {
			HTML flexString `json:"__html"`
		} `json:"markup"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	if obj.Text != "" {
		*t = flexText(obj.Text)
		return nil
	}
	*t = flexText(extractHTML(string(obj.Markup.HTML)).Text)
	return nil
}

func (t flexText) String() string {
	return cleanText(string(t))
}

// rangeValue is an estimate that may arrive as preformatted text, a single
// number, or an object with lower/upper bounds.
type rangeValue struct {
	Text  string
	Lower string
	Upper string
}

func (r *rangeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] != '{' {
		var s flexString
		_ = s.UnmarshalJSON(data)
		r.Text = s.String()
		return nil
	}

	var obj struct {
		LowerSnake flexString `json:"lower_bound"`
		Lower      flexString `json:"lowerBound"`
		UpperSnake flexString `json:"upper_bound"`
		Upper      flexString `json:"upperBound"`
		Text       flexString `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	r.Text = obj.Text.String()
	r.Lower = coalesce(obj.Lower.String(), obj.LowerSnake.String())
	r.Upper = coalesce(obj.Upper.String(), obj.UpperSnake.String())
	return nil
}

func (r rangeValue) Format() string {
	if r.Text != "" {
		return r.Text
	}
	switch {
	case r.Lower != "" && r.Upper != "":
		if r.Lower == r.Upper {
			return r.Lower
		}
		return r.Lower + "-" + r.Upper
	case r.Lower != "":
		return r.Lower + "+"
	case r.Upper != "":
		return "<" + r.Upper
	}
	return ""
}

// coalesce returns the first non-empty value.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cleanText trims whitespace and drops unrendered catalog templates such as
// "{{product.name}}".
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		return ""
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Shorter digit runs are compact dates such as 20240115, not epochs.
const minEpochDigits = 9

// parseDate parses unix seconds, unix milliseconds or any common date layout.
// Unparsable input yields nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return nil
	}

	if !looksLikeEpoch(s) {
		return parseLayout(s)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		var t time.Time
		switch {
		case n <= 0:
			return nil
		case n > 1e11:
			t = time.UnixMilli(n).UTC()
		default:
			t = time.Unix(n, 0).UTC()
		}
		return &t
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		t := time.Unix(int64(f), 0).UTC()
		return &t
	}

	return parseLayout(s)
}

// looksLikeEpoch reports whether the integer part of s is a long digit run.
func looksLikeEpoch(s string) bool {
	whole, _, _ := strings.Cut(s, ".")
	if len(whole) < minEpochDigits {
		return false
	}
	for _, ch := range whole {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func parseLayout(s string) *time.Time {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func dateKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// stableAdID hashes the salient fields of a record that has no natural id.
func stableAdID(provider domain.Provider, externalID, text, mediaURL string, start *time.Time) string {
	h := sha256.New()
	h.Write([]byte(externalID))
	h.Write([]byte{0})
	h.Write([]byte(truncateRunes(text, idTextLimit)))
	h.Write([]byte{0})
	h.Write([]byte(mediaURL))
	h.Write([]byte{0})
	h.Write([]byte(dateKey(start)))
	return string(provider) + "_" + hex.EncodeToString(h.Sum(nil))[:24]
}

// mediaList collects assets in insertion order, deduplicated by URL.
type mediaList struct {
	items []domain.MediaAsset
	seen  map[string]int
}

func (m *mediaList) add(asset domain.MediaAsset) {
	asset.URL = strings.TrimSpace(asset.URL)
	if asset.URL == "" || strings.HasPrefix(asset.URL, "data:") {
		return
	}
	if m.seen == nil {
		m.seen = make(map[string]int)
	}
	if idx, ok := m.seen[asset.URL]; ok {
		if m.items[idx].ThumbnailURL == "" {
			m.items[idx].ThumbnailURL = asset.ThumbnailURL
		}
		return
	}
	m.seen[asset.URL] = len(m.items)
	m.items = append(m.items, asset)
}

func (m *mediaList) addImage(url string) {
	m.add(domain.MediaAsset{Type: domain.MediaImage, URL: url})
}

func (m *mediaList) addVideo(url, thumbnail string) {
	m.add(domain.MediaAsset{Type: domain.MediaVideo, URL: url, ThumbnailURL: strings.TrimSpace(thumbnail)})
}

func (m *mediaList) list() []domain.MediaAsset {
	if m.items == nil {
		return []domain.MediaAsset{}
	}
	return m.items
}

func (m *mediaList) primaryURL() string {
	if len(m.items) == 0 {
		return ""
	}
	return m.items[0].URL
}

// platformSet keeps platforms in first-seen order without duplicates.
type platformSet []domain.Platform

func (s *platformSet) add(p domain.Platform) {
	for _, existing := range *s {
		if existing == p {
			return
		}
	}
	*s = append(*s, p)
}

func (s platformSet) list() []domain.Platform {
	if s == nil {
		return []domain.Platform{}
	}
	return s
}

func formatHint(raw string) domain.AdFormat {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "VIDEO":
		return domain.FormatVideo
	case "IMAGE", "SINGLE_IMAGE":
		return domain.FormatImage
	case "CAROUSEL", "MULTI_IMAGES", "DCO":
		return domain.FormatCarousel
	case "DPA", "COLLECTION", "CATALOG":
		return domain.FormatCollection
	case "TEXT":
		return domain.FormatText
	}
	return domain.FormatUnknown
}

func joinRegions(values ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range values {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[strings.ToLower(v)] {
				continue
			}
			seen[strings.ToLower(v)] = true
			out = append(out, v)
		}
	}
	return out
}

// namedValue is a plain string or an object naming a place or segment.
type namedValue string

func (v *namedValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var s flexString
		_ = s.UnmarshalJSON(data)
		*v = namedValue(s.String())
		return nil
	}

	var obj struct {
		Name       flexString `json:"name"`
		Region     flexString `json:"region"`
		RegionName flexString `json:"regionName"`
		RegionCode flexString `json:"regionCode"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	*v = namedValue(coalesce(obj.Name.String(), obj.RegionName.String(), obj.Region.String(), obj.RegionCode.String()))
	return nil
}

func namesOf(values flexSlice[namedValue]) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, string(v))
		}
	}
	return out
}
