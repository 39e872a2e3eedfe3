package usecase

import (
	"strings"

	"adlens/internal/domain"
)

const (
	scoreExactMatch     = 1000
	scorePrefixMatch    = 500
	scoreSubstringMatch = 100

	// volume only breaks ties between name-plausible candidates
	maxVolumeBonus = 50
)

// IdentityResolver picks the advertiser a set of search results belongs to.
type IdentityResolver struct{}

func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{}
}

// ResolveBestIdentity groups ads by advertiser id and returns the candidate
// whose reported name best matches searchTerm. Candidates whose name has no
// textual relation to the term are never chosen, whatever their ad count.
// Equal scores resolve to the candidate seen first. Returns nil when no
// candidate qualifies.
func (r *IdentityResolver) ResolveBestIdentity(ads []domain.Ad, searchTerm string) *domain.CandidateIdentity {
	candidates := GroupCandidates(ads)
	term := domain.NormalizeBrandKey(searchTerm)

	var best *domain.CandidateIdentity
	for i := range candidates {
		c := &candidates[i]
		c.NameScore = NameScore(c.Name, term)
		if c.NameScore == 0 {
			continue
		}
		c.Score = c.NameScore + min(c.Count, maxVolumeBonus)
		if best == nil || c.Score > best.Score {
			best = c
		}
	}

	if best == nil {
		return nil
	}
	chosen := *best
	return &chosen
}

// GroupCandidates groups ads by advertiser id in first-seen order. Ads without
// an advertiser id are ignored.
func GroupCandidates(ads []domain.Ad) []domain.CandidateIdentity {
	var candidates []domain.CandidateIdentity
	index := make(map[string]int)

	for _, ad := range ads {
		if ad.AdvertiserID == "" {
			continue
		}
		i, ok := index[ad.AdvertiserID]
		if !ok {
			i = len(candidates)
			index[ad.AdvertiserID] = i
			candidates = append(candidates, domain.CandidateIdentity{ExternalID: ad.AdvertiserID})
		}
		c := &candidates[i]
		c.Count++
		if c.Name == "" {
			c.Name = ad.AdvertiserName
		}
		if c.Domain == "" {
			c.Domain = ad.AdvertiserDomain
		}
	}
	return candidates
}

// NameScore rates how closely a candidate name matches a search term.
func NameScore(name, term string) int {
	n := domain.NormalizeBrandKey(name)
	t := domain.NormalizeBrandKey(term)
	if n == "" || t == "" {
		return 0
	}

	switch {
	case n == t:
		return scoreExactMatch
	case strings.HasPrefix(n, t) || strings.HasPrefix(t, n):
		return scorePrefixMatch
	case strings.Contains(n, t) || strings.Contains(t, n):
		return scoreSubstringMatch
	}
	return 0
}
