// Package ranking orders candidate assessors and picks the recommendation.
//
// Order: available before unavailable, then ascending distance with unknown
// distances last, then display name under the configured locale's collation,
// then assessor id so the order is total.
package ranking

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"assessor-dispatch/internal/models"
)

// Ranker is safe for concurrent use. The underlying collator is not, so name
// comparisons are serialized.
type Ranker struct {
	mu       sync.Mutex
	collator *collate.Collator
}

// NewRanker builds a ranker for a BCP 47 locale such as "en-GB". Unparseable
// locales fall back to the root collation.
func NewRanker(locale string) *Ranker {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &Ranker{collator: collate.New(tag)}
}

// Rank returns a new slice in recommendation order. Exactly the first
// candidate is marked recommended, and only when it is available.
func (r *Ranker) Rank(candidates []models.RankedCandidate) []models.RankedCandidate {
	out := make([]models.RankedCandidate, len(candidates))
	copy(out, candidates)

	r.mu.Lock()
	sort.SliceStable(out, func(i, j int) bool {
		return r.less(out[i], out[j])
	})
	r.mu.Unlock()

	for i := range out {
		out[i].IsRecommended = false
	}
	if len(out) > 0 && out[0].Availability.IsAvailable() {
		out[0].IsRecommended = true
	}
	return out
}

// CompareNames compares two display names under the ranker's collation.
func (r *Ranker) CompareNames(a, b string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collator.CompareString(a, b)
}

// less must be called with r.mu held.
func (r *Ranker) less(a, b models.RankedCandidate) bool {
	aAvail, bAvail := a.Availability.IsAvailable(), b.Availability.IsAvailable()
	if aAvail != bAvail {
		return aAvail
	}

	da, aKnown := a.DistanceKm()
	db, bKnown := b.DistanceKm()
	switch {
	case aKnown && bKnown && da != db:
		return da < db
	case aKnown != bKnown:
		return aKnown
	}

	if c := r.collator.CompareString(a.Assessor.DisplayName, b.Assessor.DisplayName); c != 0 {
		return c < 0
	}
	return a.Assessor.ID < b.Assessor.ID
}

// Recommended returns the recommended candidate of a ranked list, if any.
func Recommended(ranked []models.RankedCandidate) (models.RankedCandidate, bool) {
	if len(ranked) > 0 && ranked[0].IsRecommended {
		return ranked[0], true
	}
	return models.RankedCandidate{}, false
}
