package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessor-dispatch/internal/models"
)

func candidate(id, name string, available bool, km *float64) models.RankedCandidate {
	status := models.Available
	if !available {
		status = models.Unavailable
	}
	c := models.RankedCandidate{
		Assessor:     models.Assessor{ID: id, DisplayName: name, IsAssessor: true},
		Availability: models.AvailabilityVerdict{Status: status},
	}
	if km != nil {
		c.Estimate = &models.DistanceEstimate{DistanceKm: km}
	}
	return c
}

func km(v float64) *float64 { return &v }

func ids(ranked []models.RankedCandidate) []string {
	out := make([]string, len(ranked))
	for i, c := range ranked {
		out[i] = c.Assessor.ID
	}
	return out
}

func TestRank_AvailabilityBeatsDistance(t *testing.T) {
	r := NewRanker("en")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("b", "B", false, km(3)),
		candidate("a", "A", true, km(10)),
	})

	assert.Equal(t, []string{"a", "b"}, ids(ranked))
	rec, ok := Recommended(ranked)
	require.True(t, ok)
	assert.Equal(t, "a", rec.Assessor.ID)
	assert.False(t, ranked[1].IsRecommended)
}

func TestRank_DistanceAscendingUnknownLast(t *testing.T) {
	r := NewRanker("en")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("pending", "Aaron", true, nil),
		candidate("far", "Zed", true, km(30.5)),
		candidate("near", "Yan", true, km(2.1)),
		{
			Assessor:     models.Assessor{ID: "missing", DisplayName: "Abby"},
			Availability: models.AvailabilityVerdict{Status: models.Available},
			Estimate:     &models.DistanceEstimate{Degraded: true, Error: "Missing location data"},
		},
	})

	assert.Equal(t, []string{"near", "far", "pending", "missing"}, ids(ranked))
}

func TestRank_NoLocationsFallsBackToName(t *testing.T) {
	r := NewRanker("en")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("3", "Charlie", false, nil),
		candidate("2", "bob", true, nil),
		candidate("1", "Alice", true, nil),
		candidate("4", "Dana", false, nil),
	})

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(ranked))
	for _, c := range ranked {
		_, known := c.DistanceKm()
		assert.False(t, known)
	}
	assert.True(t, ranked[0].IsRecommended)
}

func TestRank_LocaleAwareNames(t *testing.T) {
	r := NewRanker("fr")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("z", "Zoé", true, nil),
		candidate("e", "Émile", true, nil),
	})
	// Bytewise "É" sorts after "Z"; collation puts it with "E".
	assert.Equal(t, []string{"e", "z"}, ids(ranked))
}

func TestRank_EqualNamesBreakOnID(t *testing.T) {
	r := NewRanker("en")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("b-2", "Sam", true, km(4)),
		candidate("a-1", "Sam", true, km(4)),
	})
	assert.Equal(t, []string{"a-1", "b-2"}, ids(ranked))
}

func TestRank_NoRecommendationWhenAllUnavailable(t *testing.T) {
	r := NewRanker("en")
	ranked := r.Rank([]models.RankedCandidate{
		candidate("a", "A", false, km(1)),
		candidate("b", "B", false, km(2)),
	})

	_, ok := Recommended(ranked)
	assert.False(t, ok)
	for _, c := range ranked {
		assert.False(t, c.IsRecommended)
	}
}

func TestRank_ClearsStaleRecommendation(t *testing.T) {
	r := NewRanker("en")
	stale := candidate("b", "B", true, km(9))
	stale.IsRecommended = true

	ranked := r.Rank([]models.RankedCandidate{stale, candidate("a", "A", true, km(1))})
	assert.Equal(t, []string{"a", "b"}, ids(ranked))
	assert.True(t, ranked[0].IsRecommended)
	assert.False(t, ranked[1].IsRecommended)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	r := NewRanker("en")
	in := []models.RankedCandidate{
		candidate("b", "B", true, km(9)),
		candidate("a", "A", true, km(1)),
	}
	_ = r.Rank(in)
	assert.Equal(t, "b", in[0].Assessor.ID)
	assert.False(t, in[1].IsRecommended)
}

func TestRank_Empty(t *testing.T) {
	ranked := NewRanker("en").Rank(nil)
	assert.Empty(t, ranked)
	_, ok := Recommended(ranked)
	assert.False(t, ok)
}

func TestNewRanker_BadLocale(t *testing.T) {
	r := NewRanker("not a locale!!")
	assert.Negative(t, r.CompareNames("a", "b"))
}
