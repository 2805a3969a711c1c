package ranking

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"assessor-dispatch/internal/models"
)

// buildPool zips generated columns into candidates. Negative distances stand
// for "unknown".
func buildPool(avail []bool, dists []float64, names []string) []models.RankedCandidate {
	n := min(len(avail), len(dists), len(names))
	pool := make([]models.RankedCandidate, n)
	for i := 0; i < n; i++ {
		var dist *float64
		if dists[i] >= 0 {
			d := float64(int(dists[i]))
			dist = &d
		}
		pool[i] = candidate(fmt.Sprintf("id-%03d", i), names[i], avail[i], dist)
	}
	return pool
}

func TestRankProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	r := NewRanker("en")

	columns := []gopter.Gen{
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.Float64Range(-10, 20)),
		gen.SliceOf(gen.OneConstOf("Ann", "ann", "Bea", "Émile", "Zoe", "Óscar", "Zoe")),
	}

	properties.Property("available candidates precede unavailable ones", prop.ForAll(
		func(avail []bool, dists []float64, names []string) bool {
			ranked := r.Rank(buildPool(avail, dists, names))
			for i := 1; i < len(ranked); i++ {
				if !ranked[i-1].Availability.IsAvailable() && ranked[i].Availability.IsAvailable() {
					return false
				}
			}
			return true
		},
		columns...,
	))

	properties.Property("distance ascends within a class, unknown last, then names ascend", prop.ForAll(
		func(avail []bool, dists []float64, names []string) bool {
			ranked := r.Rank(buildPool(avail, dists, names))
			for i := 1; i < len(ranked); i++ {
				a, b := ranked[i-1], ranked[i]
				if a.Availability.Status != b.Availability.Status {
					continue
				}
				da, aKnown := a.DistanceKm()
				db, bKnown := b.DistanceKm()
				switch {
				case !aKnown && bKnown:
					return false
				case aKnown && bKnown && da > db:
					return false
				case aKnown == bKnown && da == db:
					if r.CompareNames(a.Assessor.DisplayName, b.Assessor.DisplayName) > 0 {
						return false
					}
				}
			}
			return true
		},
		columns...,
	))

	properties.Property("recommendation is first, unique and available", prop.ForAll(
		func(avail []bool, dists []float64, names []string) bool {
			ranked := r.Rank(buildPool(avail, dists, names))
			count := 0
			for i, c := range ranked {
				if !c.IsRecommended {
					continue
				}
				count++
				if i != 0 || !c.Availability.IsAvailable() {
					return false
				}
			}
			if len(ranked) > 0 && ranked[0].Availability.IsAvailable() && count != 1 {
				return false
			}
			return count <= 1
		},
		columns...,
	))

	properties.Property("ranking is deterministic regardless of input order", prop.ForAll(
		func(avail []bool, dists []float64, names []string) bool {
			pool := buildPool(avail, dists, names)
			reversed := make([]models.RankedCandidate, len(pool))
			for i := range pool {
				reversed[len(pool)-1-i] = pool[i]
			}
			a, b := r.Rank(pool), r.Rank(reversed)
			for i := range a {
				if a[i].Assessor.ID != b[i].Assessor.ID {
					return false
				}
			}
			return true
		},
		columns...,
	))

	properties.TestingRun(t)
}
