// Package availability decides whether an assessor can take another job today.
package availability

import (
	"fmt"

	"assessor-dispatch/internal/models"
)

// Evaluate derives a verdict from today's booked count and the organization's
// daily cap. A nil cap means unlimited.
func Evaluate(booked int, maxPerDay *int) models.AvailabilityVerdict {
	if maxPerDay == nil {
		return models.AvailabilityVerdict{
			Status: models.Available,
			Reason: fmt.Sprintf("%d/unlimited jobs today", booked),
		}
	}

	limit := *maxPerDay
	if booked >= limit {
		return models.AvailabilityVerdict{
			Status: models.Unavailable,
			Reason: fmt.Sprintf("Reached daily limit (%d/%d)", booked, limit),
		}
	}

	return models.AvailabilityVerdict{
		Status: models.Available,
		Reason: fmt.Sprintf("%d/%d jobs today", booked, limit),
	}
}
