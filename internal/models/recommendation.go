// internal/models/recommendation.go
package models

type AvailabilityStatus string

const (
	Available   AvailabilityStatus = "available"
	Unavailable AvailabilityStatus = "unavailable"
)

type AvailabilityVerdict struct {
	Status AvailabilityStatus `json:"status"`
	Reason string             `json:"reason"`
}

func (v AvailabilityVerdict) IsAvailable() bool {
	return v.Status == Available
}

// DistanceEstimate is one candidate's route estimate. Nil distance or minutes
// means unknown; Error is empty unless the estimate carries a user-facing
// explanation such as missing location data.
type DistanceEstimate struct {
	DistanceKm    *float64 `json:"distanceKm"`
	TravelMinutes *float64 `json:"travelMinutes"`
	Degraded      bool     `json:"degraded"`
	Error         string   `json:"error,omitempty"`
}

func (e DistanceEstimate) HasDistance() bool {
	return e.DistanceKm != nil
}

// RankedCandidate is an assessor with everything the ranking needs. Estimate
// is nil while the route lookup is still pending.
type RankedCandidate struct {
	Assessor      Assessor            `json:"assessor"`
	BookedToday   int                 `json:"bookedToday"`
	Availability  AvailabilityVerdict `json:"availability"`
	Estimate      *DistanceEstimate   `json:"estimate"`
	IsRecommended bool                `json:"isRecommended"`
}

func (c RankedCandidate) Pending() bool {
	return c.Estimate == nil
}

// DistanceKm returns the known distance, if any.
func (c RankedCandidate) DistanceKm() (float64, bool) {
	if c.Estimate == nil || c.Estimate.DistanceKm == nil {
		return 0, false
	}
	return *c.Estimate.DistanceKm, true
}
