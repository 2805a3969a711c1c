// internal/workers/assignment/recommend-assessor/models.go
package recommendassessor

import (
	"assessor-dispatch/internal/assignment/session"
	"assessor-dispatch/internal/common/validation"
)

type Input struct {
	OrganizationID string `json:"organizationId"`
	JobID          string `json:"jobId"`
	// OperatorID scopes the session to one operator; a new request from the
	// same operator abandons their previous session.
	OperatorID string `json:"operatorId,omitempty"`
}

type Candidate struct {
	AssessorID    string   `json:"assessorId"`
	DisplayName   string   `json:"displayName"`
	BookedToday   int      `json:"bookedToday"`
	Available     bool     `json:"available"`
	Reason        string   `json:"availabilityReason"`
	DistanceKm    *float64 `json:"distanceKm"`
	TravelMinutes *float64 `json:"travelMinutes"`
	Pending       bool     `json:"pending"`
	Degraded      bool     `json:"degraded"`
	EstimateError string   `json:"estimateError,omitempty"`
	IsRecommended bool     `json:"isRecommended"`
}

type Output struct {
	JobID                 string        `json:"jobId"`
	State                 session.State `json:"recommendationState"`
	Candidates            []Candidate   `json:"candidates"`
	RecommendedAssessorID *string       `json:"recommendedAssessorId"`
	Pending               int           `json:"pending"`
	Degraded              int           `json:"degraded"`
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"organizationId", "jobId"},
		Properties: map[string]validation.Property{
			"organizationId": {
				Type:        "string",
				Description: "Organization that owns the job and the assessors",
				MinLength:   validation.Int(1),
			},
			"jobId": {
				Type:        "string",
				Description: "Job to recommend an assessor for",
				MinLength:   validation.Int(1),
			},
			"operatorId": {
				Type:        []string{"string", "null"},
				Description: "Operator viewing the recommendation",
			},
		},
	}
}
