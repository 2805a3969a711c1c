// internal/workers/assignment/commit-assignment/models.go
package commitassignment

import "assessor-dispatch/internal/common/validation"

type Input struct {
	JobID      string `json:"jobId"`
	AssessorID string `json:"assessorId,omitempty"`
	Unassign   bool   `json:"unassign,omitempty"`
}

type Output struct {
	JobID              string  `json:"jobId"`
	Action             string  `json:"assignmentAction"`
	AssignedTo         *string `json:"assignedTo"`
	Status             string  `json:"jobStatus"`
	TimeAssigned       *string `json:"timeAssigned"` // RFC3339, UTC
	NotificationQueued bool    `json:"notificationQueued"`
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"jobId"},
		Properties: map[string]validation.Property{
			"jobId": {
				Type:        "string",
				Description: "Job whose assignment changes",
				MinLength:   validation.Int(1),
			},
			"assessorId": {
				Type:        []string{"string", "null"},
				Description: "Assessor to assign; omit or null when unassigning",
			},
			"unassign": {
				Type:        []string{"boolean", "null"},
				Description: "Clear the current assignment",
			},
		},
	}
}
