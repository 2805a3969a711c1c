// internal/models/assessor.go
package models

// Assessor is a mobile worker who can be assigned jobs within an organization.
type Assessor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	DisplayName    string `json:"displayName"`
	BaseLocation   string `json:"baseLocation,omitempty"`
	IsAssessor     bool   `json:"isAssessor"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// HasBaseLocation reports whether the assessor has a usable origin for routing.
func (a Assessor) HasBaseLocation() bool {
	return hasText(a.BaseLocation)
}

// DailyCapacitySetting is the org-scoped daily booking cap. A nil
// MaxAssessmentsPerDay means there is no limit.
type DailyCapacitySetting struct {
	OrganizationID       string `json:"organizationId"`
	MaxAssessmentsPerDay *int   `json:"maxAssessmentsPerDay"`
}
