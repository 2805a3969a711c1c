// internal/models/job.go
package models

import (
	"strings"
	"time"
)

type JobStatus string

const (
	StatusNewJob             JobStatus = "new_job"
	StatusAwaitingBooking    JobStatus = "awaiting_booking"
	StatusAwaitingAttendance JobStatus = "awaiting_attendance"
	StatusAssessed           JobStatus = "assessed"
	StatusCompleted          JobStatus = "completed"
	StatusOnHold             JobStatus = "on_hold"
	StatusAwaitingInsurer    JobStatus = "awaiting_insurer"
	StatusPendingCompletion  JobStatus = "pending_completion"
)

// IsAssignable reports whether assignment changes may move a job out of s.
// Only new_job, awaiting_booking and awaiting_attendance qualify.
func (s JobStatus) IsAssignable() bool {
	switch s {
	case StatusNewJob, StatusAwaitingBooking, StatusAwaitingAttendance:
		return true
	default:
		return false
	}
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusNewJob, StatusAwaitingBooking, StatusAwaitingAttendance,
		StatusAssessed, StatusCompleted, StatusOnHold,
		StatusAwaitingInsurer, StatusPendingCompletion:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (1) to urgent (4); unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether p is at or above threshold.
func (p Priority) AtLeast(threshold Priority) bool {
	return p.Rank() >= threshold.Rank() && p.Rank() > 0
}

type Job struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	ClaimNumber     string     `json:"claimNumber"`
	PropertyAddress string     `json:"propertyAddress"`
	Priority        Priority   `json:"priority"`
	AssignedTo      *string    `json:"assignedTo"`
	AppointmentDate *time.Time `json:"appointmentDate"`
	Status          JobStatus  `json:"status"`
	TimeAssigned    *time.Time `json:"timeAssigned"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IsAssignedTo reports whether the job is currently held by assessorID.
func (j Job) IsAssignedTo(assessorID string) bool {
	return j.AssignedTo != nil && *j.AssignedTo == assessorID
}

// Reference is the identifier shown to people: the claim number when there
// is one, otherwise the job id.
func (j Job) Reference() string {
	if hasText(j.ClaimNumber) {
		return j.ClaimNumber
	}
	return j.ID
}

// Clone returns a deep copy so snapshots never share pointers with live records.
func (j Job) Clone() Job {
	out := j
	if j.AssignedTo != nil {
		v := *j.AssignedTo
		out.AssignedTo = &v
	}
	if j.AppointmentDate != nil {
		v := *j.AppointmentDate
		out.AppointmentDate = &v
	}
	if j.TimeAssigned != nil {
		v := *j.TimeAssigned
		out.TimeAssigned = &v
	}
	return out
}

// AssignmentUpdate is the set of fields written by one assignment commit.
type AssignmentUpdate struct {
	AssignedTo   *string
	Status       JobStatus
	TimeAssigned *time.Time
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
