package commit

import (
	"time"

	"assessor-dispatch/internal/models"
)

// StatusForAssignment is the status a job moves to when it gets an assessor:
// awaiting_attendance once an appointment is booked, otherwise
// awaiting_booking.
func StatusForAssignment(appointmentDate *time.Time) models.JobStatus {
	if appointmentDate != nil {
		return models.StatusAwaitingAttendance
	}
	return models.StatusAwaitingBooking
}

// Action classifies what a commit did.
type Action string

const (
	ActionAssign   Action = "assign"
	ActionReassign Action = "reassign"
	ActionUnassign Action = "unassign"
	ActionNoop     Action = "noop"
)

// plan decides the action and the fields to write for cmd against job.
func plan(job models.Job, cmd Command, now time.Time) (Action, models.AssignmentUpdate) {
	if cmd.Unassign {
		if job.AssignedTo == nil && job.TimeAssigned == nil && job.Status == models.StatusNewJob {
			return ActionNoop, models.AssignmentUpdate{}
		}
		return ActionUnassign, models.AssignmentUpdate{Status: models.StatusNewJob}
	}

	if job.IsAssignedTo(cmd.AssessorID) {
		return ActionNoop, models.AssignmentUpdate{}
	}

	action := ActionAssign
	if job.AssignedTo != nil {
		action = ActionReassign
	}
	assessorID := cmd.AssessorID
	at := now.UTC()
	return action, models.AssignmentUpdate{
		AssignedTo:   &assessorID,
		Status:       StatusForAssignment(job.AppointmentDate),
		TimeAssigned: &at,
	}
}
