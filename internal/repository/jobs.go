// Package repository holds the postgres implementations of the stores the
// assignment engine depends on.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/models"
)

const jobColumns = `id, organization_id, COALESCE(claim_number, ''), property_address, priority,
	assigned_to, appointment_date, status, time_assigned, updated_at`

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Get returns the job or a JOB_NOT_FOUND error.
func (r *JobRepository) Get(ctx context.Context, jobID string) (models.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, apperrors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// UpdateAssignment writes assignee, status and assignment time in a single
// statement and returns the stored row. The write only applies while the job
// is still in an assignable status; a job that left those statuses after it
// was read yields STATUS_NOT_ASSIGNABLE.
func (r *JobRepository) UpdateAssignment(ctx context.Context, jobID string, upd models.AssignmentUpdate) (models.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET assigned_to = $2, status = $3, time_assigned = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ($5, $6, $7)
		RETURNING `+jobColumns,
		jobID, upd.AssignedTo, string(upd.Status), upd.TimeAssigned,
		string(models.StatusNewJob), string(models.StatusAwaitingBooking), string(models.StatusAwaitingAttendance),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, r.rejectedUpdate(ctx, jobID)
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("update job %s: %w", jobID, err)
	}
	return job, nil
}

// rejectedUpdate explains why the guarded update matched no row.
func (r *JobRepository) rejectedUpdate(ctx context.Context, jobID string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return fmt.Errorf("update job %s: re-read status: %w", jobID, err)
	}
	return apperrors.NewStatusNotAssignableError(jobID, status)
}

func scanJob(row *sql.Row) (models.Job, error) {
	var (
		job             models.Job
		priority        string
		status          string
		assignedTo      sql.NullString
		appointmentDate sql.NullTime
		timeAssigned    sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.OrganizationID, &job.ClaimNumber, &job.PropertyAddress, &priority,
		&assignedTo, &appointmentDate, &status, &timeAssigned, &job.UpdatedAt,
	)
	if err != nil {
		return models.Job{}, err
	}

	job.Priority = models.Priority(priority)
	job.Status = models.JobStatus(status)
	if assignedTo.Valid {
		job.AssignedTo = &assignedTo.String
	}
	if appointmentDate.Valid {
		job.AppointmentDate = &appointmentDate.Time
	}
	if timeAssigned.Valid {
		job.TimeAssigned = &timeAssigned.Time
	}
	return job, nil
}
