// Package commit applies an operator's assignment decision to a job.
package commit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/common/observability"
	"assessor-dispatch/internal/models"
)

// JobStore reads jobs and writes assignment fields in one statement.
type JobStore interface {
	Get(ctx context.Context, jobID string) (models.Job, error)
	UpdateAssignment(ctx context.Context, jobID string, upd models.AssignmentUpdate) (models.Job, error)
}

type NotificationSink interface {
	Notify(ctx context.Context, n models.Notification) (*models.NotificationResult, error)
}

// Command is one operator decision: assign AssessorID, or unassign.
type Command struct {
	JobID      string
	AssessorID string
	Unassign   bool
}

func (c Command) validate() error {
	if strings.TrimSpace(c.JobID) == "" {
		return apperrors.NewInvalidAssignmentInputError("jobId is required")
	}
	if c.Unassign && c.AssessorID != "" {
		return apperrors.NewInvalidAssignmentInputError("assessorId must be empty when unassigning")
	}
	if !c.Unassign && strings.TrimSpace(c.AssessorID) == "" {
		return apperrors.NewInvalidAssignmentInputError("assessorId is required unless unassigning")
	}
	return nil
}

type Result struct {
	Action Action
	// Previous is the job as read before the write.
	Previous models.Job
	// Job is the job as stored after the write (equal to Previous for a no-op).
	Job                models.Job
	NotificationQueued bool
}

// Error is returned when the write fails. Previous is the exact job snapshot
// read before the attempt so callers can restore what they displayed.
type Error struct {
	Previous models.Job
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("commit job %s: %v", e.Previous.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Committer struct {
	jobs          JobStore
	sink          NotificationSink
	obs           *observability.Observability
	notifyTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
	logger        logger.Logger
}

type Option func(*Committer)

func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(c *Committer) {
		if d > 0 {
			c.notifyTimeout = d
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(c *Committer) { c.obs = obs }
}

func NewCommitter(jobs JobStore, sink NotificationSink, log logger.Logger, opts ...Option) *Committer {
	c := &Committer{
		jobs:          jobs,
		sink:          sink,
		notifyTimeout: 10 * time.Second,
		now:           time.Now,
		logger:        log.WithFields(map[string]interface{}{"component": "assignment-committer"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commit applies cmd. Jobs outside new_job, awaiting_booking and
// awaiting_attendance are rejected. Re-assigning the current assessor and
// unassigning an unassigned job are no-ops. A new non-null assignee is
// notified in the background; notification failures never fail the commit.
func (c *Committer) Commit(ctx context.Context, cmd Command) (*Result, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	ctx, span := c.obs.StartSpan(ctx, "assignment.commit",
		attribute.String("jobId", cmd.JobID),
		attribute.Bool("unassign", cmd.Unassign))
	defer span.End()

	job, err := c.jobs.Get(ctx, cmd.JobID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeJobNotFound) {
			return nil, err
		}
		return nil, apperrors.NewJobUnavailableError(cmd.JobID, err)
	}

	if !job.Status.IsAssignable() {
		c.count(ctx, ActionNoop, "rejected")
		return nil, apperrors.NewStatusNotAssignableError(job.ID, string(job.Status))
	}

	action, upd := plan(job, cmd, c.now())
	if action == ActionNoop {
		c.count(ctx, action, "ok")
		return &Result{Action: action, Previous: job.Clone(), Job: job.Clone()}, nil
	}

	updated, err := c.jobs.UpdateAssignment(ctx, job.ID, upd)
	if apperrors.HasCode(err, apperrors.ErrCodeStatusNotAssignable) || apperrors.HasCode(err, apperrors.ErrCodeJobNotFound) {
		// The job changed underneath us; nothing was written.
		c.count(ctx, action, "rejected")
		return nil, err
	}
	if err != nil {
		c.count(ctx, action, "failed")
		c.logger.Error("Assignment write failed", map[string]interface{}{
			"jobId":      job.ID,
			"assessorId": cmd.AssessorID,
			"action":     string(action),
			"error":      err.Error(),
		})
		span.RecordError(err)
		return nil, &Error{
			Previous: job.Clone(),
			Err:      apperrors.NewPersistenceError(job.ID, cmd.AssessorID, err),
		}
	}
	c.count(ctx, action, "ok")

	c.logger.Info("Assignment committed", map[string]interface{}{
		"jobId":          job.ID,
		"action":         string(action),
		"previousStatus": string(job.Status),
		"status":         string(updated.Status),
		"assessorId":     cmd.AssessorID,
	})

	result := &Result{Action: action, Previous: job.Clone(), Job: updated}
	if action == ActionAssign || action == ActionReassign {
		c.notify(updated)
		result.NotificationQueued = true
	}
	return result, nil
}

// Wait blocks until background notifications have finished.
func (c *Committer) Wait() {
	c.wg.Wait()
}

func (c *Committer) notify(job models.Job) {
	if c.sink == nil || job.AssignedTo == nil {
		return
	}
	n := models.Notification{
		RecipientID: *job.AssignedTo,
		JobID:       job.ID,
		ClaimNumber: job.ClaimNumber,
		Address:     job.PropertyAddress,
		Priority:    job.Priority,
		Message:     AssignmentMessage(job),
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.notifyTimeout)
		defer cancel()

		if _, err := c.sink.Notify(ctx, n); err != nil {
			c.logger.Warn("Assignment notification failed", map[string]interface{}{
				"jobId":      n.JobID,
				"assessorId": n.RecipientID,
				"error":      err.Error(),
			})
		}
	}()
}

// AssignmentMessage is the text sent to the newly assigned assessor.
func AssignmentMessage(job models.Job) string {
	msg := fmt.Sprintf("New job assigned: claim %s", job.Reference())
	if strings.TrimSpace(job.PropertyAddress) != "" {
		msg += " at " + job.PropertyAddress
	}
	return msg
}

func (c *Committer) count(ctx context.Context, action Action, result string) {
	metrics.Commits.WithLabelValues(string(action), result).Inc()
	c.obs.RecordCommit(ctx, string(action), result)
}
