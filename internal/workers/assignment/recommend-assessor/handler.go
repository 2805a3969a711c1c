package recommendassessor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"assessor-dispatch/internal/assignment/session"
	"assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/common/validation"
)

const TaskType = "recommend-assessor"

type Sessions interface {
	Open(ctx context.Context, viewerKey, organizationID, jobID string) (*session.Session, error)
	Release(viewerKey string, sess *session.Session)
}

type Handler struct {
	config       *Config
	sessions     Sessions
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, sessions Sessions, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		sessions:     sessions,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing recommendation request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// Execute runs one recommendation session and reports its state once every
// estimate has resolved or the wait timeout passes, whichever comes first.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	viewerKey := input.OperatorID
	if viewerKey == "" {
		viewerKey = "job:" + input.JobID
	}

	sess, err := h.sessions.Open(ctx, viewerKey, input.OrganizationID, input.JobID)
	if err != nil {
		return nil, err
	}
	defer h.sessions.Release(viewerKey, sess)

	waitCtx, cancel := context.WithTimeout(ctx, h.config.WaitTimeout)
	defer cancel()

	snap, err := sess.Wait(waitCtx)
	if err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if err != nil {
		h.logger.Warn("Reporting recommendation before all estimates resolved", map[string]interface{}{
			"jobId":   input.JobID,
			"pending": snap.Pending,
		})
	}

	output := toOutput(snap)
	h.logger.Info("Recommendation ready", map[string]interface{}{
		"jobId":       input.JobID,
		"state":       string(output.State),
		"candidates":  len(output.Candidates),
		"degraded":    output.Degraded,
		"recommended": output.RecommendedAssessorID != nil,
	})
	return output, nil
}

func toOutput(snap session.Snapshot) *Output {
	out := &Output{
		JobID:      snap.JobID,
		State:      snap.State,
		Candidates: make([]Candidate, 0, len(snap.Candidates)),
		Pending:    snap.Pending,
		Degraded:   snap.Degraded,
	}
	for _, c := range snap.Candidates {
		cand := Candidate{
			AssessorID:    c.Assessor.ID,
			DisplayName:   c.Assessor.DisplayName,
			BookedToday:   c.BookedToday,
			Available:     c.Availability.IsAvailable(),
			Reason:        c.Availability.Reason,
			Pending:       c.Pending(),
			IsRecommended: c.IsRecommended,
		}
		if c.Estimate != nil {
			cand.DistanceKm = c.Estimate.DistanceKm
			cand.TravelMinutes = c.Estimate.TravelMinutes
			cand.Degraded = c.Estimate.Degraded
			cand.EstimateError = c.Estimate.Error
		}
		out.Candidates = append(out.Candidates, cand)
	}
	if snap.Recommended != nil {
		id := snap.Recommended.Assessor.ID
		out.RecommendedAssessorID = &id
	}
	return out
}

func parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidAssignmentInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	// Process instances carry more variables than this worker reads.
	relevant := map[string]interface{}{}
	for _, key := range []string{"organizationId", "jobId", "operatorId"} {
		if v, ok := variables[key]; ok {
			relevant[key] = v
		}
	}
	if result := validation.ValidateInput(relevant, GetInputSchema()); !result.Valid {
		return nil, errors.NewInvalidAssignmentInputError(fmt.Sprintf("%v", result.GetErrorMessages()))
	}

	input := &Input{
		OrganizationID: relevant["organizationId"].(string),
		JobID:          relevant["jobId"].(string),
	}
	if op, ok := relevant["operatorId"].(string); ok {
		input.OperatorID = op
	}
	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
	}
}
