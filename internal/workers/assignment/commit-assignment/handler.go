package commitassignment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"assessor-dispatch/internal/assignment/commit"
	"assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/common/validation"
)

const TaskType = "commit-assignment"

type Committer interface {
	Commit(ctx context.Context, cmd commit.Command) (*commit.Result, error)
}

type Handler struct {
	config       *Config
	committer    Committer
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, committer Committer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		committer:    committer,
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

	h.logger.Info("Processing assignment commit", map[string]interface{}{
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

// Execute applies the decision. When the write fails, the job as it was
// before the attempt is attached to the error so the process can restore
// what the operator last saw.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.committer.Commit(ctx, commit.Command{
		JobID:      input.JobID,
		AssessorID: input.AssessorID,
		Unassign:   input.Unassign,
	})
	if err != nil {
		var commitErr *commit.Error
		if stderrors.As(err, &commitErr) {
			stdErr := errors.Normalize(commitErr.Err).
				WithMetadata("previousStatus", string(commitErr.Previous.Status)).
				WithMetadata("previousAssignedTo", commitErr.Previous.AssignedTo)
			return nil, stdErr
		}
		return nil, err
	}

	out := &Output{
		JobID:              res.Job.ID,
		Action:             string(res.Action),
		AssignedTo:         res.Job.AssignedTo,
		Status:             string(res.Job.Status),
		NotificationQueued: res.NotificationQueued,
	}
	if res.Job.TimeAssigned != nil {
		ts := res.Job.TimeAssigned.UTC().Format(time.RFC3339)
		out.TimeAssigned = &ts
	}
	return out, nil
}

func parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidAssignmentInputError(fmt.Sprintf("failed to parse job variables: %v", err))
	}

	relevant := map[string]interface{}{}
	for _, key := range []string{"jobId", "assessorId", "unassign"} {
		if v, ok := variables[key]; ok {
			relevant[key] = v
		}
	}
	if result := validation.ValidateInput(relevant, GetInputSchema()); !result.Valid {
		return nil, errors.NewInvalidAssignmentInputError(fmt.Sprintf("%v", result.GetErrorMessages()))
	}

	input := &Input{JobID: relevant["jobId"].(string)}
	if id, ok := relevant["assessorId"].(string); ok {
		input.AssessorID = id
	}
	if u, ok := relevant["unassign"].(bool); ok {
		input.Unassign = u
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
		return
	}
	h.logger.Info("Assignment commit completed", map[string]interface{}{
		"jobKey": job.GetKey(),
		"jobId":  output.JobID,
		"action": output.Action,
	})
}
