// Package session runs recommendation sessions: it loads the candidate pool,
// evaluates availability up front and merges route estimates into the
// ranking as they resolve.
package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"assessor-dispatch/internal/assignment/availability"
	"assessor-dispatch/internal/assignment/candidates"
	"assessor-dispatch/internal/assignment/ranking"
	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/common/observability"
	"assessor-dispatch/internal/models"
)

type JobReader interface {
	Get(ctx context.Context, jobID string) (models.Job, error)
}

type CandidateSource interface {
	Load(ctx context.Context, organizationID string) (*candidates.Pool, error)
}

// RouteEstimator never fails; degraded results are carried in the estimate.
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination string) models.DistanceEstimate
}

type Orchestrator struct {
	jobs      JobReader
	loader    CandidateSource
	estimator RouteEstimator
	ranker    *ranking.Ranker
	obs       *observability.Observability
	timeout   time.Duration
	logger    logger.Logger
}

type Option func(*Orchestrator)

// WithSessionTimeout bounds how long a session's estimates may run in total.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func NewOrchestrator(jobs JobReader, loader CandidateSource, estimator RouteEstimator, ranker *ranking.Ranker, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:      jobs,
		loader:    loader,
		estimator: estimator,
		ranker:    ranker,
		timeout:   10 * time.Second,
		logger:    log.WithFields(map[string]interface{}{"component": "recommendation-orchestrator"}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open starts a session for jobID. Job lookup errors are returned. A pool
// that cannot be loaded yields a failed session with no candidates. Otherwise
// availability is settled before Open returns and one estimate per candidate
// runs in the background.
func (o *Orchestrator) Open(ctx context.Context, organizationID, jobID string) (*Session, error) {
	ctx, span := o.obs.StartSpan(ctx, "assignment.session.open",
		attribute.String("organizationId", organizationID),
		attribute.String("jobId", jobID))
	defer span.End()

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if job.OrganizationID != organizationID {
		return nil, apperrors.NewJobNotFoundError(jobID).WithMetadata("organizationId", organizationID)
	}

	log := o.logger.WithFields(map[string]interface{}{
		"organizationId": organizationID,
		"jobId":          jobID,
	})

	pool, err := o.loader.Load(ctx, organizationID)
	if err != nil {
		span.RecordError(err)
		log.Error("Candidate pool unavailable", map[string]interface{}{"error": err.Error()})
		return failedSession(job, o.ranker, err, o.finisher(ctx)), nil
	}

	ranked := make([]models.RankedCandidate, 0, len(pool.Assessors))
	for _, a := range pool.Assessors {
		booked := pool.BookedToday[a.ID]
		ranked = append(ranked, models.RankedCandidate{
			Assessor:     a,
			BookedToday:  booked,
			Availability: availability.Evaluate(booked, pool.Capacity.MaxAssessmentsPerDay),
		})
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	sess := newSession(job, o.ranker, ranked, cancel, o.finisher(ctx))

	log.Info("Recommendation session opened", map[string]interface{}{
		"candidates": len(ranked),
	})

	for _, c := range ranked {
		go func(a models.Assessor) {
			est := o.estimator.Estimate(runCtx, a.BaseLocation, job.PropertyAddress)
			if !sess.apply(a.ID, est) {
				log.Debug("Discarded estimate for finished session", map[string]interface{}{
					"assessorId": a.ID,
				})
			}
		}(c.Assessor)
	}

	return sess, nil
}

func (o *Orchestrator) finisher(ctx context.Context) func(State, time.Duration) {
	ctx = context.WithoutCancel(ctx)
	return func(state State, d time.Duration) {
		metrics.Sessions.WithLabelValues(string(state)).Inc()
		o.obs.RecordSession(ctx, string(state), d)
	}
}
