package session

import (
	"context"
	"sync"
	"time"

	"assessor-dispatch/internal/assignment/ranking"
	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/models"
)

type State string

const (
	StateEstimating State = "estimating"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// Snapshot is an immutable view of a session at one point in time.
type Snapshot struct {
	JobID          string                   `json:"jobId"`
	OrganizationID string                   `json:"organizationId"`
	State          State                    `json:"state"`
	Candidates     []models.RankedCandidate `json:"candidates"`
	Recommended    *models.RankedCandidate  `json:"recommended,omitempty"`
	Pending        int                      `json:"pending"`
	Degraded       int                      `json:"degraded"`
	Err            error                    `json:"-"`
}

// Session holds one recommendation run for one job. Route estimates are
// merged in as they resolve; once the session is closed or complete nothing
// is written to it again.
type Session struct {
	jobID          string
	organizationID string
	ranker         *ranking.Ranker
	cancel         context.CancelFunc
	onFinish       func(State, time.Duration)
	started        time.Time

	mu         sync.Mutex
	state      State
	candidates []models.RankedCandidate
	pending    int
	degraded   int
	err        error
	finished   bool

	updates chan Snapshot
	done    chan struct{}
}

func newSession(job models.Job, ranker *ranking.Ranker, candidates []models.RankedCandidate, cancel context.CancelFunc, onFinish func(State, time.Duration)) *Session {
	s := &Session{
		jobID:          job.ID,
		organizationID: job.OrganizationID,
		ranker:         ranker,
		cancel:         cancel,
		onFinish:       onFinish,
		started:        time.Now(),
		state:          StateEstimating,
		candidates:     ranker.Rank(candidates),
		pending:        len(candidates),
		// initial snapshot plus one per resolution
		updates: make(chan Snapshot, len(candidates)+1),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		s.state = StateComplete
	}
	s.publish()
	if s.state != StateEstimating {
		s.finish()
	}
	return s
}

func failedSession(job models.Job, ranker *ranking.Ranker, err error, onFinish func(State, time.Duration)) *Session {
	s := &Session{
		jobID:          job.ID,
		organizationID: job.OrganizationID,
		ranker:         ranker,
		cancel:         func() {},
		onFinish:       onFinish,
		started:        time.Now(),
		state:          StateFailed,
		candidates:     []models.RankedCandidate{},
		err:            err,
		updates:        make(chan Snapshot, 1),
		done:           make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish()
	s.finish()
	return s
}

func (s *Session) JobID() string {
	return s.jobID
}

// Snapshot returns the current ranked view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Updates delivers the initial snapshot and one snapshot per resolved
// estimate. The channel is closed when the session completes, fails or is
// closed.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

// Done is closed once the session stops accepting estimates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until every estimate has resolved or the session ends. It
// returns the final snapshot; a closed session yields SESSION_CLOSED and a
// failed one its load error.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}

	snap := s.Snapshot()
	switch snap.State {
	case StateClosed:
		return snap, apperrors.NewSessionClosedError(s.jobID)
	case StateFailed:
		return snap, snap.Err
	}
	return snap, nil
}

// Close abandons the session. In-flight estimates are cancelled and their
// results discarded. Closing a finished session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.state = StateClosed
	s.finish()
}

// apply merges one candidate's estimate and re-ranks.
func (s *Session) apply(assessorID string, est models.DistanceEstimate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstimating {
		return false
	}

	found := false
	for i := range s.candidates {
		c := &s.candidates[i]
		if c.Assessor.ID == assessorID && c.Pending() {
			e := est
			c.Estimate = &e
			found = true
			break
		}
	}
	if !found {
		return false
	}

	s.pending--
	if est.Degraded {
		s.degraded++
	}
	s.candidates = s.ranker.Rank(s.candidates)
	if s.pending == 0 {
		s.state = StateComplete
	}
	s.publish()
	if s.state == StateComplete {
		s.finish()
	}
	return true
}

// publish must be called with mu held and before finish.
func (s *Session) publish() {
	select {
	case s.updates <- s.snapshotLocked():
	default:
	}
}

// finish must be called with mu held.
func (s *Session) finish() {
	if s.finished {
		return
	}
	s.finished = true
	s.cancel()
	close(s.updates)
	close(s.done)
	if s.onFinish != nil {
		s.onFinish(s.state, time.Since(s.started))
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		JobID:          s.jobID,
		OrganizationID: s.organizationID,
		State:          s.state,
		Candidates:     cloneCandidates(s.candidates),
		Pending:        s.pending,
		Degraded:       s.degraded,
		Err:            s.err,
	}
	if rec, ok := ranking.Recommended(snap.Candidates); ok {
		snap.Recommended = &rec
	}
	return snap
}

func cloneCandidates(in []models.RankedCandidate) []models.RankedCandidate {
	out := make([]models.RankedCandidate, len(in))
	for i, c := range in {
		out[i] = c
		if c.Estimate != nil {
			e := *c.Estimate
			out[i].Estimate = &e
		}
	}
	return out
}
