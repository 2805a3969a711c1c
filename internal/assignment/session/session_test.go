package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessor-dispatch/internal/assignment/candidates"
	"assessor-dispatch/internal/assignment/ranking"
	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/models"
)

type fakeJobs map[string]models.Job

func (f fakeJobs) Get(_ context.Context, jobID string) (models.Job, error) {
	job, ok := f[jobID]
	if !ok {
		return models.Job{}, apperrors.NewJobNotFoundError(jobID)
	}
	return job, nil
}

type fakeLoader struct {
	pool *candidates.Pool
	err  error
}

func (f fakeLoader) Load(_ context.Context, _ string) (*candidates.Pool, error) {
	return f.pool, f.err
}

// gatedEstimator blocks each origin until the test releases it.
type gatedEstimator struct {
	mu       sync.Mutex
	gates    map[string]chan models.DistanceEstimate
	returned chan string
}

func newGatedEstimator(origins ...string) *gatedEstimator {
	g := &gatedEstimator{
		gates:    make(map[string]chan models.DistanceEstimate),
		returned: make(chan string, 16),
	}
	for _, o := range origins {
		g.gates[o] = make(chan models.DistanceEstimate, 1)
	}
	return g
}

func (g *gatedEstimator) Estimate(ctx context.Context, origin, _ string) models.DistanceEstimate {
	defer func() { g.returned <- origin }()
	g.mu.Lock()
	gate := g.gates[origin]
	g.mu.Unlock()

	select {
	case est := <-gate:
		return est
	case <-ctx.Done():
		return models.DistanceEstimate{Degraded: true}
	}
}

func (g *gatedEstimator) release(origin string, km float64) {
	minutes := km * 2
	g.gates[origin] <- models.DistanceEstimate{DistanceKm: &km, TravelMinutes: &minutes}
}

func intPtr(n int) *int { return &n }

var testJob = models.Job{
	ID:              "job-1",
	OrganizationID:  "org-1",
	PropertyAddress: "1 Market Street",
	Status:          models.StatusNewJob,
}

func testPool() *candidates.Pool {
	return &candidates.Pool{
		OrganizationID: "org-1",
		Assessors: []models.Assessor{
			{ID: "a-1", DisplayName: "Alice", BaseLocation: "north", IsAssessor: true},
			{ID: "a-2", DisplayName: "Bob", BaseLocation: "south", IsAssessor: true},
			{ID: "a-3", DisplayName: "Cara", BaseLocation: "east", IsAssessor: true},
		},
		BookedToday: map[string]int{"a-1": 1, "a-2": 0, "a-3": 3},
		Capacity:    models.DailyCapacitySetting{OrganizationID: "org-1", MaxAssessmentsPerDay: intPtr(3)},
	}
}

func newTestOrchestrator(est RouteEstimator, loader CandidateSource) *Orchestrator {
	return NewOrchestrator(fakeJobs{"job-1": testJob}, loader, est, ranking.NewRanker("en"), logger.NewNoOpLogger())
}

func ids(cands []models.RankedCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Assessor.ID
	}
	return out
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "updates closed early")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestOpen_AvailabilityBeforeDistance(t *testing.T) {
	est := newGatedEstimator("north", "south", "east")
	sess, err := newTestOrchestrator(est, fakeLoader{pool: testPool()}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	defer sess.Close()

	initial := next(t, sess.Updates())
	assert.Equal(t, StateEstimating, initial.State)
	assert.Equal(t, 3, initial.Pending)
	// no distances yet: available by name, then the capped assessor
	assert.Equal(t, []string{"a-1", "a-2", "a-3"}, ids(initial.Candidates))
	assert.Equal(t, "Reached daily limit (3/3)", initial.Candidates[2].Availability.Reason)
	assert.Equal(t, "1/3 jobs today", initial.Candidates[0].Availability.Reason)
	for _, c := range initial.Candidates {
		assert.True(t, c.Pending())
	}
	require.NotNil(t, initial.Recommended)
	assert.Equal(t, "a-1", initial.Recommended.Assessor.ID)
}

func TestOpen_ReRanksAsEstimatesResolve(t *testing.T) {
	est := newGatedEstimator("north", "south", "east")
	sess, err := newTestOrchestrator(est, fakeLoader{pool: testPool()}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	defer sess.Close()

	next(t, sess.Updates())

	est.release("south", 4.5)
	snap := next(t, sess.Updates())
	assert.Equal(t, []string{"a-2", "a-1", "a-3"}, ids(snap.Candidates))
	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, "a-2", snap.Recommended.Assessor.ID)

	est.release("north", 2.0)
	snap = next(t, sess.Updates())
	assert.Equal(t, []string{"a-1", "a-2", "a-3"}, ids(snap.Candidates))

	// an unavailable assessor never overtakes available ones
	est.release("east", 0.5)
	snap = next(t, sess.Updates())
	assert.Equal(t, []string{"a-1", "a-2", "a-3"}, ids(snap.Candidates))
	assert.Equal(t, StateComplete, snap.State)
	assert.Equal(t, 0, snap.Pending)

	_, open := <-sess.Updates()
	assert.False(t, open)

	final, err := sess.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, final.State)
	assert.True(t, final.Candidates[0].IsRecommended)
}

func TestClose_DiscardsLateEstimates(t *testing.T) {
	est := newGatedEstimator("north", "south", "east")
	sess, err := newTestOrchestrator(est, fakeLoader{pool: testPool()}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	next(t, sess.Updates())
	est.release("south", 4.5)
	next(t, sess.Updates())

	sess.Close()
	before := sess.Snapshot()
	assert.Equal(t, StateClosed, before.State)

	// cancelled estimators return, but nothing may be written
	for i := 0; i < 3; i++ {
		select {
		case <-est.returned:
		case <-time.After(2 * time.Second):
			t.Fatal("estimators did not observe cancellation")
		}
	}
	after := sess.Snapshot()
	assert.Equal(t, before, after)
	assert.Equal(t, 2, after.Pending)

	for range sess.Updates() {
	}

	_, err = sess.Wait(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionClosed))
}

func TestOpen_LoaderFailureYieldsFailedSession(t *testing.T) {
	loadErr := apperrors.NewDataUnavailableError("org-1", errors.New("db down"))
	sess, err := newTestOrchestrator(newGatedEstimator(), fakeLoader{err: loadErr}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	snap, err := sess.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDataUnavailable))
	assert.Equal(t, StateFailed, snap.State)
	assert.Empty(t, snap.Candidates)
	assert.Nil(t, snap.Recommended)
}

func TestOpen_JobErrors(t *testing.T) {
	o := newTestOrchestrator(newGatedEstimator(), fakeLoader{pool: testPool()})

	_, err := o.Open(context.Background(), "org-1", "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeJobNotFound))

	_, err = o.Open(context.Background(), "org-2", "job-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeJobNotFound))
}

func TestOpen_EmptyPoolCompletesImmediately(t *testing.T) {
	pool := &candidates.Pool{OrganizationID: "org-1", BookedToday: map[string]int{}}
	sess, err := newTestOrchestrator(newGatedEstimator(), fakeLoader{pool: pool}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)

	snap, err := sess.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, snap.State)
	assert.Empty(t, snap.Candidates)
	assert.Nil(t, snap.Recommended)
}

func TestWait_HonoursContext(t *testing.T) {
	est := newGatedEstimator("north", "south", "east")
	sess, err := newTestOrchestrator(est, fakeLoader{pool: testPool()}).Open(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := sess.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateEstimating, snap.State)
}

func TestRegistry_NewJobClosesPreviousSession(t *testing.T) {
	jobs := fakeJobs{
		"job-1": testJob,
		"job-2": {ID: "job-2", OrganizationID: "org-1", Status: models.StatusNewJob},
	}
	est := newGatedEstimator("north", "south", "east")
	o := NewOrchestrator(jobs, fakeLoader{pool: testPool()}, est, ranking.NewRanker("en"), logger.NewNoOpLogger())
	reg := NewRegistry(o)

	first, err := reg.Open(context.Background(), "operator-1", "org-1", "job-1")
	require.NoError(t, err)

	second, err := reg.Open(context.Background(), "operator-1", "org-1", "job-2")
	require.NoError(t, err)
	defer reg.CloseAll()

	assert.Equal(t, StateClosed, first.Snapshot().State)
	assert.Equal(t, StateEstimating, second.Snapshot().State)
	assert.Equal(t, 1, reg.Len())

	reg.Release("operator-1", second)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, StateClosed, second.Snapshot().State)
}

func TestRegistry_SameJobKeepsEarlierSession(t *testing.T) {
	est := newGatedEstimator("north", "south", "east")
	reg := NewRegistry(newTestOrchestrator(est, fakeLoader{pool: testPool()}))
	defer reg.CloseAll()

	first, err := reg.Open(context.Background(), "job:job-1", "org-1", "job-1")
	require.NoError(t, err)
	second, err := reg.Open(context.Background(), "job:job-1", "org-1", "job-1")
	require.NoError(t, err)

	assert.Equal(t, StateEstimating, first.Snapshot().State)
	assert.Equal(t, StateEstimating, second.Snapshot().State)
	assert.Equal(t, 2, reg.Len())

	reg.Release("job:job-1", second)
	assert.Equal(t, StateClosed, second.Snapshot().State)
	assert.Equal(t, StateEstimating, first.Snapshot().State)
	assert.Equal(t, 1, reg.Len())
}
