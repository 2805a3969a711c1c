package candidates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/models"
)

type fakeDirectory struct {
	assessors []models.Assessor
	err       error
}

func (f fakeDirectory) ListByOrganization(context.Context, string) ([]models.Assessor, error) {
	return f.assessors, f.err
}

type bookingCall struct {
	assessorID string
	start, end time.Time
}

type fakeBookings struct {
	counts map[string]int
	failOn string
	calls  []bookingCall
}

func (f *fakeBookings) CountForAssessorBetween(_ context.Context, _, assessorID string, start, end time.Time) (int, error) {
	f.calls = append(f.calls, bookingCall{assessorID, start, end})
	if assessorID == f.failOn {
		return 0, errors.New("timeout")
	}
	return f.counts[assessorID], nil
}

type fakeSettings struct {
	setting models.DailyCapacitySetting
	err     error
}

func (f fakeSettings) Get(context.Context, string) (models.DailyCapacitySetting, error) {
	return f.setting, f.err
}

func intPtr(v int) *int { return &v }

func TestLoad(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	dir := fakeDirectory{assessors: []models.Assessor{
		{ID: "a1", DisplayName: "Ann", IsAssessor: true},
		{ID: "x", DisplayName: "Office Admin", IsAssessor: false},
		{ID: "a2", DisplayName: "Ben", IsAssessor: true},
	}}
	bookings := &fakeBookings{counts: map[string]int{"a1": 3}}
	settings := fakeSettings{setting: models.DailyCapacitySetting{OrganizationID: "org-1", MaxAssessmentsPerDay: intPtr(5)}}

	l := NewLoader(dir, bookings, settings, logger.NewTestLogger(t), WithClock(func() time.Time { return now }))
	pool, err := l.Load(context.Background(), "org-1")
	require.NoError(t, err)

	require.Len(t, pool.Assessors, 2)
	assert.Equal(t, "a1", pool.Assessors[0].ID)
	assert.Equal(t, "a2", pool.Assessors[1].ID)
	assert.Equal(t, map[string]int{"a1": 3, "a2": 0}, pool.BookedToday)
	assert.Equal(t, 5, *pool.Capacity.MaxAssessmentsPerDay)

	wantStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	require.Len(t, bookings.calls, 2)
	for _, c := range bookings.calls {
		assert.Equal(t, wantStart, c.start)
		assert.Equal(t, wantStart.Add(24*time.Hour), c.end)
	}
}

func TestLoad_EmptyOrganization(t *testing.T) {
	l := NewLoader(fakeDirectory{}, &fakeBookings{}, fakeSettings{}, logger.NewTestLogger(t))
	pool, err := l.Load(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, pool.Assessors)
	assert.Nil(t, pool.Capacity.MaxAssessmentsPerDay)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name     string
		dir      fakeDirectory
		bookings *fakeBookings
		settings fakeSettings
	}{
		{
			name:     "organization cannot be resolved",
			dir:      fakeDirectory{},
			bookings: &fakeBookings{},
			settings: fakeSettings{err: errors.New("organization not found")},
		},
		{
			name:     "directory failure",
			dir:      fakeDirectory{err: errors.New("connection reset")},
			bookings: &fakeBookings{},
		},
		{
			name:     "booking count failure",
			dir:      fakeDirectory{assessors: []models.Assessor{{ID: "a1", IsAssessor: true}}},
			bookings: &fakeBookings{failOn: "a1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(tt.dir, tt.bookings, tt.settings, logger.NewTestLogger(t))
			pool, err := l.Load(context.Background(), "org-1")
			assert.Nil(t, pool)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDataUnavailable))
		})
	}
}

func TestDayBounds(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	tests := []struct {
		name      string
		now       time.Time
		loc       *time.Location
		wantStart time.Time
		wantLen   time.Duration
	}{
		{
			name:      "utc midday",
			now:       time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			wantLen:   24 * time.Hour,
		},
		{
			name:      "late utc is next day in london summer time",
			now:       time.Date(2026, 6, 1, 23, 30, 0, 0, time.UTC),
			loc:       london,
			wantStart: time.Date(2026, 6, 2, 0, 0, 0, 0, london),
			wantLen:   24 * time.Hour,
		},
		{
			name:      "clocks go forward",
			now:       time.Date(2026, 3, 29, 12, 0, 0, 0, london),
			loc:       london,
			wantStart: time.Date(2026, 3, 29, 0, 0, 0, 0, london),
			wantLen:   23 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := DayBounds(tt.now, tt.loc)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.Equal(t, tt.wantLen, end.Sub(start))
		})
	}
}
