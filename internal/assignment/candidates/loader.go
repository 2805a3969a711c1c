// Package candidates loads the assessor pool for an organization together
// with each assessor's bookings for today.
package candidates

import (
	"context"
	"time"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/models"
)

// AssessorDirectory lists the organization's assessors. Implementations
// return only users flagged as assessors.
type AssessorDirectory interface {
	ListByOrganization(ctx context.Context, organizationID string) ([]models.Assessor, error)
}

// BookingStore counts assessment bookings for an assessor in [start, end).
type BookingStore interface {
	CountForAssessorBetween(ctx context.Context, organizationID, assessorID string, start, end time.Time) (int, error)
}

// SettingsStore returns the org's daily cap. An unknown organization is an
// error; an organization without a cap returns a setting with a nil cap.
type SettingsStore interface {
	Get(ctx context.Context, organizationID string) (models.DailyCapacitySetting, error)
}

// Pool is the loaded candidate pool.
type Pool struct {
	OrganizationID string
	Assessors      []models.Assessor
	BookedToday    map[string]int
	Capacity       models.DailyCapacitySetting
	DayStart       time.Time
	DayEnd         time.Time
}

type Loader struct {
	directory AssessorDirectory
	bookings  BookingStore
	settings  SettingsStore
	location  *time.Location
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Loader)

// WithClock overrides the clock used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithLocation sets the timezone "today" is computed in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(l *Loader) {
		if loc != nil {
			l.location = loc
		}
	}
}

func NewLoader(directory AssessorDirectory, bookings BookingStore, settings SettingsStore, log logger.Logger, opts ...Option) *Loader {
	l := &Loader{
		directory: directory,
		bookings:  bookings,
		settings:  settings,
		location:  time.UTC,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "candidate-loader"}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the pool. Any store failure is reported as DATA_UNAVAILABLE.
func (l *Loader) Load(ctx context.Context, organizationID string) (*Pool, error) {
	settings, err := l.settings.Get(ctx, organizationID)
	if err != nil {
		return nil, apperrors.NewDataUnavailableError(organizationID, err)
	}

	listed, err := l.directory.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, apperrors.NewDataUnavailableError(organizationID, err)
	}

	start, end := DayBounds(l.now(), l.location)
	pool := &Pool{
		OrganizationID: organizationID,
		Assessors:      make([]models.Assessor, 0, len(listed)),
		BookedToday:    make(map[string]int, len(listed)),
		Capacity:       settings,
		DayStart:       start,
		DayEnd:         end,
	}

	for _, a := range listed {
		if !a.IsAssessor {
			continue
		}
		n, err := l.bookings.CountForAssessorBetween(ctx, organizationID, a.ID, start, end)
		if err != nil {
			return nil, apperrors.NewDataUnavailableError(organizationID, err).
				WithMetadata("assessorId", a.ID)
		}
		pool.Assessors = append(pool.Assessors, a)
		pool.BookedToday[a.ID] = n
	}

	l.logger.Debug("Candidate pool loaded", map[string]interface{}{
		"organizationId": organizationID,
		"candidates":     len(pool.Assessors),
		"dayStart":       start.Format(time.RFC3339),
	})
	return pool, nil
}

// DayBounds returns [start of day, start of next day) for now in loc. On
// daylight-saving transition days the window is 23 or 25 hours long.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
