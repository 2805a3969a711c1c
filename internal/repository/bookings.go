package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CountForAssessorBetween counts assessments scheduled in [start, end).
func (r *BookingRepository) CountForAssessorBetween(ctx context.Context, organizationID, assessorID string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM assessments
		WHERE organization_id = $1 AND assessor_id = $2
		  AND scheduled_at >= $3 AND scheduled_at < $4`,
		organizationID, assessorID, start, end,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings for %s: %w", assessorID, err)
	}
	return n, nil
}
