package repository

import (
	"context"
	"database/sql"
	"fmt"

	"assessor-dispatch/internal/models"
)

type AssessorRepository struct {
	db *sql.DB
}

func NewAssessorRepository(db *sql.DB) *AssessorRepository {
	return &AssessorRepository{db: db}
}

// ListByOrganization returns the organization's users flagged as assessors.
func (r *AssessorRepository) ListByOrganization(ctx context.Context, organizationID string) ([]models.Assessor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, display_name, COALESCE(base_location, ''),
		       is_assessor, COALESCE(email, ''), COALESCE(phone, '')
		FROM users
		WHERE organization_id = $1 AND is_assessor = TRUE`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list assessors: %w", err)
	}
	defer rows.Close()

	var out []models.Assessor
	for rows.Next() {
		var a models.Assessor
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.DisplayName, &a.BaseLocation, &a.IsAssessor, &a.Email, &a.Phone); err != nil {
			return nil, fmt.Errorf("scan assessor: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assessors: %w", err)
	}
	return out, nil
}
