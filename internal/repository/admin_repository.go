package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-directory-api/internal/models"
)

// AdminRepository is the read-only AdminLookup collaborator; admin usernames
// seed teacher code prefixes.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs an AdminRepository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// EarliestByCampus fetches the claiming admin for one (school, campus) pair:
// first-writer-wins on created_at, ties broken by insertion order.
func (r *AdminRepository) EarliestByCampus(ctx context.Context, schoolID string, campusID *string) (*models.Admin, error) {
	const query = `SELECT id, username, school_id, campus_id, created_at FROM admins
		WHERE school_id = $1 AND campus_id IS NOT DISTINCT FROM $2
		ORDER BY created_at ASC, id ASC LIMIT 1`
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, schoolID, campusID); err != nil {
		return nil, err
	}
	return &admin, nil
}

// ListAll loads every admin in insertion order for reconciliation runs.
func (r *AdminRepository) ListAll(ctx context.Context) ([]models.Admin, error) {
	const query = `SELECT id, username, school_id, campus_id, created_at FROM admins ORDER BY created_at ASC, id ASC`
	var admins []models.Admin
	if err := r.db.SelectContext(ctx, &admins, query); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}
