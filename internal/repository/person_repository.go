package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// PersonRepository is the Directory collaborator holding people records.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// UsernameExists performs an exact-match existence check. The username
// column is unique across the whole table, so the check ignores roles.
func (r *PersonRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT 1 FROM people WHERE username = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// CodesByPrefix returns only the code column of records matching the
// anchored pattern, sorted string-descending. With fixed-width zero-padded
// suffixes the first element carries the highest sequence.
func (r *PersonRepository) CodesByPrefix(ctx context.Context, schoolID string, campusID *string, pattern string) ([]string, error) {
	query := `SELECT code FROM people WHERE school_id = $1 AND code ~ $2`
	args := []interface{}{schoolID, pattern}
	if campusID != nil {
		query += ` AND campus_id = $3`
		args = append(args, *campusID)
	}
	query += ` ORDER BY code DESC`

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("scan codes by prefix: %w", err)
	}
	return codes, nil
}

// FindByID fetches a person by ID.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	const query = `SELECT id, role, school_id, campus_id, full_name, username, code, password_hash, created_at, updated_at
		FROM people WHERE id = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// Create inserts a new person record. A uniqueness violation on the code
// column surfaces as AllocationConflict so the caller can retry with a fresh
// sequence; a username collision surfaces as a plain conflict.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, role, school_id, campus_id, full_name, username, code, password_hash, created_at, updated_at)
		VALUES (:id, :role, :school_id, :campus_id, :full_name, :username, :code, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			if strings.Contains(pqErr.Constraint, "code") {
				return appErrors.Wrap(err, appErrors.ErrAllocationConflict.Code, appErrors.ErrAllocationConflict.Status, "code already allocated")
			}
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "username already exists")
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// UpdateCredentials rewrites username and password hash for one record.
func (r *PersonRepository) UpdateCredentials(ctx context.Context, id, username, passwordHash string) error {
	const query = `UPDATE people SET username = $2, password_hash = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, username, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTeachers loads every teacher record in insertion order.
func (r *PersonRepository) ListTeachers(ctx context.Context) ([]models.Person, error) {
	const query = `SELECT id, role, school_id, campus_id, full_name, username, code, password_hash, created_at, updated_at
		FROM people WHERE role = $1 ORDER BY created_at ASC, id ASC`
	var teachers []models.Person
	if err := r.db.SelectContext(ctx, &teachers, query, models.RoleTeacher); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// BulkUpdateCodes applies all code rewrites inside one transaction.
// Any failure rolls back the whole batch; partial renumbering within a
// prefix group would break the uniqueness invariant.
//
// Renumbering may permute codes within a group (the record holding -002
// becomes -001 while -001 still exists), so the unique index on code is
// declared DEFERRABLE and checked at commit, not per statement.
func (r *PersonRepository) BulkUpdateCodes(ctx context.Context, updates []models.CodeUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS ALL DEFERRED`); err != nil {
		return 0, fmt.Errorf("defer constraints: %w", err)
	}

	const query = `UPDATE people SET code = $2, updated_at = $3 WHERE id = $1`
	now := time.Now().UTC()

	var modified int64
	for _, update := range updates {
		res, err := tx.ExecContext(ctx, query, update.PersonID, update.Code, now)
		if err != nil {
			return 0, fmt.Errorf("bulk update code for %s: %w", update.PersonID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("bulk update rows affected: %w", err)
		}
		modified += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk update: %w", err)
	}
	return modified, nil
}
