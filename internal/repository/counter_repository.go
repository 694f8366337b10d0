package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// CounterRepository persists per-scope sequence counters. All mutation goes
// through single atomic statements so concurrent writers never observe the
// same value twice.
type CounterRepository struct {
	db *sqlx.DB
}

// NewCounterRepository constructs a CounterRepository.
func NewCounterRepository(db *sqlx.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Increment advances an existing counter by delta and returns the new value.
// found is false when no counter row exists for the key yet.
func (r *CounterRepository) Increment(ctx context.Context, key string, delta int) (int, bool, error) {
	const query = `UPDATE sequence_counters SET value = value + $2, updated_at = $3 WHERE scope_key = $1 RETURNING value`
	var value int
	if err := r.db.GetContext(ctx, &value, query, key, delta, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment counter %s: %w", key, err)
	}
	return value, true, nil
}

// InitializeAndIncrement seeds a missing counter at the scanned historical
// maximum and reserves delta values in the same statement. Racing seeders
// collapse into the conflict branch, so exactly one initialization wins and
// both callers still receive disjoint ranges.
func (r *CounterRepository) InitializeAndIncrement(ctx context.Context, key string, seed, delta int) (int, error) {
	const query = `INSERT INTO sequence_counters (scope_key, value, updated_at) VALUES ($1, $2 + $3, $4)
		ON CONFLICT (scope_key) DO UPDATE SET value = sequence_counters.value + $3, updated_at = $4
		RETURNING value`
	var value int
	if err := r.db.GetContext(ctx, &value, query, key, seed, delta, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("initialize counter %s: %w", key, err)
	}
	return value, nil
}

// Set forces a counter to an absolute value after reconciliation rewrites
// the codes it covers.
func (r *CounterRepository) Set(ctx context.Context, key string, value int) error {
	const query = `INSERT INTO sequence_counters (scope_key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (scope_key) DO UPDATE SET value = $2, updated_at = $3`
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set counter %s: %w", key, err)
	}
	return nil
}
