package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-directory-api/internal/models"
)

type stubSchoolFinder struct {
	schools map[string]*models.School
	calls   int
}

func (s *stubSchoolFinder) FindByID(ctx context.Context, id string) (*models.School, error) {
	s.calls++
	if school, ok := s.schools[id]; ok {
		cp := *school
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSchoolFinder) ListAll(ctx context.Context) ([]models.School, error) {
	out := make([]models.School, 0, len(s.schools))
	for _, school := range s.schools {
		out = append(out, *school)
	}
	return out, nil
}

func TestSchoolCacheWithoutRedisDelegates(t *testing.T) {
	inner := &stubSchoolFinder{schools: map[string]*models.School{
		"school-1": {ID: "school-1", Code: "NPS"},
	}}
	cache := NewSchoolCache(inner, nil, time.Minute, nil)

	school, err := cache.FindByID(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "NPS", school.Code)
	assert.Equal(t, 1, inner.calls)

	// No cache layer means every read reaches the inner lookup.
	_, err = cache.FindByID(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestSchoolCachePropagatesNotFound(t *testing.T) {
	cache := NewSchoolCache(&stubSchoolFinder{}, nil, time.Minute, nil)

	_, err := cache.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSchoolCacheListAllBypassesCache(t *testing.T) {
	inner := &stubSchoolFinder{schools: map[string]*models.School{
		"school-1": {ID: "school-1", Code: "NPS"},
	}}
	cache := NewSchoolCache(inner, nil, time.Minute, nil)

	schools, err := cache.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, schools, 1)
}
