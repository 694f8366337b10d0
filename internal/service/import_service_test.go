package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

func newImportFixture(directory *mockPersonDirectory, counters *mockCounterStore, cfg ImportConfig) *ImportService {
	schools := &mockSchoolLookup{schools: map[string]*models.School{
		"school-1": {ID: "school-1", Code: "NPS"},
		"school-2": {ID: "school-2", Code: ""},
	}}
	admins := &mockAdminLookup{admins: map[string]*models.Admin{
		"school-1": {ID: "admin-1", Username: "EEC-NPS01", SchoolID: "school-1"},
	}}
	alloc := NewAllocationService(&mockCodeDirectory{}, counters, nil, nil)
	creds := identity.NewCredentialGenerator(directory, 0)
	return NewImportService(directory, schools, admins, alloc, creds, nil, nil, cfg)
}

func studentRow(name string) ImportRow {
	return ImportRow{Role: models.RoleStudent, SchoolID: "school-1", Year: 2024, FullName: name}
}

func TestBulkCreateReservesOncePerScope(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 0,
		"STAFF:school-1:-:0:NPS":      0,
	}}
	svc := newImportFixture(directory, counters, ImportConfig{})

	rows := []ImportRow{
		studentRow("Budi Santoso"),
		{Role: models.RoleStaff, SchoolID: "school-1", FullName: "Siti Aminah"},
		studentRow("Dewi Lestari"),
		studentRow("Agus Wijaya"),
	}

	results, err := svc.BulkCreate(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Two distinct scopes, two counter operations.
	assert.Equal(t, 2, counters.incrementCalls)

	assert.Equal(t, "NPS2024001", results[0].Code)
	assert.Equal(t, "NPSEMP0001", results[1].Code)
	assert.Equal(t, "NPS2024002", results[2].Code)
	assert.Equal(t, "NPS2024003", results[3].Code)
	for _, r := range results {
		assert.True(t, r.Created)
		assert.NotEmpty(t, r.Username)
		assert.NotEmpty(t, r.Password)
	}
}

func TestBulkCreateRowFailureKeepsSurvivorSequences(t *testing.T) {
	directory := &mockPersonDirectory{createErr: []error{
		nil,
		nil,
		appErrors.Clone(appErrors.ErrAllocationConflict, ""),
		nil,
		nil,
	}}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 0,
	}}
	svc := newImportFixture(directory, counters, ImportConfig{})

	rows := []ImportRow{
		studentRow("Row One"),
		studentRow("Row Two"),
		studentRow("Row Three"),
		studentRow("Row Four"),
		studentRow("Row Five"),
	}

	results, err := svc.BulkCreate(context.Background(), rows)
	require.NoError(t, err)

	assert.False(t, results[2].Created)
	require.NotNil(t, results[2].Error)
	assert.Equal(t, appErrors.ErrAllocationConflict.Code, results[2].Error.Code)

	// Survivors keep their reserved positions; 003 stays a gap.
	assert.Equal(t, "NPS2024001", results[0].Code)
	assert.Equal(t, "NPS2024002", results[1].Code)
	assert.Equal(t, "NPS2024004", results[3].Code)
	assert.Equal(t, "NPS2024005", results[4].Code)
}

func TestBulkCreateReportsConfigurationErrorsInPlace(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 0,
	}}
	svc := newImportFixture(directory, counters, ImportConfig{})

	rows := []ImportRow{
		studentRow("Budi Santoso"),
		{Role: models.RoleTeacher, SchoolID: "school-2", FullName: "No Prefix Source"},
	}

	results, err := svc.BulkCreate(context.Background(), rows)
	require.NoError(t, err)

	assert.True(t, results[0].Created)
	assert.Equal(t, "NPS2024001", results[0].Code)

	assert.False(t, results[1].Created)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, appErrors.ErrConfiguration.Code, results[1].Error.Code)
}

func TestBulkCreateRejectsRolesWithoutCodes(t *testing.T) {
	svc := newImportFixture(&mockPersonDirectory{}, &mockCounterStore{}, ImportConfig{})

	results, err := svc.BulkCreate(context.Background(), []ImportRow{
		{Role: models.RoleParent, SchoolID: "school-1", FullName: "Ibu Ani"},
	})
	require.NoError(t, err)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, appErrors.ErrValidation.Code, results[0].Error.Code)
}

func TestBulkCreateRejectsStudentsWithoutYear(t *testing.T) {
	svc := newImportFixture(&mockPersonDirectory{}, &mockCounterStore{}, ImportConfig{})

	results, err := svc.BulkCreate(context.Background(), []ImportRow{
		{Role: models.RoleStudent, SchoolID: "school-1", FullName: "Budi Santoso"},
	})
	require.NoError(t, err)
	require.NotNil(t, results[0].Error)
	assert.Equal(t, appErrors.ErrValidation.Code, results[0].Error.Code)
}

func TestBulkCreateBoundsBatchSize(t *testing.T) {
	svc := newImportFixture(&mockPersonDirectory{}, &mockCounterStore{}, ImportConfig{MaxRows: 2})

	_, err := svc.BulkCreate(context.Background(), []ImportRow{
		studentRow("One"), studentRow("Two"), studentRow("Three"),
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.BulkCreate(context.Background(), nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBulkCreateTeacherRowsUseClaimingAdmin(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"TEACHER:school-1:-:0:NPS01": 0,
	}}
	svc := newImportFixture(directory, counters, ImportConfig{})

	results, err := svc.BulkCreate(context.Background(), []ImportRow{
		{Role: models.RoleTeacher, SchoolID: "school-1", FullName: "Dewi Lestari"},
		{Role: models.RoleTeacher, SchoolID: "school-1", FullName: "Agus Wijaya"},
	})
	require.NoError(t, err)
	assert.Equal(t, "NPS01-TEA-001", results[0].Code)
	assert.Equal(t, "NPS01-TEA-002", results[1].Code)
	assert.Equal(t, 1, counters.incrementCalls)
}
