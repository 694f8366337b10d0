package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

type mockPersonDirectory struct {
	items     map[string]*models.Person
	usernames map[string]bool
	created   []*models.Person
	createErr []error

	updatedID       string
	updatedUsername string
	updatedHash     string
	updateErr       error
}

func (m *mockPersonDirectory) UsernameExists(ctx context.Context, username string) (bool, error) {
	return m.usernames[username], nil
}

func (m *mockPersonDirectory) Create(ctx context.Context, person *models.Person) error {
	if len(m.createErr) > 0 {
		err := m.createErr[0]
		m.createErr = m.createErr[1:]
		if err != nil {
			return err
		}
	}
	if person.ID == "" {
		person.ID = "generated"
	}
	now := time.Now()
	person.CreatedAt = now
	person.UpdatedAt = now
	cp := *person
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockPersonDirectory) FindByID(ctx context.Context, id string) (*models.Person, error) {
	if person, ok := m.items[id]; ok {
		cp := *person
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPersonDirectory) UpdateCredentials(ctx context.Context, id, username, passwordHash string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedID = id
	m.updatedUsername = username
	m.updatedHash = passwordHash
	return nil
}

type mockSchoolLookup struct {
	schools map[string]*models.School
}

func (m *mockSchoolLookup) FindByID(ctx context.Context, id string) (*models.School, error) {
	if school, ok := m.schools[id]; ok {
		cp := *school
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockAdminLookup struct {
	admins map[string]*models.Admin
	err    error
}

func adminLookupKey(schoolID string, campusID *string) string {
	if campusID == nil || *campusID == "" {
		return schoolID
	}
	return schoolID + ":" + *campusID
}

func (m *mockAdminLookup) EarliestByCampus(ctx context.Context, schoolID string, campusID *string) (*models.Admin, error) {
	if m.err != nil {
		return nil, m.err
	}
	if admin, ok := m.admins[adminLookupKey(schoolID, campusID)]; ok {
		cp := *admin
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func newRegistrationFixture(directory *mockPersonDirectory, counters *mockCounterStore, admins *mockAdminLookup, cfg RegistrationConfig) *RegistrationService {
	schools := &mockSchoolLookup{schools: map[string]*models.School{
		"school-1": {ID: "school-1", Code: "NPS"},
	}}
	if admins == nil {
		admins = &mockAdminLookup{}
	}
	alloc := NewAllocationService(&mockCodeDirectory{}, counters, nil, nil)
	creds := identity.NewCredentialGenerator(directory, 0)
	return NewRegistrationService(directory, schools, admins, alloc, creds, nil, nil, nil, cfg)
}

func TestCreateStudentAllocatesCodeAndCredentials(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 6,
	}}
	svc := newRegistrationFixture(directory, counters, nil, RegistrationConfig{})

	result, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		SchoolID: "school-1",
		Year:     2024,
		FullName: "Budi Santoso",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Person.Code)
	assert.Equal(t, "NPS2024007", *result.Person.Code)

	assert.True(t, strings.HasPrefix(result.Credentials.Username, "budisa"))
	assert.Len(t, result.Credentials.Username, 10)
	assert.NotEmpty(t, result.Credentials.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.Person.PasswordHash), []byte(result.Credentials.Password)))
	require.Len(t, directory.created, 1)
}

func TestCreateStudentRejectsMissingYear(t *testing.T) {
	svc := newRegistrationFixture(&mockPersonDirectory{}, &mockCounterStore{}, nil, RegistrationConfig{})

	_, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		SchoolID: "school-1",
		FullName: "Budi Santoso",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateStudentUnknownSchool(t *testing.T) {
	svc := newRegistrationFixture(&mockPersonDirectory{}, &mockCounterStore{}, nil, RegistrationConfig{})

	_, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		SchoolID: "missing",
		Year:     2024,
		FullName: "Budi Santoso",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateStaffUsesEmployeeFormat(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"STAFF:school-1:-:0:NPS": 41,
	}}
	svc := newRegistrationFixture(directory, counters, nil, RegistrationConfig{})

	result, err := svc.CreateStaff(context.Background(), CreateStaffRequest{
		SchoolID: "school-1",
		FullName: "Siti Aminah",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Person.Code)
	assert.Equal(t, "NPSEMP0042", *result.Person.Code)
}

func TestCreateTeacherPrefersClaimingAdminPrefix(t *testing.T) {
	campus := "campus-1"
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"TEACHER:school-1:campus-1:0:NPS01": 2,
	}}
	admins := &mockAdminLookup{admins: map[string]*models.Admin{
		"school-1:campus-1": {ID: "admin-1", Username: "EEC-NPS01", SchoolID: "school-1"},
	}}
	svc := newRegistrationFixture(directory, counters, admins, RegistrationConfig{})

	result, err := svc.CreateTeacher(context.Background(), CreateTeacherRequest{
		SchoolID: "school-1",
		CampusID: &campus,
		FullName: "Dewi Lestari",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Person.Code)
	assert.Equal(t, "NPS01-TEA-003", *result.Person.Code)
}

func TestCreateTeacherFallsBackToSchoolCode(t *testing.T) {
	directory := &mockPersonDirectory{}
	counters := &mockCounterStore{values: map[string]int{
		"TEACHER:school-1:-:0:NPS": 0,
	}}
	svc := newRegistrationFixture(directory, counters, &mockAdminLookup{}, RegistrationConfig{})

	result, err := svc.CreateTeacher(context.Background(), CreateTeacherRequest{
		SchoolID: "school-1",
		FullName: "Dewi Lestari",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Person.Code)
	assert.Equal(t, "NPS-TEA-001", *result.Person.Code)
}

func TestRegisterRetriesOnceOnAllocationConflict(t *testing.T) {
	directory := &mockPersonDirectory{
		createErr: []error{appErrors.Clone(appErrors.ErrAllocationConflict, "")},
	}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 0,
	}}
	svc := newRegistrationFixture(directory, counters, nil, RegistrationConfig{ConflictRetries: 1})

	result, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		SchoolID: "school-1",
		Year:     2024,
		FullName: "Budi Santoso",
	})
	require.NoError(t, err)
	// First reservation burned by the conflict, second one landed.
	assert.Equal(t, "NPS2024002", *result.Person.Code)
}

func TestRegisterGivesUpAfterRetryBudget(t *testing.T) {
	directory := &mockPersonDirectory{
		createErr: []error{
			appErrors.Clone(appErrors.ErrAllocationConflict, ""),
			appErrors.Clone(appErrors.ErrAllocationConflict, ""),
		},
	}
	counters := &mockCounterStore{values: map[string]int{
		"STUDENT:school-1:-:2024:NPS": 0,
	}}
	svc := newRegistrationFixture(directory, counters, nil, RegistrationConfig{ConflictRetries: 1})

	_, err := svc.CreateStudent(context.Background(), CreateStudentRequest{
		SchoolID: "school-1",
		Year:     2024,
		FullName: "Budi Santoso",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrAllocationConflict.Code, appErr.Code)
}

func TestResetTeacherCredentials(t *testing.T) {
	directory := &mockPersonDirectory{items: map[string]*models.Person{
		"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, FullName: "Dewi Lestari", Username: "dewile1234"},
	}}
	svc := newRegistrationFixture(directory, &mockCounterStore{}, nil, RegistrationConfig{})

	result, err := svc.ResetTeacherCredentials(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", directory.updatedID)
	assert.True(t, strings.HasPrefix(result.Credentials.Username, "dewile"))
	assert.NotEmpty(t, result.Credentials.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(directory.updatedHash), []byte(result.Credentials.Password)))
}

func TestResetCredentialsRejectsNonTeachers(t *testing.T) {
	directory := &mockPersonDirectory{items: map[string]*models.Person{
		"student-1": {ID: "student-1", Role: models.RoleStudent, FullName: "Budi Santoso"},
	}}
	svc := newRegistrationFixture(directory, &mockCounterStore{}, nil, RegistrationConfig{})

	_, err := svc.ResetTeacherCredentials(context.Background(), "student-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestResetCredentialsUnknownPerson(t *testing.T) {
	svc := newRegistrationFixture(&mockPersonDirectory{}, &mockCounterStore{}, nil, RegistrationConfig{})

	_, err := svc.ResetTeacherCredentials(context.Background(), "missing")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
