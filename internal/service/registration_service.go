package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

type personDirectory interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, person *models.Person) error
	FindByID(ctx context.Context, id string) (*models.Person, error)
	UpdateCredentials(ctx context.Context, id, username, passwordHash string) error
}

type schoolLookup interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type adminLookup interface {
	EarliestByCampus(ctx context.Context, schoolID string, campusID *string) (*models.Admin, error)
}

// CreateStudentRequest is the payload for a single student registration.
type CreateStudentRequest struct {
	SchoolID string  `json:"school_id" validate:"required"`
	CampusID *string `json:"campus_id"`
	Year     int     `json:"year" validate:"required,gt=0"`
	FullName string  `json:"full_name" validate:"required"`
}

// CreateStaffRequest is the payload for a single staff registration.
type CreateStaffRequest struct {
	SchoolID string  `json:"school_id" validate:"required"`
	CampusID *string `json:"campus_id"`
	FullName string  `json:"full_name" validate:"required"`
}

// CreateTeacherRequest is the payload for a single teacher registration.
// AdminUsername overrides the claiming-admin lookup when set.
type CreateTeacherRequest struct {
	SchoolID      string  `json:"school_id" validate:"required"`
	CampusID      *string `json:"campus_id"`
	FullName      string  `json:"full_name" validate:"required"`
	AdminUsername string  `json:"admin_username"`
}

// IssuedCredentials carries the initial secret back to the caller exactly
// once; only the hash is persisted.
type IssuedCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegistrationResult pairs the created record with its credentials.
type RegistrationResult struct {
	Person      *models.Person    `json:"person"`
	Credentials IssuedCredentials `json:"credentials"`
}

// RegistrationService creates directory records with allocated codes and
// generated credentials.
type RegistrationService struct {
	directory       personDirectory
	schools         schoolLookup
	admins          adminLookup
	alloc           *AllocationService
	creds           *identity.CredentialGenerator
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	conflictRetries int
	passwordLength  int
}

// RegistrationConfig tunes conflict retry and password policy.
type RegistrationConfig struct {
	ConflictRetries int
	PasswordLength  int
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(directory personDirectory, schools schoolLookup, admins adminLookup, alloc *AllocationService, creds *identity.CredentialGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RegistrationConfig) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ConflictRetries < 0 {
		cfg.ConflictRetries = 0
	}
	if cfg.PasswordLength <= 0 {
		cfg.PasswordLength = identity.DefaultPasswordLength
	}
	return &RegistrationService{
		directory:       directory,
		schools:         schools,
		admins:          admins,
		alloc:           alloc,
		creds:           creds,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
		conflictRetries: cfg.ConflictRetries,
		passwordLength:  cfg.PasswordLength,
	}
}

// CreateStudent registers one student: school-code prefix, year-scoped
// sequence, generated credentials.
func (s *RegistrationService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	school, err := s.loadSchool(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	prefix, err := identity.ResolvePrefix(models.RoleStudent, "", school.Code)
	if err != nil {
		return nil, err
	}

	scope := models.AllocationScope{Role: models.RoleStudent, SchoolID: req.SchoolID, Year: req.Year, Prefix: prefix}
	return s.register(ctx, models.RoleStudent, req.SchoolID, req.CampusID, req.FullName, scope)
}

// CreateStaff registers one staff member with an employee code.
func (s *RegistrationService) CreateStaff(ctx context.Context, req CreateStaffRequest) (*RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	school, err := s.loadSchool(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	prefix, err := identity.ResolvePrefix(models.RoleStaff, "", school.Code)
	if err != nil {
		return nil, err
	}

	scope := models.AllocationScope{Role: models.RoleStaff, SchoolID: req.SchoolID, Prefix: prefix}
	return s.register(ctx, models.RoleStaff, req.SchoolID, req.CampusID, req.FullName, scope)
}

// CreateTeacher registers one teacher. The prefix prefers the requesting
// admin's username, then the campus's claiming admin, then the school code.
func (s *RegistrationService) CreateTeacher(ctx context.Context, req CreateTeacherRequest) (*RegistrationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	school, err := s.loadSchool(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}

	adminUsername := req.AdminUsername
	if adminUsername == "" {
		admin, err := s.admins.EarliestByCampus(ctx, req.SchoolID, req.CampusID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "admin lookup failed")
		}
		if admin != nil {
			adminUsername = admin.Username
		}
	}

	prefix, err := identity.ResolvePrefix(models.RoleTeacher, adminUsername, school.Code)
	if err != nil {
		return nil, err
	}

	scope := models.AllocationScope{Role: models.RoleTeacher, SchoolID: req.SchoolID, CampusID: req.CampusID, Prefix: prefix}
	return s.register(ctx, models.RoleTeacher, req.SchoolID, req.CampusID, req.FullName, scope)
}

// ResetTeacherCredentials regenerates username and password for a teacher.
// Codes are immutable here; only the reconciliation job rewrites them.
func (s *RegistrationService) ResetTeacherCredentials(ctx context.Context, personID string) (*RegistrationResult, error) {
	person, err := s.directory.FindByID(ctx, personID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to load teacher")
	}
	if person.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "credential reset applies to teachers only")
	}

	username, err := s.creds.GenerateUsername(ctx, person.FullName)
	if err != nil {
		return nil, err
	}
	password, err := identity.GeneratePassword(s.passwordLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.directory.UpdateCredentials(ctx, personID, username, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to store credentials")
	}

	person.Username = username
	return &RegistrationResult{Person: person, Credentials: IssuedCredentials{Username: username, Password: password}}, nil
}

func (s *RegistrationService) loadSchool(ctx context.Context, id string) (*models.School, error) {
	school, err := s.schools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "school lookup failed")
	}
	return school, nil
}

// register allocates a sequence, formats the code and persists the record.
// A storage-level uniqueness violation on the code is retried with a fresh
// reservation up to the configured budget.
func (s *RegistrationService) register(ctx context.Context, role models.Role, schoolID string, campusID *string, fullName string, scope models.AllocationScope) (*RegistrationResult, error) {
	grammar, err := identity.GrammarForScope(scope)
	if err != nil {
		return nil, err
	}

	username, err := s.creds.GenerateUsername(ctx, fullName)
	if err != nil {
		return nil, err
	}
	password, err := identity.GeneratePassword(s.passwordLength)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	for attempt := 0; ; attempt++ {
		seq, err := s.alloc.Next(ctx, scope)
		if err != nil {
			return nil, err
		}
		code, err := grammar.Build(seq)
		if err != nil {
			return nil, err
		}

		person := &models.Person{
			Role:         role,
			SchoolID:     schoolID,
			CampusID:     campusID,
			FullName:     fullName,
			Username:     username,
			Code:         &code,
			PasswordHash: string(hash),
		}

		err = s.directory.Create(ctx, person)
		if err == nil {
			return &RegistrationResult{Person: person, Credentials: IssuedCredentials{Username: username, Password: password}}, nil
		}

		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrAllocationConflict.Code && attempt < s.conflictRetries {
			s.metrics.IncAllocationConflict()
			s.logger.Warn("code already taken, retrying with fresh sequence",
				zap.String("scope", scope.Key()),
				zap.String("code", code),
				zap.Int("attempt", attempt+1))
			continue
		}
		if appErr != nil {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to persist record")
	}
}
