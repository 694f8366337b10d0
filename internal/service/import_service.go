package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

// ImportRow is one row of a bulk-create request.
type ImportRow struct {
	Role          models.Role `json:"role" validate:"required"`
	SchoolID      string      `json:"school_id" validate:"required"`
	CampusID      *string     `json:"campus_id"`
	Year          int         `json:"year"`
	FullName      string      `json:"full_name" validate:"required"`
	AdminUsername string      `json:"admin_username"`
}

// RowResult reports the per-row outcome of a bulk create. Failed rows keep
// their reserved sequence number unassigned; survivors are never renumbered.
type RowResult struct {
	Index    int              `json:"index"`
	Created  bool             `json:"created"`
	Code     string           `json:"code,omitempty"`
	Username string           `json:"username,omitempty"`
	Password string           `json:"password,omitempty"`
	Error    *appErrors.Error `json:"error,omitempty"`
}

// ImportService amortizes sequence resolution across a bulk-create request:
// rows are partitioned by allocation scope, each distinct scope reserves its
// whole range in one counter operation, and sequences are assigned in input
// order regardless of which rows ultimately persist.
type ImportService struct {
	directory      personDirectory
	schools        schoolLookup
	admins         adminLookup
	alloc          *AllocationService
	creds          *identity.CredentialGenerator
	validator      *validator.Validate
	logger         *zap.Logger
	maxRows        int
	passwordLength int
}

// ImportConfig bounds bulk requests.
type ImportConfig struct {
	MaxRows        int
	PasswordLength int
}

// NewImportService constructs an ImportService.
func NewImportService(directory personDirectory, schools schoolLookup, admins adminLookup, alloc *AllocationService, creds *identity.CredentialGenerator, validate *validator.Validate, logger *zap.Logger, cfg ImportConfig) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 500
	}
	if cfg.PasswordLength <= 0 {
		cfg.PasswordLength = identity.DefaultPasswordLength
	}
	return &ImportService{
		directory:      directory,
		schools:        schools,
		admins:         admins,
		alloc:          alloc,
		creds:          creds,
		validator:      validate,
		logger:         logger,
		maxRows:        cfg.MaxRows,
		passwordLength: cfg.PasswordLength,
	}
}

// BulkCreate allocates codes and credentials for every row. Row-level
// failures are reported in place and never abort the rest of the batch.
func (s *ImportService) BulkCreate(ctx context.Context, rows []ImportRow) ([]RowResult, error) {
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import requires at least one row")
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import exceeds %d rows", s.maxRows))
	}

	results := make([]RowResult, len(rows))
	for i := range results {
		results[i].Index = i
	}

	scopes := make([]models.AllocationScope, len(rows))
	sequences := make([]int, len(rows))

	// Partition by scope key, preserving input order within each partition.
	var keys []string
	members := make(map[string][]int)
	scopeByKey := make(map[string]models.AllocationScope)

	schoolCache := make(map[string]*models.School)
	adminCache := make(map[string]string)

	for i, row := range rows {
		scope, err := s.resolveScope(ctx, row, schoolCache, adminCache)
		if err != nil {
			results[i].Error = appErrors.FromError(err)
			continue
		}
		scopes[i] = scope

		key := scope.Key()
		if _, seen := members[key]; !seen {
			keys = append(keys, key)
			scopeByKey[key] = scope
		}
		members[key] = append(members[key], i)
	}

	// One reservation per distinct scope; sequences are handed out in the
	// original input order of that scope's rows.
	for _, key := range keys {
		indices := members[key]
		start, err := s.alloc.Reserve(ctx, scopeByKey[key], len(indices))
		if err != nil {
			for _, i := range indices {
				results[i].Error = appErrors.FromError(err)
			}
			continue
		}
		for offset, i := range indices {
			sequences[i] = start + offset
		}
	}

	for i, row := range rows {
		if results[i].Error != nil {
			continue
		}
		s.createRow(ctx, row, scopes[i], sequences[i], &results[i])
	}

	return results, nil
}

func (s *ImportService) resolveScope(ctx context.Context, row ImportRow, schoolCache map[string]*models.School, adminCache map[string]string) (models.AllocationScope, error) {
	var zero models.AllocationScope

	if err := s.validator.Struct(row); err != nil {
		return zero, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import row")
	}
	if !row.Role.HasCode() {
		return zero, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %s does not receive a code", row.Role))
	}
	if row.Role == models.RoleStudent && row.Year <= 0 {
		return zero, appErrors.Clone(appErrors.ErrValidation, "student rows require an academic year")
	}

	school, ok := schoolCache[row.SchoolID]
	if !ok {
		var err error
		school, err = s.schools.FindByID(ctx, row.SchoolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return zero, appErrors.Clone(appErrors.ErrNotFound, "school not found")
			}
			return zero, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "school lookup failed")
		}
		schoolCache[row.SchoolID] = school
	}

	adminUsername := row.AdminUsername
	if row.Role == models.RoleTeacher && adminUsername == "" {
		cacheKey := row.SchoolID
		if row.CampusID != nil {
			cacheKey += ":" + *row.CampusID
		}
		if cached, ok := adminCache[cacheKey]; ok {
			adminUsername = cached
		} else {
			admin, err := s.admins.EarliestByCampus(ctx, row.SchoolID, row.CampusID)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return zero, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "admin lookup failed")
			}
			if admin != nil {
				adminUsername = admin.Username
			}
			adminCache[cacheKey] = adminUsername
		}
	}

	prefix, err := identity.ResolvePrefix(row.Role, adminUsername, school.Code)
	if err != nil {
		return zero, err
	}

	scope := models.AllocationScope{Role: row.Role, SchoolID: row.SchoolID, Prefix: prefix}
	switch row.Role {
	case models.RoleStudent:
		scope.Year = row.Year
	case models.RoleTeacher:
		scope.CampusID = row.CampusID
	}
	return scope, nil
}

func (s *ImportService) createRow(ctx context.Context, row ImportRow, scope models.AllocationScope, seq int, result *RowResult) {
	grammar, err := identity.GrammarForScope(scope)
	if err != nil {
		result.Error = appErrors.FromError(err)
		return
	}
	code, err := grammar.Build(seq)
	if err != nil {
		result.Error = appErrors.FromError(err)
		return
	}

	username, err := s.creds.GenerateUsername(ctx, row.FullName)
	if err != nil {
		result.Error = appErrors.FromError(err)
		return
	}
	password, err := identity.GeneratePassword(s.passwordLength)
	if err != nil {
		result.Error = appErrors.FromError(err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		result.Error = appErrors.FromError(err)
		return
	}

	person := &models.Person{
		Role:         row.Role,
		SchoolID:     row.SchoolID,
		CampusID:     row.CampusID,
		FullName:     row.FullName,
		Username:     username,
		Code:         &code,
		PasswordHash: string(hash),
	}
	if err := s.directory.Create(ctx, person); err != nil {
		// Gaps are tolerated; the remaining rows keep their sequences.
		s.logger.Warn("import row failed",
			zap.Int("index", result.Index),
			zap.String("code", code),
			zap.Error(err))
		result.Error = appErrors.FromError(err)
		return
	}

	result.Created = true
	result.Code = code
	result.Username = username
	result.Password = password
}
