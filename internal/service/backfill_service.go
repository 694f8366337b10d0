package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

type backfillDirectory interface {
	ListTeachers(ctx context.Context) ([]models.Person, error)
	BulkUpdateCodes(ctx context.Context, updates []models.CodeUpdate) (int64, error)
}

type adminDirectory interface {
	ListAll(ctx context.Context) ([]models.Admin, error)
}

type schoolDirectory interface {
	ListAll(ctx context.Context) ([]models.School, error)
}

// BackfillService recomputes every teacher code after a prefix-resolution
// policy change. The job is deterministic and idempotent: targets are
// diffed against stored codes and only changed rows are written, in one
// all-or-nothing bulk update. It must not run concurrently with create
// traffic; the single-worker job queue plus the running flag enforce
// in-process mutual exclusion.
type BackfillService struct {
	directory backfillDirectory
	admins    adminDirectory
	schools   schoolDirectory
	counters  counterStore
	metrics   *MetricsService
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	last    *models.BackfillReport
}

// NewBackfillService constructs a BackfillService.
func NewBackfillService(directory backfillDirectory, admins adminDirectory, schools schoolDirectory, counters counterStore, metrics *MetricsService, logger *zap.Logger) *BackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillService{
		directory: directory,
		admins:    admins,
		schools:   schools,
		counters:  counters,
		metrics:   metrics,
		logger:    logger,
	}
}

// LastReport returns the most recent completed run, if any.
func (s *BackfillService) LastReport() *models.BackfillReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	report := *s.last
	return &report
}

// Run executes one reconciliation pass and reports how many codes changed.
func (s *BackfillService) Run(ctx context.Context, jobID string) (*models.BackfillReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrBackfillRunning, "")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report := &models.BackfillReport{JobID: jobID, StartedAt: time.Now().UTC()}

	admins, err := s.admins.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "admin snapshot failed")
	}
	// Admins arrive ordered by (created_at, id); the first admin seen per
	// campus is the claiming admin, ties resolved by insertion order.
	claiming := make(map[string]models.Admin)
	for _, admin := range admins {
		key := campusKey(admin.SchoolID, admin.CampusID)
		if _, ok := claiming[key]; !ok {
			claiming[key] = admin
		}
	}

	schools, err := s.schools.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "school snapshot failed")
	}
	schoolCodes := make(map[string]string, len(schools))
	for _, school := range schools {
		schoolCodes[school.ID] = school.Code
	}

	teachers, err := s.directory.ListTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "teacher snapshot failed")
	}
	report.TeachersSeen = len(teachers)

	// Teachers arrive sorted by created_at ascending, so appending to a
	// prefix group preserves the renumbering order.
	var prefixes []string
	groups := make(map[string][]models.Person)
	for _, teacher := range teachers {
		adminUsername := ""
		if admin, ok := claiming[campusKey(teacher.SchoolID, teacher.CampusID)]; ok {
			adminUsername = admin.Username
		}

		prefix, err := identity.ResolvePrefix(models.RoleTeacher, adminUsername, schoolCodes[teacher.SchoolID])
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConfiguration.Code {
				// No usable prefix source: leave the record untouched.
				report.Skipped++
				continue
			}
			return nil, err
		}

		if _, ok := groups[prefix]; !ok {
			prefixes = append(prefixes, prefix)
		}
		groups[prefix] = append(groups[prefix], teacher)
	}
	report.Groups = len(prefixes)

	// Any transform failure aborts the run before a single write happens;
	// partial renumbering inside a group would break uniqueness.
	var updates []models.CodeUpdate
	counterTargets := make(map[string]int)
	for _, prefix := range prefixes {
		grammar, err := identity.NewTeacherGrammar(prefix)
		if err != nil {
			return nil, err
		}
		group := groups[prefix]
		for pos, teacher := range group {
			target, err := grammar.Build(pos + 1)
			if err != nil {
				return nil, err
			}
			if teacher.Code == nil || *teacher.Code != target {
				updates = append(updates, models.CodeUpdate{PersonID: teacher.ID, Code: target})
			}

			scope := models.AllocationScope{Role: models.RoleTeacher, SchoolID: teacher.SchoolID, CampusID: teacher.CampusID, Prefix: prefix}
			if size := len(group); counterTargets[scope.Key()] < size {
				counterTargets[scope.Key()] = size
			}
		}
	}

	modified, err := s.directory.BulkUpdateCodes(ctx, updates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "bulk code update failed")
	}
	report.Updated = modified

	// Counters must never lag the renumbered maximum or future allocations
	// would duplicate; overshoot only costs gaps.
	for key, value := range counterTargets {
		if err := s.counters.Set(ctx, key, value); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "counter rewrite failed")
		}
	}

	report.FinishedAt = time.Now().UTC()
	s.metrics.ObserveBackfill(modified)
	s.logger.Info("teacher code backfill completed",
		zap.String("job_id", jobID),
		zap.Int("teachers", report.TeachersSeen),
		zap.Int("groups", report.Groups),
		zap.Int("skipped", report.Skipped),
		zap.Int64("updated", modified))

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, nil
}

func campusKey(schoolID string, campusID *string) string {
	if campusID == nil || *campusID == "" {
		return schoolID + ":-"
	}
	return schoolID + ":" + *campusID
}
