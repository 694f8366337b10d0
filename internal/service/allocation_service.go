package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-directory-api/internal/identity"
	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

type allocationDirectory interface {
	CodesByPrefix(ctx context.Context, schoolID string, campusID *string, pattern string) ([]string, error)
}

type counterStore interface {
	Increment(ctx context.Context, key string, delta int) (int, bool, error)
	InitializeAndIncrement(ctx context.Context, key string, seed, delta int) (int, error)
	Set(ctx context.Context, key string, value int) error
}

// AllocationService hands out sequence numbers per allocation scope. The
// steady-state path is a single atomic counter increment; the legacy
// scan-over-codes resolution survives only to seed a counter the first time
// a scope is touched.
type AllocationService struct {
	directory allocationDirectory
	counters  counterStore
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAllocationService constructs an AllocationService.
func NewAllocationService(directory allocationDirectory, counters counterStore, metrics *MetricsService, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{directory: directory, counters: counters, metrics: metrics, logger: logger}
}

// Next returns the next free sequence number for the scope.
func (s *AllocationService) Next(ctx context.Context, scope models.AllocationScope) (int, error) {
	return s.Reserve(ctx, scope, 1)
}

// Reserve atomically claims n consecutive sequence numbers for the scope and
// returns the first. Batch callers reserve once per scope instead of
// resolving per row.
func (s *AllocationService) Reserve(ctx context.Context, scope models.AllocationScope, n int) (int, error) {
	if n <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "reservation size must be positive")
	}

	key := scope.Key()
	end, found, err := s.counters.Increment(ctx, key, n)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "counter increment failed")
	}
	if !found {
		max, err := s.ScanMax(ctx, scope)
		if err != nil {
			return 0, err
		}
		end, err = s.counters.InitializeAndIncrement(ctx, key, max, n)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "counter initialization failed")
		}
		s.logger.Info("sequence counter seeded",
			zap.String("scope", key),
			zap.Int("historical_max", max))
	}

	s.metrics.AddAllocations(scope.Role, n)
	return end - n + 1, nil
}

// ScanMax re-derives the highest allocated sequence in a scope by scanning
// existing codes: fetch every code matching the grammar's anchored pattern,
// rely on zero-padding to make string-descending order equal numeric order,
// and parse the top match. Zero means the scope is empty.
func (s *AllocationService) ScanMax(ctx context.Context, scope models.AllocationScope) (int, error) {
	grammar, err := identity.GrammarForScope(scope)
	if err != nil {
		return 0, err
	}

	codes, err := s.directory.CodesByPrefix(ctx, scope.SchoolID, scope.CampusID, identity.SuffixPattern(grammar))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "code scan failed")
	}

	max := 0
	for _, code := range codes {
		if seq, ok := identity.ParseSequence(grammar, code); ok && seq > max {
			max = seq
		}
	}
	return max, nil
}

// NextFromScan resolves the next sequence via the scan path alone, without
// touching the counter. It is a read-then-act window: two concurrent callers
// can observe the same maximum and compute the same next value. Kept for
// seeding and as the documented legacy behaviour; new code should use Next.
func (s *AllocationService) NextFromScan(ctx context.Context, scope models.AllocationScope) (int, error) {
	max, err := s.ScanMax(ctx, scope)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
