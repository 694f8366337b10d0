package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

// Grammar describes one role's code format. The numeric suffix is
// left-zero-padded to a fixed width so that lexicographic ordering of code
// strings equals numeric ordering of sequence numbers; sequence resolution
// relies on that equivalence when seeding counters from existing codes.
type Grammar interface {
	Role() models.Role
	// CodePrefix is the literal text preceding the numeric suffix.
	CodePrefix() string
	SeqWidth() int
	Build(seq int) (string, error)
}

type studentGrammar struct {
	schoolCode string
	year       int
}

// NewStudentGrammar yields codes like NPS2024007.
func NewStudentGrammar(schoolCode string, year int) (Grammar, error) {
	if strings.TrimSpace(schoolCode) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school code is required")
	}
	if year <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year must be positive")
	}
	return studentGrammar{schoolCode: schoolCode, year: year}, nil
}

func (g studentGrammar) Role() models.Role  { return models.RoleStudent }
func (g studentGrammar) CodePrefix() string { return fmt.Sprintf("%s%d", g.schoolCode, g.year) }
func (g studentGrammar) SeqWidth() int      { return 3 }
func (g studentGrammar) Build(seq int) (string, error) {
	return buildCode(g, seq)
}

type employeeGrammar struct {
	schoolCode string
}

// NewEmployeeGrammar yields codes like NPSEMP0042.
func NewEmployeeGrammar(schoolCode string) (Grammar, error) {
	if strings.TrimSpace(schoolCode) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school code is required")
	}
	return employeeGrammar{schoolCode: schoolCode}, nil
}

func (g employeeGrammar) Role() models.Role  { return models.RoleStaff }
func (g employeeGrammar) CodePrefix() string { return g.schoolCode + "EMP" }
func (g employeeGrammar) SeqWidth() int      { return 4 }
func (g employeeGrammar) Build(seq int) (string, error) {
	return buildCode(g, seq)
}

type teacherGrammar struct {
	prefix string
}

// NewTeacherGrammar yields codes like NPS01-TEA-003.
func NewTeacherGrammar(prefix string) (Grammar, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "prefix is required")
	}
	return teacherGrammar{prefix: prefix}, nil
}

func (g teacherGrammar) Role() models.Role  { return models.RoleTeacher }
func (g teacherGrammar) CodePrefix() string { return g.prefix + "-TEA-" }
func (g teacherGrammar) SeqWidth() int      { return 3 }
func (g teacherGrammar) Build(seq int) (string, error) {
	return buildCode(g, seq)
}

// GrammarForScope builds the grammar for an allocation scope.
func GrammarForScope(scope models.AllocationScope) (Grammar, error) {
	switch scope.Role {
	case models.RoleStudent:
		return NewStudentGrammar(scope.Prefix, scope.Year)
	case models.RoleStaff:
		return NewEmployeeGrammar(scope.Prefix)
	case models.RoleTeacher:
		return NewTeacherGrammar(scope.Prefix)
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %s does not carry a code", scope.Role))
}

// SuffixPattern returns the anchored regex matching every code of this
// grammar, literal prefix quoted.
func SuffixPattern(g Grammar) string {
	return "^" + regexp.QuoteMeta(g.CodePrefix()) + fmt.Sprintf(`\d{%d}$`, g.SeqWidth())
}

// ParseSequence extracts the numeric suffix from a code of this grammar.
func ParseSequence(g Grammar, code string) (int, bool) {
	prefix := g.CodePrefix()
	if len(code) != len(prefix)+g.SeqWidth() || !strings.HasPrefix(code, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(code[len(prefix):])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

func buildCode(g Grammar, seq int) (string, error) {
	if seq <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "sequence must be positive")
	}
	if seq >= pow10(g.SeqWidth()) {
		// Beyond the padding width string ordering no longer matches
		// numeric ordering, so refuse rather than mint an unsortable code.
		return "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("sequence %d overflows %d-digit suffix", seq, g.SeqWidth()))
	}
	return fmt.Sprintf("%s%0*d", g.CodePrefix(), g.SeqWidth(), seq), nil
}

func pow10(n int) int {
	out := 1
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
