package identity

import (
	"strings"

	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

// NormalizePrefix trims, uppercases, strips one leading EEC-/EEC_ legacy
// marker and drops every character outside [A-Z0-9-].
func NormalizePrefix(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "EEC-") || strings.HasPrefix(s, "EEC_") {
		s = s[4:]
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolvePrefix picks the string that seeds a code for the given role.
// Teacher codes prefer the admin-derived prefix when it survives
// normalization; student and employee codes always use the school code.
func ResolvePrefix(role models.Role, adminUsername, schoolCode string) (string, error) {
	if role == models.RoleTeacher {
		if p := NormalizePrefix(adminUsername); p != "" {
			return p, nil
		}
	}
	if p := NormalizePrefix(schoolCode); p != "" {
		return p, nil
	}
	return "", appErrors.Clone(appErrors.ErrConfiguration, "neither admin username nor school code yields a usable prefix")
}
