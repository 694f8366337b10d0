package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-directory-api/internal/models"
	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

func TestNormalizePrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"EEC-NPS01", "NPS01"},
		{"EEC_NPS", "NPS"},
		{"eec-nps01", "NPS01"},
		{"  nps  ", "NPS"},
		{"np s@#01", "NPS01"},
		{"EEC-", ""},
		{"", ""},
		{"EEC-EEC-NPS", "EEC-NPS"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePrefix(tc.in), "input %q", tc.in)
	}
}

func TestResolvePrefixTeacherPrecedence(t *testing.T) {
	prefix, err := ResolvePrefix(models.RoleTeacher, "EEC-NPS01", "NPS")
	require.NoError(t, err)
	assert.Equal(t, "NPS01", prefix)

	prefix, err = ResolvePrefix(models.RoleTeacher, "", "EEC-NPS")
	require.NoError(t, err)
	assert.Equal(t, "NPS", prefix)

	// Admin username that normalizes to empty falls back to the school code.
	prefix, err = ResolvePrefix(models.RoleTeacher, "@@@", "nps")
	require.NoError(t, err)
	assert.Equal(t, "NPS", prefix)
}

func TestResolvePrefixStudentIgnoresAdmin(t *testing.T) {
	prefix, err := ResolvePrefix(models.RoleStudent, "ADMIN01", "nps")
	require.NoError(t, err)
	assert.Equal(t, "NPS", prefix)

	prefix, err = ResolvePrefix(models.RoleStaff, "ADMIN01", "NPS")
	require.NoError(t, err)
	assert.Equal(t, "NPS", prefix)
}

func TestResolvePrefixConfigurationError(t *testing.T) {
	_, err := ResolvePrefix(models.RoleTeacher, "", "")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)

	_, err = ResolvePrefix(models.RoleStudent, "", "EEC_")
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)
}
