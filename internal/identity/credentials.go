package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	appErrors "github.com/noah-isme/sis-directory-api/pkg/errors"
)

const (
	usernameBaseLength = 6
	usernameSuffixMin  = 1000
	usernameSuffixSpan = 9000

	// DefaultUsernameAttempts bounds collision retries; the suffix space is
	// 9000 values so exhaustion means the base is saturated, not bad luck.
	DefaultUsernameAttempts = 20

	// DefaultPasswordLength applies when callers pass a non-positive length.
	DefaultPasswordLength = 10

	minPasswordLength = 4
)

// Character categories for generated passwords. Disjoint by construction,
// visually ambiguous glyphs (0/O, 1/l/I) excluded.
const (
	passwordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordLower   = "abcdefghijkmnpqrstuvwxyz"
	passwordDigits  = "23456789"
	passwordSymbols = "!@#$%^&*-_=+"
)

// UsernameChecker reports whether a username is already taken. Usernames are
// unique across the whole directory, not per role.
type UsernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// CredentialGenerator synthesises initial usernames and passwords for new
// directory records.
type CredentialGenerator struct {
	directory UsernameChecker
	attempts  int
}

// NewCredentialGenerator constructs a generator with a bounded retry budget.
func NewCredentialGenerator(directory UsernameChecker, attempts int) *CredentialGenerator {
	if attempts <= 0 {
		attempts = DefaultUsernameAttempts
	}
	return &CredentialGenerator{directory: directory, attempts: attempts}
}

// GenerateUsername lowercases the display name, strips whitespace, keeps the
// first six characters and appends a random 4-digit suffix. Collisions are
// retried with a fresh suffix up to the attempt budget.
func (g *CredentialGenerator) GenerateUsername(ctx context.Context, displayName string) (string, error) {
	base := usernameBase(displayName)
	if base == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "display name is required")
	}

	for i := 0; i < g.attempts; i++ {
		n, err := randInt(usernameSuffixSpan)
		if err != nil {
			return "", fmt.Errorf("username entropy: %w", err)
		}
		candidate := fmt.Sprintf("%s%d", base, usernameSuffixMin+n)

		exists, err := g.directory.UsernameExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "username uniqueness check failed")
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", appErrors.Clone(appErrors.ErrUsernameExhausted,
		fmt.Sprintf("no free username for base %q after %d attempts", base, g.attempts))
}

// GeneratePassword returns a random initial secret of the given length with
// at least one character from each category. All randomness is drawn from
// crypto/rand; the output is a real account secret.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	if length < minPasswordLength {
		return "", appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("password length must be at least %d", minPasswordLength))
	}

	categories := []string{passwordUpper, passwordLower, passwordDigits, passwordSymbols}
	union := strings.Join(categories, "")

	chars := make([]byte, 0, length)
	for _, category := range categories {
		c, err := randChar(category)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}
	for len(chars) < length {
		c, err := randChar(union)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher-Yates so the guaranteed category characters do not cluster at
	// fixed positions.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func usernameBase(displayName string) string {
	var runes []rune
	for _, r := range strings.ToLower(displayName) {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) > usernameBaseLength {
		runes = runes[:usernameBaseLength]
	}
	return string(runes)
}

func randChar(alphabet string) (byte, error) {
	i, err := randInt(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

func randInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("crypto rand: %w", err)
	}
	return int(n.Int64()), nil
}
