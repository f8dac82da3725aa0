package lobby

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	minNameLength = 2
	maxNameLength = 20
)

// NewPlayerID mints a fresh player identity for one session.
func NewPlayerID() string {
	return uuid.New().String()
}

// GenerateCode draws a fixed-length uppercase alphabetic lobby code from rng.
func GenerateCode(rng *rand.Rand, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// ValidateCode normalizes a user-entered lobby code: trimmed, upper-cased,
// exactly length characters, letters only.
func ValidateCode(code string, length int) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != length {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidCode, length)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", fmt.Errorf("%w: letters only", ErrInvalidCode)
		}
	}
	return code, nil
}

// ValidatePlayerName normalizes a user-entered display name.
func ValidatePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < minNameLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrInvalidName, minNameLength)
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: must be at most %d characters", ErrInvalidName, maxNameLength)
	}
	return name, nil
}
