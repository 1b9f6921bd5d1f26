package validators

import (
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// MaxSessionIDLength bounds guest session ids from headers and bodies.
	MaxSessionIDLength = 128
	// MaxRequestIDLength bounds caller supplied X-Request-Id values.
	MaxRequestIDLength = 64
)

// SessionID trims a guest session id and checks it is a plain token. An empty
// value is not an error; callers decide whether a session is required.
func SessionID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", nil
	}
	if len(id) > MaxSessionIDLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id too long")
	}
	if !PlainToken(id) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "session id contains invalid characters")
	}
	return id, nil
}

// PlainToken reports whether s holds only ASCII letters, digits and "-_.:".
func PlainToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_.:", r):
		default:
			return false
		}
	}
	return s != ""
}
