package service

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sessiongate/auth-gateway/internal/repository"
	apperrors "github.com/sessiongate/auth-gateway/pkg/util/errorutil"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]any

func (f fieldErrors) checkUsername(username string) {
	if len([]rune(username)) < minUsernameLength {
		f["username"] = "must be at least 3 characters"
	}
}

func (f fieldErrors) checkEmail(email string) {
	if !emailPattern.MatchString(email) {
		f["email"] = "must be a valid email address"
	}
}

func (f fieldErrors) checkPassword(password string) {
	if len(password) < minPasswordLength {
		f["password"] = "must be at least 6 characters"
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("invalid input", f)
}

// mapRepoError translates repository sentinels into domain errors.
func mapRepoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("username or email already in use", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
