package migrasi

import (
	goerrors "github.com/goliatone/go-errors"
)

// Internal reason codes. They travel on the error's TextCode for logs and
// diagnostics only; the externally visible message never distinguishes them.
const (
	TextCodeNotFound  = "NOTFOUND"
	TextCodeNotAuthor = "NOTAUTHOR"
	TextCodeNotMember = "NOTMEMBER"

	TextCodeAlreadyMigrated = "ALREADY_MIGRATED"
	TextCodeTerminalState   = "TERMINAL_MIGRATION_STATE"
	TextCodeSessionExpired  = "SESSION_EXPIRED"
)

// ErrAuthFailed covers every credential and token failure. The message is
// deliberately uniform so callers cannot probe which step rejected them.
var ErrAuthFailed = goerrors.New("auth failed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailUnconfirmed is returned when an account has not confirmed its email.
var ErrEmailUnconfirmed = goerrors.New("confirm your email first", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden)

// ErrDuplicateRegistration is returned for an already registered email. Same
// uniform message as a failed login so registration cannot be used to probe
// which emails exist.
var ErrDuplicateRegistration = goerrors.New("auth failed", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden)

// ErrAlreadyMigrated rejects mutation of a migration that has been applied.
var ErrAlreadyMigrated = goerrors.New("project migration already migrated", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAlreadyMigrated).
	WithCode(goerrors.CodeForbidden)

// ErrMismatchedHashAndPassword is the internal sentinel for a bcrypt mismatch
var ErrMismatchedHashAndPassword = goerrors.New("mismatched password", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// NewProjectNotFound masks a project the caller must not see. The reason
// records why access was denied (NOTFOUND, NOTAUTHOR, NOTMEMBER); the outward
// message is identical in all three cases.
func NewProjectNotFound(reason string, meta map[string]any) *goerrors.Error {
	return goerrors.New("project cannot be found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(reason).
		WithMetadata(meta)
}

// NewMigrationNotFound masks a migration the caller must not see.
func NewMigrationNotFound(reason string, meta map[string]any) *goerrors.Error {
	return goerrors.New("project migration cannot be found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(reason).
		WithMetadata(meta)
}

// IsNotFoundError reports whether err is any of the masked not-found errors.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return goerrors.IsNotFound(err)
}

// IsAuthError reports whether err maps to an Unauthorized response.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuth
	}
	return false
}

// IsForbiddenError reports whether err maps to a Forbidden response.
func IsForbiddenError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryAuthz
	}
	return false
}
