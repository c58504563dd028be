package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure returned across a package boundary wraps exactly one of these.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionMalformed     = errors.New("session malformed")
	ErrInvalidSignature     = errors.New("invalid session signature")
	ErrAuthorizationDenied  = errors.New("authorization denied")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrValidation           = errors.New("validation failed")
	ErrPersistence          = errors.New("persistence failure")
)

// Kind names returned by Kind. They are part of the wire contract.
const (
	KindInvalidCredentials   = "InvalidCredentials"
	KindSessionExpired       = "SessionExpired"
	KindSessionMalformed     = "SessionMalformed"
	KindInvalidSignature     = "InvalidSignature"
	KindAuthorizationDenied  = "AuthorizationDenied"
	KindNotFound             = "NotFound"
	KindDuplicateEmail       = "DuplicateEmail"
	KindWrongCurrentPassword = "WrongCurrentPassword"
	KindValidationError      = "ValidationError"
	KindPersistenceError     = "PersistenceError"
	KindInternal             = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrSessionExpired, KindSessionExpired},
	{ErrSessionMalformed, KindSessionMalformed},
	{ErrInvalidSignature, KindInvalidSignature},
	{ErrAuthorizationDenied, KindAuthorizationDenied},
	{ErrNotFound, KindNotFound},
	{ErrDuplicateEmail, KindDuplicateEmail},
	{ErrWrongCurrentPassword, KindWrongCurrentPassword},
	{ErrValidation, KindValidationError},
	{ErrPersistence, KindPersistenceError},
}

// Kind returns the taxonomy name for err, or KindInternal when err wraps none of the sentinels.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Validationf builds an ErrValidation with a caller-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Persistence wraps a storage failure so both the taxonomy sentinel and the cause stay inspectable.
func Persistence(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, cause)
}
