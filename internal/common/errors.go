// Package common defines shared constants and sentinel errors used across
// sealbox layers. Callers should use errors.Is / errors.As to match them.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrConditionFailed = errors.New("condition failed")

	// Failure taxonomy exposed by the core.
	ErrValidation     = errors.New("validation failure")
	ErrAuthentication = errors.New("authentication failure")
	ErrAuthorization  = errors.New("authorization failure")
	ErrStorage        = errors.New("storage failure")

	// ErrTooLarge is a validation failure raised when an upload exceeds the cap.
	ErrTooLarge = fmt.Errorf("%w: file too large", ErrValidation)

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrorInternal   = errors.New("internal error")
)

// Deny reasons carried by DeniedError.
const (
	ReasonExpired          = "expired"
	ReasonLimitReached     = "limit_reached"
	ReasonForbidden        = "forbidden"
	ReasonPasswordRequired = "password_required"
)

// DeniedError reports a policy denial together with its reason code.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return "access denied: " + e.Reason
}

func (e *DeniedError) Unwrap() error {
	return ErrAuthorization
}

// Denied returns a DeniedError for reason.
func Denied(reason string) error {
	return &DeniedError{Reason: reason}
}

// DenyReason extracts the reason from err, or "" if err is not a denial.
func DenyReason(err error) string {
	var de *DeniedError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// Validationf builds an ErrValidation-wrapped error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Storage wraps err as a storage failure with an operation label.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
