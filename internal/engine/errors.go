package engine

import (
	"errors"
	"fmt"
)

// FatalError represents a condition that terminates the whole run with a
// non-zero exit before or instead of executing scripts.
//
// Only two categories are fatal:
//   - Setup: the effective configuration document is missing or malformed
//   - Transport: a device or network share could not be mounted
//
// Everything else (missing candidates, normalization problems, failing
// scripts) is recovered locally and never surfaces as a FatalError.
type FatalError struct {
	// Code identifies the error category.
	Code FatalCode

	// Message is a human-readable description.
	Message string

	// Source is the configured source string, when the error relates to one.
	Source string

	// Err is the underlying cause.
	Err error
}

// FatalCode categorizes fatal errors.
type FatalCode string

const (
	// CodeConfigMissing indicates the effective configuration document does
	// not exist at its known location.
	CodeConfigMissing FatalCode = "CONFIG_MISSING"

	// CodeConfigInvalid indicates the document exists but cannot be parsed.
	CodeConfigInvalid FatalCode = "CONFIG_INVALID"

	// CodeMountFailed indicates a device or share mount failed. There is no
	// fallback transport.
	CodeMountFailed FatalCode = "MOUNT_FAILED"
)

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s (source=%s)", e.Code, e.Message, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *FatalError) Unwrap() error { return e.Err }

// IsConfigError returns true for both missing and malformed configuration
// documents. Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == CodeConfigMissing || fe.Code == CodeConfigInvalid
	}
	return false
}

// IsMountError returns true if the error is a failed mount.
// Uses errors.As to handle wrapped errors.
func IsMountError(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code == CodeMountFailed
	}
	return false
}

// newConfigError wraps a configuration load failure with the matching code.
func newConfigError(code FatalCode, err error) *FatalError {
	return &FatalError{
		Code:    code,
		Message: "cannot load effective configuration",
		Err:     err,
	}
}

// newMountError wraps a failed mount of source.
func newMountError(source string, err error) *FatalError {
	return &FatalError{
		Code:    CodeMountFailed,
		Message: "cannot mount configured source",
		Source:  source,
		Err:     err,
	}
}
