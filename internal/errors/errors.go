package errors

import (
	"errors"
	"fmt"
)

// Common error types for the verification client
var (
	// Capability errors
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrCameraUnavailable     = errors.New("camera unavailable")
	ErrAuthenticatorRejected = errors.New("authenticator rejected request")

	// Backend errors
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrMissingConfirm     = errors.New("missing confirmation message")

	// Challenge errors
	ErrNoChallenge = errors.New("no challenge issued")

	// Method errors
	ErrMethodCancelled = errors.New("method cancelled")
	ErrNoActiveMethod  = errors.New("no method is active")
	ErrRetryExhausted  = errors.New("retry budget exhausted")
	ErrCodeRejected    = errors.New("code rejected")
	ErrDispatchFailed  = errors.New("code dispatch failed")

	// Session errors
	ErrSessionFinished = errors.New("session already finished")
	ErrNoSession       = errors.New("no session established")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
