package eaip

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol is returned when the portal answers with an unexpected
	// status code, an unparseable body or a negative result code.
	ErrProtocol = errors.New("eaip: unexpected response")
	// ErrSessionExpired is returned when a well-formed reply carries the
	// session expiry signature.
	ErrSessionExpired = errors.New("eaip: login has expired")
	// ErrNotFound is returned when there is no active package or the
	// catalog document is empty.
	ErrNotFound = errors.New("eaip: not found")
)

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// TransportError is a network level failure that persisted through every
// attempt of the retry policy.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("eaip: transport failed after %d attempt(s): %s", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type AuthStage string

const (
	StageCaptcha     AuthStage = "captcha"
	StageSolve       AuthStage = "solve"
	StageCredentials AuthStage = "credentials"
)

// AuthError terminates a login attempt. Message holds the text the portal
// sent back, if any.
type AuthError struct {
	Stage   AuthStage
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("eaip: login failed at %s: %s: %s", e.Stage, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("eaip: login failed at %s: %s", e.Stage, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("eaip: login failed at %s: %s", e.Stage, e.Err)
	}
	return fmt.Sprintf("eaip: login failed at %s", e.Stage)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsPortalError reports whether err is one of the failures the portal client
// anticipates, as opposed to a programming or environment fault.
func IsPortalError(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *TransportError
	var authErr *AuthError
	return errors.As(err, &transportErr) ||
		errors.As(err, &authErr) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrNotFound)
}
