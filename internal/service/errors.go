package service

import (
	"errors"
	"fmt"
)

// Failure classes. Handlers decide the HTTP status with errors.Is; the
// wrapped detail is for server-side logs only.
var (
	ErrInvalidHeaders     = errors.New("invalid authorization headers")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrAccountMissing     = errors.New("token subject has no account")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrMisconfigured      = errors.New("auth config invalid")
)

// UnexpectedError is a lower-level fault (store, KDF, malformed stored
// hash). It is reported to clients as a bare 500.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

func unexpected(op string, err error) error {
	return &UnexpectedError{Op: op, Err: err}
}

// IsUnexpected reports whether err carries an UnexpectedError.
func IsUnexpected(err error) bool {
	var ue *UnexpectedError
	return errors.As(err, &ue)
}
