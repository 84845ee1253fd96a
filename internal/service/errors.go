package service

import (
	"errors"
	"fmt"
)

// AuthError indicates an authentication or session failure.
// Auth errors are surfaced to the user and never treated as fatal.
type AuthError struct {
	Op  string // operation that failed, e.g. "sign in"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DataError indicates a task data operation failure.
// Data errors trigger rollback of optimistic state and are logged.
type DataError struct {
	Op  string // operation that failed, e.g. "create task"
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsData reports whether err is a DataError.
func IsData(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}
