package model

import (
	"errors"
	"fmt"
)

// PersistenceError reports a failure to durably store data locally: the
// token cache or an attachment file.
type PersistenceError struct {
	// Op names what was being persisted, e.g. "save credential".
	Op string

	// Path is the file, key or object the operation targeted.
	Path string

	Err error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err (or any error in its chain) is a
// PersistenceError.
func IsPersistenceError(err error) bool {
	var pErr *PersistenceError
	return errors.As(err, &pErr)
}
