package unifs

import (
	"fmt"

	"emperror.dev/errors"
)

// Common filesystem errors
var (
	ErrNotExist         = errors.NewPlain("file does not exist")
	ErrExist            = errors.NewPlain("file already exists")
	ErrPermission       = errors.NewPlain("permission denied")
	ErrNotDir           = errors.NewPlain("not a directory")
	ErrIsDir            = errors.NewPlain("is a directory")
	ErrInvalidName      = errors.NewPlain("invalid name")
	ErrInvalidPath      = errors.NewPlain("invalid path")
	ErrNotSupported     = errors.NewPlain("operation not supported")
	ErrProviderNotFound = errors.NewPlain("no provider found for path")
	ErrProviderExists   = errors.NewPlain("provider already registered")
	ErrNilProvider      = errors.NewPlain("provider cannot be nil")
)

// PathError records an error and the operation and file path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation and path. A nil err yields nil.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&PathError{Op: op, Path: path, Err: err})
}

// ProviderNotFoundError is returned when no registered provider claims a path.
type ProviderNotFoundError struct {
	Path string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", ErrProviderNotFound, e.Path)
}

// Unwrap lets errors.Is(err, ErrProviderNotFound) succeed.
func (e *ProviderNotFoundError) Unwrap() error {
	return ErrProviderNotFound
}

// StatusError is returned by remote backends when the server answers with an
// unexpected status code.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.URL, e.Status)
}

// Unwrap maps well-known status codes onto the sentinels, so that
// IsNotExist and friends work on remote errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case 404, 410:
		return ErrNotExist
	case 401, 403:
		return ErrPermission
	case 412:
		return ErrExist
	default:
		return nil
	}
}

// IsNotExist reports whether an error indicates that a file or directory
// does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a file or directory
// already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsPermission reports whether an error indicates that permission is denied
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermission)
}

// IsProviderNotFound reports whether no provider claimed a path.
func IsProviderNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound)
}
