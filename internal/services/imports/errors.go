package imports

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrImportNotFound    = errors.New("import not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrConfirmInProgress = errors.New("import confirmation already in progress")
	ErrInvalidStatus     = errors.New("import is not in a confirmable state")
)

// FileError means the uploaded file could not be read at all. The import
// is failed.
type FileError struct {
	Err error
}

func (e *FileError) Error() string { return "file error: " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// ValidationError rejects a request before any state changes.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
