// Package apperr defines the error taxonomy shared by every command.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigNotFound is returned when no config file exists at any candidate path.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrBackupNotFound is returned when the backup named for recovery does not exist.
	ErrBackupNotFound = errors.New("backup file not found")
	// ErrCurrentNotFound is returned when recovery cannot find the current config file.
	ErrCurrentNotFound = errors.New("current config file not found")
	// ErrNoBackups is returned when backup auto-detection finds no candidate.
	ErrNoBackups = errors.New("no suitable backup files found")
	// ErrParse wraps malformed JSON input, or a document that is not an object
	// where one is required.
	ErrParse = errors.New("malformed JSON")
	// ErrDirectory is returned when an image output directory cannot be created.
	ErrDirectory = errors.New("cannot create output directory")
	// ErrExtraction marks a single image that could not be written out.
	ErrExtraction = errors.New("image extraction failed")
	// ErrInvalidMode is returned for an unknown run mode or conflicting mode flags.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrNotFound is returned when a catalog record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCatalogDisabled is returned by run queries when no catalog is open.
	ErrCatalogDisabled = errors.New("run catalog is disabled")
)

// NotFoundError reports a missing file together with every path searched.
type NotFoundError struct {
	Err      error
	Searched []string
}

func (e *NotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (searched: %s)", e.Err, strings.Join(e.Searched, ", "))
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// NotFound builds a NotFoundError wrapping sentinel.
func NotFound(sentinel error, searched ...string) error {
	return &NotFoundError{Err: sentinel, Searched: searched}
}
