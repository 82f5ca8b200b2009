package rx

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryAccess reports that the medication directory could not be
	// opened or listed. It is fatal to one load or watch attempt.
	ErrDirectoryAccess = errors.New("directory not accessible")

	// ErrWatchSetup reports that the directory watch mechanism could not be created.
	ErrWatchSetup = errors.New("cannot create directory watch")

	// ErrNotFound reports a lookup by ID that matched no medication.
	ErrNotFound = errors.New("medication not found")

	// ErrDoseRecorded reports a second record for an already logged dose.
	ErrDoseRecorded = errors.New("dose already recorded")
)

// DecodeError describes one medication file that could not be read. Loads log
// these and skip the file.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.File, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SaveError reports a failed save of the named medication.
type SaveError struct {
	Name string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving medication %q: %v", e.Name, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
