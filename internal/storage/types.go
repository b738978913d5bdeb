package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrNotFound      = errors.New("storage: blob not found")
	ErrIOFailure     = errors.New("storage: io failure")
	ErrInvalidFileID = errors.New("storage: invalid file id")
	ErrSameDir       = errors.New("storage: archive directory must differ from working directory")
)

// IOError wraps a failure of the underlying medium.
// errors.Is(err, ErrIOFailure) reports true for any *IOError.
type IOError struct {
	Op     string
	FileID string
	Err    error
}

func (e *IOError) Error() string {
	if e.FileID == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.FileID, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

func ioErr(op, fileID string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, FileID: fileID, Err: err}
}

// Store is the blob persistence API.
//
// Boolean results report expected absence; errors are reserved for
// invalid ids and failures of the underlying medium.
type Store interface {
	Exists(fileID string) bool
	Load(fileID string) (string, error)
	Save(fileID, content string) error
	Delete(fileID string) (bool, error)
	ListFiles() ([]string, error)
	Archive(fileID string) (bool, error)
	ListArchive() ([]string, error)

	HasDefaultSettings(class, id string) bool
	LoadDefaultSettings(class, id string) (string, error)
	SaveDefaultSettings(class, id, content string) error

	Close() error
}

// Aged is implemented by stores that track blob modification times.
type Aged interface {
	ModTime(fileID string) (time.Time, error)
}

const (
	DefaultWorkingDir = "DataStorage"
	DefaultArchiveDir = "Archive"
)

// Config configures storage.
//
// Driver values:
//   - "file": afero-backed directories under Root (default)
//   - "sqlite": SQLite database file at Path
//
// If Driver is "none", storage is disabled.
type Config struct {
	Driver string

	// file driver
	Root       string
	WorkingDir string
	ArchiveDir string
	Fs         afero.Fs // overrides Root when set (e.g. afero.NewMemMapFs())

	// sqlite driver
	Path        string
	BusyTimeout time.Duration // 0 means default

	// Now overrides the archive clock; nil means time.Now.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
