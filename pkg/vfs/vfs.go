// Package vfs defines the small filesystem capability surface the sync
// engine operates through. Two implementations exist: OS, a thin pass-through
// to the host filesystem, and Mem, a deterministic in-memory tree for tests.
// Both report failures through the same error taxonomy, so the engine's
// behavior is identical under either.
package vfs

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors forming the taxonomy every implementation must map its
// failures onto. They are always carried by a *PathError.
var (
	ErrNotFound      = errors.New("not found")
	ErrNotADirectory = errors.New("not a directory")
	ErrRead          = errors.New("read error")
	ErrWrite         = errors.New("write error")
	// ErrPermission is a specialization; callers that don't care can treat it
	// like ErrRead or ErrWrite.
	ErrPermission = errors.New("permission denied")
)

// PathError records the operation, the path it was attempted on, and the
// underlying cause, which wraps one of the taxonomy sentinels.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Entry describes one child of a listed directory.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileInfo describes a single path.
type FileInfo struct {
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// FileSystem is the capability set the sync engine needs. All operations are
// synchronous and stateless from the caller's perspective.
//
// Error contract:
//   - ListDir fails with ErrNotFound if the path does not exist and
//     ErrNotADirectory if it names a file.
//   - Stat fails with ErrNotFound.
//   - ReadFile fails with ErrNotFound or ErrRead.
//   - WriteFile creates missing parent directories and fails with ErrWrite.
//   - MkdirAll is idempotent; "already exists" is not an error.
//   - Chtimes fails with ErrWrite, including when the path does not exist.
type FileSystem interface {
	ListDir(path string) ([]Entry, error)
	Stat(path string) (FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	MkdirAll(path string) error
	Chtimes(path string, mtime time.Time) error
}
