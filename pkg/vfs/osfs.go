package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

// OS is the host-filesystem implementation of FileSystem.
type OS struct{}

// NewOS returns a FileSystem backed by the host filesystem.
func NewOS() *OS { return &OS{} }

// classify maps an os-level error onto the taxonomy, falling back to the
// given kind when the cause is not one of the recognizable preconditions.
func classify(op, path string, err error, fallback error) *PathError {
	kind := fallback
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = ErrPermission
	case errors.Is(err, syscall.ENOTDIR):
		kind = ErrNotADirectory
	}
	return &PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %v", kind, err)}
}

func (*OS) ListDir(path string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, classify("listdir", path, err, ErrRead)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, entryFromDirEntry(de))
	}
	return entries, nil
}

// entryFromDirEntry converts a directory entry, tolerating a failed stat.
// An entry that vanished (or lost stat permission) between the listing and
// the stat keeps its name with zero size and mtime, so the caller still sees
// it and the subsequent read reports the real error instead of the file
// silently dropping out of the run.
func entryFromDirEntry(de fs.DirEntry) Entry {
	entry := Entry{Name: de.Name(), IsDir: de.IsDir()}
	if info, err := de.Info(); err == nil {
		entry.Size = info.Size()
		entry.ModTime = info.ModTime()
	}
	return entry
}

func (*OS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, classify("stat", path, err, ErrRead)
	}
	return FileInfo{IsDir: info.IsDir(), Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (*OS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classify("read", path, err, ErrRead)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed. The
// write goes through a temporary file in the target directory and a rename,
// so a crash mid-write never leaves a truncated destination file behind.
func (*OS) WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
		return classify("write", path, err, ErrWrite)
	}

	tmp, err := os.CreateTemp(dir, ".ccss-*.tmp")
	if err != nil {
		return classify("write", path, err, ErrWrite)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return classify("write", path, err, ErrWrite)
	}
	if err := tmp.Chmod(util.UserWritableFilePerms); err != nil {
		tmp.Close()
		return classify("write", path, err, ErrWrite)
	}
	if err := tmp.Close(); err != nil {
		return classify("write", path, err, ErrWrite)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return classify("write", path, err, ErrWrite)
	}
	tmpPath = "" // Rename succeeded, nothing to clean up.
	return nil
}

func (*OS) MkdirAll(path string) error {
	if err := os.MkdirAll(path, util.UserWritableDirPerms); err != nil {
		return classify("mkdir", path, err, ErrWrite)
	}
	return nil
}

// Chtimes sets the modification time. A missing path is a write error, not a
// not-found: by the time the engine stamps a timestamp the file must exist.
func (*OS) Chtimes(path string, mtime time.Time) error {
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		kind := ErrWrite
		if errors.Is(err, fs.ErrPermission) {
			kind = ErrPermission
		}
		return &PathError{Op: "chtimes", Path: path, Err: fmt.Errorf("%w: %v", kind, err)}
	}
	return nil
}

var _ FileSystem = (*OS)(nil)
