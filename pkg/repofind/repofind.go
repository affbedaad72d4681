// Package repofind locates the repository a sync run should target by
// walking upward from a starting directory, the same way git finds its
// work tree root.
package repofind

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerRelPath is the repository-relative path of the session marker
// directory. Its presence (created by the init command) signals that a
// repository participates in session syncing.
var MarkerRelPath = filepath.Join(".claude", "ccss_sessions")

// ErrNoRepository is returned when no ancestor of the start directory is an
// initialized repository.
var ErrNoRepository = errors.New("no repository with " + MarkerRelPath + " found")

// ErrNoGitRoot is returned when no ancestor of the start directory contains
// a .git entry.
var ErrNoGitRoot = errors.New("no git repository found")

// Find walks from start toward the filesystem root, returning the first
// directory containing both a .git entry and the session marker directory.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("could not resolve start directory %s: %w", start, err)
	}

	for {
		if hasEntry(dir, ".git") && hasEntry(dir, MarkerRelPath) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRepository
		}
		dir = parent
	}
}

// FindGitRoot walks from start toward the filesystem root, returning the
// first directory containing a .git entry. Used by init, which runs before
// the marker directory exists.
func FindGitRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("could not resolve start directory %s: %w", start, err)
	}

	for {
		if hasEntry(dir, ".git") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoGitRoot
		}
		dir = parent
	}
}

// MarkerDir returns the absolute marker directory path for a repository root.
func MarkerDir(repoRoot string) string {
	return filepath.Join(repoRoot, MarkerRelPath)
}

func hasEntry(dir, rel string) bool {
	_, err := os.Stat(filepath.Join(dir, rel))
	return err == nil
}
