package vfs

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

// Mem is an in-memory FileSystem for deterministic tests. It never touches
// the host filesystem and reproduces the same error taxonomy as OS for every
// precondition violation. Individual paths can be rigged to fail reads or
// writes to simulate I/O errors.
type Mem struct {
	mu        sync.Mutex
	files     map[string]*memFile
	dirs      map[string]bool
	failReads map[string]bool
	failWrite map[string]bool
}

// NewMem returns an empty in-memory filesystem containing only the root
// directory.
func NewMem() *Mem {
	return &Mem{
		files:     make(map[string]*memFile),
		dirs:      map[string]bool{"/": true},
		failReads: make(map[string]bool),
		failWrite: make(map[string]bool),
	}
}

// norm canonicalizes a path to the forward-slash cleaned form used as map key.
func norm(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	if p == "." {
		p = "/"
	}
	return p
}

// AddFile places a file with the given content and modification time,
// creating parent directories implicitly. Test setup helper; panics when an
// ancestor is already a file, since such a tree cannot exist on a real
// filesystem.
func (m *Mem) AddFile(p string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)
	if blocker, ok := m.blockingFile(p); ok {
		panic(fmt.Sprintf("vfs: AddFile %s below existing file %s", p, blocker))
	}
	m.addParents(p)
	m.files[p] = &memFile{data: append([]byte(nil), data...), modTime: modTime}
}

// AddDir places an empty directory, creating parents implicitly.
func (m *Mem) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)
	if blocker, ok := m.blockingFile(p); ok {
		panic(fmt.Sprintf("vfs: AddDir %s below existing file %s", p, blocker))
	}
	m.addParents(p)
	m.dirs[p] = true
}

// FailReads rigs the given path so ReadFile fails with ErrRead.
func (m *Mem) FailReads(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads[norm(p)] = true
}

// FailWrites rigs the given path so WriteFile fails with ErrWrite.
func (m *Mem) FailWrites(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[norm(p)] = true
}

// File returns the content and modification time of a stored file, and
// whether it exists. Test assertion helper.
func (m *Mem) File(p string) ([]byte, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[norm(p)]
	if !ok {
		return nil, time.Time{}, false
	}
	return append([]byte(nil), f.data...), f.modTime, true
}

// Paths returns every file path currently stored, sorted. Test helper.
func (m *Mem) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// addParents registers every ancestor of p as a directory. Callers hold mu
// and must have checked blockingFile first, so a path is never a file and a
// directory at the same time.
func (m *Mem) addParents(p string) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		m.dirs[dir] = true
		if dir == "/" || dir == "." {
			break
		}
	}
}

// blockingFile returns the nearest ancestor of p that is a file. OS fails
// with ENOTDIR when a path component is a file; every operation here checks
// this so both implementations fail the same preconditions. Callers hold mu.
func (m *Mem) blockingFile(p string) (string, bool) {
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		if _, isFile := m.files[dir]; isFile {
			return dir, true
		}
		if dir == "/" || dir == "." {
			return "", false
		}
	}
}

func (m *Mem) ListDir(p string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	if _, isFile := m.files[p]; isFile {
		return nil, &PathError{Op: "listdir", Path: p, Err: fmt.Errorf("%w: listed path is a file", ErrNotADirectory)}
	}
	if blocker, ok := m.blockingFile(p); ok {
		return nil, &PathError{Op: "listdir", Path: p, Err: fmt.Errorf("%w: %s is a file", ErrNotADirectory, blocker)}
	}
	if !m.dirs[p] {
		return nil, &PathError{Op: "listdir", Path: p, Err: fmt.Errorf("%w: no such directory", ErrNotFound)}
	}

	var entries []Entry
	for fp, f := range m.files {
		if path.Dir(fp) == p {
			entries = append(entries, Entry{Name: path.Base(fp), Size: int64(len(f.data)), ModTime: f.modTime})
		}
	}
	for dp := range m.dirs {
		if dp != p && path.Dir(dp) == p {
			entries = append(entries, Entry{Name: path.Base(dp), IsDir: true})
		}
	}

	// Map iteration order is random; a stable listing keeps report ordering
	// deterministic across runs.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *Mem) Stat(p string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	if f, ok := m.files[p]; ok {
		return FileInfo{Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	if m.dirs[p] {
		return FileInfo{IsDir: true}, nil
	}
	if blocker, ok := m.blockingFile(p); ok {
		return FileInfo{}, &PathError{Op: "stat", Path: p, Err: fmt.Errorf("%w: %s is a file", ErrNotADirectory, blocker)}
	}
	return FileInfo{}, &PathError{Op: "stat", Path: p, Err: fmt.Errorf("%w: no such path", ErrNotFound)}
}

func (m *Mem) ReadFile(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	if m.failReads[p] {
		return nil, &PathError{Op: "read", Path: p, Err: fmt.Errorf("%w: simulated read failure", ErrRead)}
	}
	f, ok := m.files[p]
	if !ok {
		if blocker, blocked := m.blockingFile(p); blocked {
			return nil, &PathError{Op: "read", Path: p, Err: fmt.Errorf("%w: %s is a file", ErrNotADirectory, blocker)}
		}
		return nil, &PathError{Op: "read", Path: p, Err: fmt.Errorf("%w: no such file", ErrNotFound)}
	}
	return append([]byte(nil), f.data...), nil
}

func (m *Mem) WriteFile(p string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	if m.failWrite[p] {
		return &PathError{Op: "write", Path: p, Err: fmt.Errorf("%w: simulated write failure", ErrWrite)}
	}
	if m.dirs[p] {
		return &PathError{Op: "write", Path: p, Err: fmt.Errorf("%w: path is a directory", ErrWrite)}
	}
	if blocker, ok := m.blockingFile(p); ok {
		return &PathError{Op: "write", Path: p, Err: fmt.Errorf("%w: %s is a file", ErrNotADirectory, blocker)}
	}
	m.addParents(p)
	// A fresh write carries the current time until the caller stamps it.
	m.files[p] = &memFile{data: append([]byte(nil), data...), modTime: time.Now()}
	return nil
}

func (m *Mem) MkdirAll(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	if _, isFile := m.files[p]; isFile {
		return &PathError{Op: "mkdir", Path: p, Err: fmt.Errorf("%w: path is a file", ErrWrite)}
	}
	if blocker, ok := m.blockingFile(p); ok {
		return &PathError{Op: "mkdir", Path: p, Err: fmt.Errorf("%w: %s is a file", ErrNotADirectory, blocker)}
	}
	m.addParents(p)
	m.dirs[p] = true
	return nil
}

func (m *Mem) Chtimes(p string, mtime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = norm(p)

	f, ok := m.files[p]
	if !ok {
		return &PathError{Op: "chtimes", Path: p, Err: fmt.Errorf("%w: no such file", ErrWrite)}
	}
	f.modTime = mtime
	return nil
}

// Snapshot captures the full file state (path -> content string) for
// before/after comparisons in tests.
func (m *Mem) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]string, len(m.files))
	for p, f := range m.files {
		snap[p] = string(f.data) + "@" + f.modTime.UTC().Format(time.RFC3339Nano)
	}
	return snap
}

var _ FileSystem = (*Mem)(nil)
