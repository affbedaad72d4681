// Package lockfile guards a session directory against concurrent runs.
//
// The lock is a JSON file created with O_EXCL so only one process can create
// it. A background heartbeat refreshes the timestamp so other processes can
// distinguish an active holder from a crashed one. On Unix an advisory flock
// on the file is held additionally.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

// LockFileName is the name of the lock file created in the session directory.
// The '~' prefix marks it as temporary.
const LockFileName = ".~ccss.lock"

// LockContent defines the structure of the data written to the lock file.
type LockContent struct {
	PID        int64     `json:"pid"`
	LastUpdate time.Time `json:"lastUpdate"`
	AppID      string    `json:"appID"`
}

// ErrLockActive is a structured error returned when a lock is already held by another process.
type ErrLockActive struct {
	PID       int64
	AppID     string
	TimeSince time.Duration
}

// Error implements the error interface for ErrLockActive.
func (e *ErrLockActive) Error() string {
	// Truncate for cleaner output, e.g., "3m2s" instead of "3m2.123456789s".
	return fmt.Sprintf("lock is active, held by PID %d (App: %s), last updated %s ago", e.PID, e.AppID, e.TimeSince.Truncate(time.Second))
}

// Lock manages the state of the acquired lock file.
type Lock struct {
	path    string
	appID   string
	file    *os.File
	// The context and cancel function are used to stop the background heartbeat goroutine.
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	// We keep track if we actually hold the lock to prevent double release
	held bool
}

// These are vars to allow modification during testing.
var (
	heartbeatInterval = 30 * time.Second
	// staleTimeout is defined in relation to the heartbeat to ensure a safe margin.
	staleTimeout = 6 * heartbeatInterval
)

// Acquire attempts to acquire the lock in the given directory.
// ctx is used for the lifecycle of the acquisition attempt, not the background heartbeat.
// It returns a non-nil Lock on success.
// It returns (nil, *ErrLockActive) if the lock is already held.
// It returns (nil, error) for any other failure.
func Acquire(ctx context.Context, dirPath string, appID string) (*Lock, error) {
	lockFilePath := filepath.Join(dirPath, LockFileName)

	// We will attempt to acquire multiple times in case of race conditions during cleanup
	maxAttempts := 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// --- 1. Attempt Atomic Acquisition ---
		lock, err := tryAcquire(lockFilePath, appID)
		if err == nil {
			go lock.heartbeat()
			return lock, nil
		}

		// If error is NOT "file exists", it's a real filesystem error (permissions, disk full, etc)
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to access lock file: %w", err)
		}

		// --- 2. Lock is Held, Check for Staleness ---
		content, staleErr := readLockContentSafely(lockFilePath)
		if staleErr != nil {
			// The holder might be mid-write, wait a split second and retry.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		elapsed := time.Since(content.LastUpdate)
		if elapsed < staleTimeout {
			return nil, &ErrLockActive{
				PID:       content.PID,
				AppID:     content.AppID,
				TimeSince: elapsed,
			}
		}

		// --- 3. Lock is Stale, Attempt Cleanup ---
		plog.Warn("Found stale lock", "pid", content.PID, "age", elapsed)

		if removeErr := os.Remove(lockFilePath); removeErr != nil {
			// If remove fails, it might be that it was removed by someone else already
			if !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("failed to remove stale lock: %w", removeErr)
			}
		}

		// Loop continues to tryAcquire again
		plog.Info("Stale lock removed, retrying acquisition")
	}

	return nil, fmt.Errorf("failed to acquire lock after %d attempts (contention)", maxAttempts)
}

// tryAcquire attempts atomic creation using O_EXCL to guarantee "I created this file first".
func tryAcquire(lockFilePath string, appID string) (*Lock, error) {
	f, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}

	// Hold an advisory lock on the fd where the platform supports it.
	if err := sysLock(f); err != nil {
		f.Close()
		os.Remove(lockFilePath)
		return nil, fmt.Errorf("failed to flock lock file: %w", err)
	}

	// Setup context for the heartbeat
	ctx, cancel := context.WithCancel(context.Background())

	l := &Lock{
		path:   lockFilePath,
		appID:  appID,
		file:   f,
		ctx:    ctx,
		cancel: cancel,
		held:   true,
	}

	// Write initial data immediately.
	// If this fails, we must clean up the empty file we just created.
	if err := l.updateContent(); err != nil {
		l.cleanup()
		return nil, err
	}

	return l, nil
}

// Release stops the heartbeat and removes the lock file.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		return
	}

	l.cancel() // Stop heartbeat
	l.cleanup()
	l.held = false
}

func (l *Lock) cleanup() {
	if l.file != nil {
		sysUnlock(l.file)
		l.file.Close()
		l.file = nil
	}
	if err := os.Remove(l.path); err != nil {
		// If file is already gone, that's fine.
		if !os.IsNotExist(err) {
			plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
		}
	} else {
		plog.Debug("Lock released", "path", l.path)
	}
}

func (l *Lock) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.updateContent(); err != nil {
				plog.Warn("Heartbeat failed to update lock file", "error", err)
			}
		}
	}
}

// updateContent writes current state to the lock file.
// os.WriteFile truncates in place. We deliberately avoid write-to-temp-and-rename
// here because rename would change the inode the flock is held on.
func (l *Lock) updateContent() error {
	content := LockContent{
		PID:        int64(os.Getpid()),
		LastUpdate: time.Now(),
		AppID:      l.appID,
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(l.path, data, util.UserWritableFilePerms)
}

// readLockContentSafely attempts to read the lock file, handling the race condition
// where the file exists but is currently being truncated/written to (empty or partial).
func readLockContentSafely(lockFilePath string) (LockContent, error) {
	var lastErr error

	// Try reading a few times if we encounter JSON syntax errors or empty files
	// which happen during the updateContent() write cycle.
	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.Open(lockFilePath)
		if err != nil {
			return LockContent{}, err
		}

		data, err := io.ReadAll(f)
		f.Close() // Close explicitly before potential sleep
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if len(data) == 0 {
			lastErr = errors.New("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		var content LockContent
		if err := json.Unmarshal(data, &content); err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			continue
		}

		return content, nil
	}

	return LockContent{}, fmt.Errorf("failed to read valid lock content: %w", lastErr)
}
