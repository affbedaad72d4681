package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// TestAcquireAndRelease verifies the basic functionality of acquiring and releasing a lock.
func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	lock, err := Acquire(context.Background(), dir, "test-app")
	if err != nil {
		t.Fatalf("expected to acquire lock, but got error: %v", err)
	}

	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Fatal("lock file was not created after acquiring lock")
	}

	lock.Release()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("lock file was not removed after releasing lock")
	}

	// Releasing twice must be a no-op.
	lock.Release()
}

// TestContention ensures that a second caller cannot acquire an active lock.
func TestContention(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(context.Background(), dir, "app-1")
	if err != nil {
		t.Fatalf("first caller failed to acquire lock: %v", err)
	}
	defer lock1.Release()

	_, err = Acquire(context.Background(), dir, "app-2")
	if err == nil {
		t.Fatal("second caller unexpectedly acquired an active lock")
	}

	var lockErr *ErrLockActive
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected error of type *ErrLockActive, but got %T: %v", err, err)
	}

	if lockErr.AppID != "app-1" {
		t.Errorf("expected lock error to report AppID 'app-1', but got '%s'", lockErr.AppID)
	}
}

// TestStaleLockCleanup verifies that a stale lock is taken over.
func TestStaleLockCleanup(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	staleContent := LockContent{
		PID:        12345,
		LastUpdate: time.Now().Add(-(staleTimeout + time.Minute)),
		AppID:      "stale-app",
	}
	data, _ := json.Marshal(staleContent)
	if err := os.WriteFile(lockPath, data, util.UserWritableFilePerms); err != nil {
		t.Fatalf("failed to create stale lock file: %v", err)
	}

	lock, err := Acquire(context.Background(), dir, "fresh-app")
	if err != nil {
		t.Fatalf("expected to take over stale lock, but got error: %v", err)
	}
	defer lock.Release()

	content, err := readLockContentSafely(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock content after takeover: %v", err)
	}
	if content.AppID != "fresh-app" {
		t.Errorf("expected lock to be held by 'fresh-app', but got '%s'", content.AppID)
	}
}

// TestReacquireAfterRelease verifies the lock can be taken again after release.
func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	lock1, err := Acquire(context.Background(), dir, "app")
	if err != nil {
		t.Fatalf("failed initial acquire: %v", err)
	}
	lock1.Release()

	lock2, err := Acquire(context.Background(), dir, "app")
	if err != nil {
		t.Fatalf("failed to reacquire released lock: %v", err)
	}
	lock2.Release()
}

// TestAcquireCancelledContext verifies that a cancelled context aborts acquisition.
func TestAcquireCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, t.TempDir(), "app")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
