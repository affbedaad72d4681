package cmd_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yutahayashi/cc-sync-session/cmd"
	"github.com/yutahayashi/cc-sync-session/pkg/ccpath"
	"github.com/yutahayashi/cc-sync-session/pkg/repofind"
)

// syncFixture holds an initialized repository plus a session source tree
// containing one project directory encoded for that repository.
type syncFixture struct {
	repo      string
	sourceDir string
	// projectDir is the decoded destination prefix inside the marker dir.
	projectDir string
	srcTime    time.Time
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	repo := newGitRepo(t)
	if err := cmd.RunInit(context.Background(), map[string]any{"repo": repo}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	encoded, err := ccpath.Encode(repo)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	f := &syncFixture{
		repo:       repo,
		sourceDir:  t.TempDir(),
		projectDir: ccpath.DecodeToPath(encoded),
		srcTime:    time.Now().Add(-time.Hour).Truncate(time.Second),
	}

	f.addSourceFile(t, encoded, "session.json", `{"id":1}`)
	f.addSourceFile(t, encoded, filepath.Join("subdir", "agent.json"), `{"id":2}`)
	// A second project that default runs must leave alone.
	f.addSourceFile(t, "-Users-someone-else", "session.json", `{"id":3}`)

	return f
}

func (f *syncFixture) addSourceFile(t *testing.T, encoded, rel, content string) {
	t.Helper()
	path := filepath.Join(f.sourceDir, encoded, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, f.srcTime, f.srcTime); err != nil {
		t.Fatal(err)
	}
}

func (f *syncFixture) flagMap(extra map[string]any) map[string]any {
	flagMap := map[string]any{"repo": f.repo, "source": f.sourceDir}
	for k, v := range extra {
		flagMap[k] = v
	}
	return flagMap
}

func TestRunSyncEndToEnd(t *testing.T) {
	f := newSyncFixture(t)

	if err := cmd.RunSync(context.Background(), f.flagMap(nil)); err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	markerDir := repofind.MarkerDir(f.repo)
	dst := filepath.Join(markerDir, f.projectDir, "session.json")

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("synced file missing: %v", err)
	}
	if string(data) != `{"id":1}` {
		t.Errorf("synced content mismatch: %q", data)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(f.srcTime) {
		t.Errorf("destination mtime %v, want source mtime %v", info.ModTime(), f.srcTime)
	}

	if _, err := os.Stat(filepath.Join(markerDir, f.projectDir, "subdir", "agent.json")); err != nil {
		t.Errorf("nested file was not synced: %v", err)
	}

	// The foreign project must not have been synced by a default run.
	foreign := filepath.Join(markerDir, "Users", "someone", "else")
	if _, err := os.Stat(foreign); !os.IsNotExist(err) {
		t.Error("foreign project was synced without -all-projects")
	}
}

func TestRunSyncIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	flagMap := f.flagMap(nil)

	if err := cmd.RunSync(context.Background(), flagMap); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	dst := filepath.Join(repofind.MarkerDir(f.repo), f.projectDir, "session.json")
	before, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}

	if err := cmd.RunSync(context.Background(), flagMap); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	after, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("second run rewrote an up-to-date file")
	}
}

func TestRunSyncAllProjects(t *testing.T) {
	f := newSyncFixture(t)

	err := cmd.RunSync(context.Background(), f.flagMap(map[string]any{"all-projects": true}))
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	foreign := filepath.Join(repofind.MarkerDir(f.repo), "Users", "someone", "else", "session.json")
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign project missing from -all-projects run: %v", err)
	}
}

func TestRunSyncDryRunWritesNothing(t *testing.T) {
	f := newSyncFixture(t)

	err := cmd.RunSync(context.Background(), f.flagMap(map[string]any{"dry-run": true}))
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	markerDir := repofind.MarkerDir(f.repo)
	if _, err := os.Stat(filepath.Join(markerDir, f.projectDir)); !os.IsNotExist(err) {
		t.Error("dry run created destination files")
	}
}

func TestRunSyncRequiresInit(t *testing.T) {
	repo := newGitRepo(t) // no init

	err := cmd.RunSync(context.Background(), map[string]any{"repo": repo, "source": t.TempDir()})
	if err == nil {
		t.Fatal("expected an error for an uninitialized repository")
	}
	if !strings.Contains(err.Error(), "init") {
		t.Errorf("error should point at the init command, got: %v", err)
	}
}

func TestRunSyncSourceEnvFallback(t *testing.T) {
	f := newSyncFixture(t)
	t.Setenv("CC_SYNC_SESSION_SOURCE_DIR", f.sourceDir)

	// No -source flag: the environment variable must be picked up.
	err := cmd.RunSync(context.Background(), map[string]any{"repo": f.repo})
	if err != nil {
		t.Fatalf("RunSync failed: %v", err)
	}

	dst := filepath.Join(repofind.MarkerDir(f.repo), f.projectDir, "session.json")
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("file was not synced from env-provided source: %v", err)
	}
}
