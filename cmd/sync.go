package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
	"github.com/yutahayashi/cc-sync-session/pkg/ccpath"
	"github.com/yutahayashi/cc-sync-session/pkg/lockfile"
	"github.com/yutahayashi/cc-sync-session/pkg/metafile"
	"github.com/yutahayashi/cc-sync-session/pkg/metrics"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/repofind"
	"github.com/yutahayashi/cc-sync-session/pkg/sessionsync"
	"github.com/yutahayashi/cc-sync-session/pkg/util"
	"github.com/yutahayashi/cc-sync-session/pkg/vfs"
)

// sourceDirEnvVar overrides the default session source directory.
const sourceDirEnvVar = "CC_SYNC_SESSION_SOURCE_DIR"

// defaultSourceDir is where Claude Code keeps its per-project session trees.
const defaultSourceDir = "~/.claude/projects"

// RunSync handles the logic for the 'sync' command.
func RunSync(ctx context.Context, flagMap map[string]any) error {
	repoRoot, err := resolveRepo(flagMap)
	if err != nil {
		return err
	}
	markerDir := repofind.MarkerDir(repoRoot)
	if _, err := os.Stat(markerDir); err != nil {
		return fmt.Errorf("repository %s is not initialized, run '%s init' first", repoRoot, buildinfo.Name)
	}

	sourceDir, err := resolveSource(flagMap)
	if err != nil {
		return err
	}

	dryRun := false
	if v, ok := flagMap["dry-run"]; ok {
		dryRun = v.(bool)
	}

	opts := sessionsync.Options{DryRun: dryRun}

	allProjects := false
	if v, ok := flagMap["all-projects"]; ok {
		allProjects = v.(bool)
	}
	if !allProjects {
		// By default only this repository's own sessions are synced.
		encoded, err := ccpath.Encode(repoRoot)
		if err != nil {
			return fmt.Errorf("could not derive session directory name for %s: %w", repoRoot, err)
		}
		opts.Only = []string{encoded}
	}

	m := runMetrics(flagMap)

	plog.Info("Starting sync", "source", sourceDir, "target", markerDir, "dryRun", dryRun)

	if !dryRun {
		lock, err := lockfile.Acquire(ctx, markerDir, buildinfo.Name)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	syncer := sessionsync.New(vfs.NewOS(), m)
	report, err := syncer.Sync(sourceDir, markerDir, opts)
	if err != nil {
		return err
	}

	plog.Notice("SYNC",
		"copied", report.Copied(),
		"skipped", report.Skipped(),
		"failed", report.Failed(),
		"dirsCreated", report.DirsCreated,
	)
	m.Log()

	if !dryRun {
		refreshMetaFile(markerDir, report)
	}

	if report.HasFailures() {
		return fmt.Errorf("%d file(s) failed to sync", report.Failed())
	}
	return nil
}

// resolveRepo returns the repository root from the -repo flag, or the
// enclosing initialized repository of the working directory.
func resolveRepo(flagMap map[string]any) (string, error) {
	if v, ok := flagMap["repo"].(string); ok && v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return "", fmt.Errorf("could not resolve repository path %s: %w", v, err)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("could not determine working directory: %w", err)
	}
	repoRoot, err := repofind.Find(cwd)
	if err != nil {
		return "", fmt.Errorf("%w, run '%s init' inside a git repository first", err, buildinfo.Name)
	}
	return repoRoot, nil
}

// resolveSource returns the session source directory with the precedence
// flag, then environment, then the built-in default.
func resolveSource(flagMap map[string]any) (string, error) {
	raw := defaultSourceDir
	if env := os.Getenv(sourceDirEnvVar); env != "" {
		raw = env
	}
	if v, ok := flagMap["source"].(string); ok && v != "" {
		raw = v
	}

	expanded, err := util.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("could not expand source directory %s: %w", raw, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("could not resolve source directory %s: %w", expanded, err)
	}
	return abs, nil
}

// runMetrics returns a real metrics sink when the -metrics flag is set.
func runMetrics(flagMap map[string]any) metrics.Metrics {
	if v, ok := flagMap["metrics"]; ok && v.(bool) {
		return &metrics.RunMetrics{}
	}
	return &metrics.NoopMetrics{}
}

// refreshMetaFile records the outcome of the run in the marker metadata.
// Best effort: a sync that copied its files is a success even if the
// bookkeeping write fails.
func refreshMetaFile(markerDir string, report *sessionsync.Report) {
	content, err := metafile.Read(markerDir)
	if err != nil {
		if !os.IsNotExist(err) {
			plog.Warn("Could not read session metadata, rewriting it", "error", err)
		}
		content = metafile.Content{Version: buildinfo.Version, InitializedAt: time.Now().UTC()}
	}

	content.LastSyncAt = time.Now().UTC()
	content.FilesCopied = report.Copied()
	content.FilesSkipped = report.Skipped()
	content.FilesFailed = report.Failed()

	if err := metafile.Write(markerDir, &content); err != nil {
		plog.Warn("Could not update session metadata", "error", err)
	}
}
