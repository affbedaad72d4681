package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
	"github.com/yutahayashi/cc-sync-session/pkg/hints"
	"github.com/yutahayashi/cc-sync-session/pkg/metafile"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/repofind"
	"github.com/yutahayashi/cc-sync-session/pkg/util"
)

// RunInit handles the logic for the 'init' command. It creates the session
// marker directory in the repository so later sync runs can find it.
func RunInit(ctx context.Context, flagMap map[string]any) error {
	var repoRoot string
	if v, ok := flagMap["repo"].(string); ok && v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return fmt.Errorf("could not resolve repository path %s: %w", v, err)
		}
		if _, err := os.Stat(filepath.Join(abs, ".git")); err != nil {
			return fmt.Errorf("%s is not a git repository root", abs)
		}
		repoRoot = abs
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not determine working directory: %w", err)
		}
		repoRoot, err = repofind.FindGitRoot(cwd)
		if err != nil {
			return err
		}
	}

	force := false
	if v, ok := flagMap["force"]; ok {
		force = v.(bool)
	}

	markerDir := repofind.MarkerDir(repoRoot)
	if _, err := os.Stat(markerDir); err == nil && !force {
		return hints.New(fmt.Sprintf("already initialized at %s", markerDir))
	}

	if err := os.MkdirAll(markerDir, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create session directory %s: %w", markerDir, err)
	}

	// An empty directory would be invisible to git.
	gitkeep := filepath.Join(markerDir, ".gitkeep")
	if err := os.WriteFile(gitkeep, nil, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not create %s: %w", gitkeep, err)
	}

	content := metafile.Content{
		Version:       buildinfo.Version,
		InitializedAt: time.Now().UTC(),
	}
	if err := metafile.Write(markerDir, &content); err != nil {
		return err
	}

	plog.Notice("INIT", "path", markerDir)
	return nil
}
