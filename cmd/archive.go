package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/archive"
	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
	"github.com/yutahayashi/cc-sync-session/pkg/lockfile"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/repofind"
)

// RunArchive handles the logic for the 'archive' command.
func RunArchive(ctx context.Context, flagMap map[string]any) error {
	repoRoot, err := resolveRepo(flagMap)
	if err != nil {
		return err
	}
	markerDir := repofind.MarkerDir(repoRoot)
	if _, err := os.Stat(markerDir); err != nil {
		return fmt.Errorf("repository %s is not initialized, run '%s init' first", repoRoot, buildinfo.Name)
	}

	opts := archive.Options{OlderThan: 30 * 24 * time.Hour, Format: archive.TarGz}

	if v, ok := flagMap["older-than"].(string); ok {
		opts.OlderThan, err = time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid -older-than value %q: %w", v, err)
		}
	}
	if v, ok := flagMap["format"].(string); ok {
		opts.Format, err = archive.ParseFormat(v)
		if err != nil {
			return err
		}
	}
	if v, ok := flagMap["prune"]; ok {
		opts.Prune = v.(bool)
	}
	if v, ok := flagMap["dry-run"]; ok {
		opts.DryRun = v.(bool)
	}
	if v, ok := flagMap["archive-workers"]; ok {
		opts.Workers = v.(int)
	}

	m := runMetrics(flagMap)

	plog.Info("Starting archive", "path", markerDir, "olderThan", opts.OlderThan, "format", opts.Format)

	if !opts.DryRun {
		lock, err := lockfile.Acquire(ctx, markerDir, buildinfo.Name)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	if err := archive.Run(ctx, markerDir, opts, m); err != nil {
		return err
	}

	m.Log()
	return nil
}
