package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yutahayashi/cc-sync-session/cmd"
	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
	"github.com/yutahayashi/cc-sync-session/pkg/flagparse"
	"github.com/yutahayashi/cc-sync-session/pkg/hints"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
)

func run(ctx context.Context) error {
	command, flagMap, err := flagparse.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	if err := configureLogging(flagMap); err != nil {
		return err
	}

	switch command {
	case flagparse.Sync:
		return cmd.RunSync(ctx, flagMap)
	case flagparse.Init:
		return cmd.RunInit(ctx, flagMap)
	case flagparse.Archive:
		return cmd.RunArchive(ctx, flagMap)
	case flagparse.Version:
		return cmd.RunVersion()
	case flagparse.None:
		// Help was printed.
		return nil
	default:
		return fmt.Errorf("internal error: unknown command %v", command)
	}
}

func configureLogging(flagMap map[string]any) error {
	if v, ok := flagMap["log-level"].(string); ok {
		level, err := plog.ParseLevel(v)
		if err != nil {
			return err
		}
		plog.SetLevel(level)
	}
	if v, ok := flagMap["quiet"]; ok && v.(bool) {
		plog.SetQuiet(true)
	}
	return nil
}

func main() {
	// Cancel in-flight work on Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Hint errors are benign outcomes ("nothing to archive"), not failures.
		if hints.IsHint(err) {
			plog.Notice(err.Error())
			return
		}
		plog.Error(buildinfo.Name+" exited with error", "error", err)
		os.Exit(1)
	}
}
