// Package flagparse turns command-line arguments into a subcommand and a map
// of the flags the user explicitly set. Only set flags appear in the map, so
// callers can layer their own defaults underneath.
package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this command" (nil)
// and "registered but not set by user" (non-nil pointer to zero value).
type cliFlags struct {
	// Global
	LogLevel *string
	DryRun   *bool
	Quiet    *bool
	Metrics  *bool

	// Shared: Sync / Init / Archive
	Repo *string

	// Sync specific
	Source      *string
	AllProjects *bool

	// Archive specific
	OlderThan      *string
	Format         *string
	Prune          *bool
	ArchiveWorkers *int

	// Init specific
	Force *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'info', 'notice', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Quiet = fs.Bool("quiet", false, "Suppress all output except warnings and errors.")
	f.Metrics = fs.Bool("metrics", false, "Print a summary of counters at the end of the run.")
}

func registerSyncFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Repo = fs.String("repo", "", "Repository root to sync into. Defaults to the enclosing git repository.")
	f.Source = fs.String("source", "", "Session source directory. Defaults to $CC_SYNC_SESSION_SOURCE_DIR or ~/.claude/projects.")
	f.AllProjects = fs.Bool("all-projects", false, "Sync sessions of every project, not just the current repository's.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Repo = fs.String("repo", "", "Repository root to initialize. Defaults to the enclosing git repository.")
	f.Force = fs.Bool("force", false, "Reinitialize even when the session directory already exists.")
}

func registerArchiveFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Repo = fs.String("repo", "", "Repository root whose sessions to archive. Defaults to the enclosing git repository.")
	f.OlderThan = fs.String("older-than", "720h", "Minimum age of a session tree to archive, as a duration (e.g. '360h').")
	f.Format = fs.String("format", "tar.gz", "Archive format: 'tar.gz' or 'tar.zst'.")
	f.Prune = fs.Bool("prune", false, "Remove session trees after archiving them.")
	f.ArchiveWorkers = fs.Int("archive-workers", 0, "Number of worker goroutines for writing archives.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the
// command and a map of explicitly set flags.
func Parse(args []string) (Command, map[string]any, error) {
	// If no arguments provided, print help and exit.
	if len(args) == 0 {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	f := &cliFlags{}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	switch command {
	case Sync:
		return parseWith(command, "Copy session files into the repository's session directory.", args[1:], f, registerSyncFlags)

	case Init:
		return parseWith(command, "Create the session directory in a repository.", args[1:], f, registerInitFlags)

	case Archive:
		return parseWith(command, "Compress cold session trees into tarballs.", args[1:], f, registerArchiveFlags)

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

// parseWith runs the shared FlagSet lifecycle for one subcommand: global
// flags, the command's own flags, usage text, parse, and the set-flag map.
func parseWith(command Command, desc string, args []string, f *cliFlags, register func(*flag.FlagSet, *cliFlags)) (Command, map[string]any, error) {
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	registerGlobalFlags(fs, f)
	register(fs, f)

	fs.Usage = func() {
		printSubcommandUsage(command, desc, fs)
	}

	if err := fs.Parse(args); err != nil {
		return command, nil, err
	}
	return command, flagsToMap(fs, f), nil
}

func flagsToMap(fs *flag.FlagSet, f *cliFlags) map[string]any {
	// Only flags the user explicitly set end up in the map, so callers can
	// distinguish "flag absent" from "flag set to its zero value".
	usedFlags := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { usedFlags[fl.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "quiet", f.Quiet)
	addIfUsed(flagMap, usedFlags, "metrics", f.Metrics)

	addIfUsed(flagMap, usedFlags, "repo", f.Repo)
	addIfUsed(flagMap, usedFlags, "source", f.Source)
	addIfUsed(flagMap, usedFlags, "all-projects", f.AllProjects)

	addIfUsed(flagMap, usedFlags, "older-than", f.OlderThan)
	addIfUsed(flagMap, usedFlags, "format", f.Format)
	addIfUsed(flagMap, usedFlags, "prune", f.Prune)
	addIfUsed(flagMap, usedFlags, "archive-workers", f.ArchiveWorkers)

	addIfUsed(flagMap, usedFlags, "force", f.Force)

	return flagMap
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]any, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Mirror coding session files into their repository.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Commands:\n")
	fmt.Fprintf(fs.Output(), "  sync        Copy session files into the repository's session directory\n")
	fmt.Fprintf(fs.Output(), "  init        Create the session directory in a repository\n")
	fmt.Fprintf(fs.Output(), "  archive     Compress cold session trees into tarballs\n")
	fmt.Fprintf(fs.Output(), "  version     Print the application version\n")
	fmt.Fprintf(fs.Output(), "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {
	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Mirror coding session files into their repository.\n\n")
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}
