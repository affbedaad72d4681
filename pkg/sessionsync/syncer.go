// Package sessionsync implements the one-way synchronization of Claude Code
// session trees into a repository's session directory.
//
// The source root contains one directory per project, named in the flattened
// encoding ccpath decodes ("-Users-yuta-project"). Only that first path
// segment is translated; everything below it is mirrored verbatim. A file is
// copied when the destination copy is absent or strictly older, and after a
// copy the destination's modification time is set to the source's, which is
// what makes re-running the sync idempotent. The engine never mutates the
// source tree: no filesystem write operation is ever issued against a source
// path.
package sessionsync

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/yutahayashi/cc-sync-session/pkg/ccpath"
	"github.com/yutahayashi/cc-sync-session/pkg/metrics"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/vfs"
)

// Options control a single sync run.
type Options struct {
	// DryRun computes and records decisions without touching the filesystem.
	DryRun bool
	// Only, when non-empty, restricts the run to the named top-level encoded
	// project directories. Empty means every project under the source root.
	Only []string
}

// Syncer walks a source tree and copies stale-or-missing files into a
// destination tree through a vfs.FileSystem. It holds no per-run state;
// each Sync call is independent.
type Syncer struct {
	fs      vfs.FileSystem
	metrics metrics.Metrics
}

// New creates a Syncer over the given filesystem. A nil metrics sink
// disables metrics collection.
func New(fs vfs.FileSystem, m metrics.Metrics) *Syncer {
	if m == nil {
		m = &metrics.NoopMetrics{}
	}
	return &Syncer{fs: fs, metrics: m}
}

// walkItem pairs a source directory with its translated destination
// directory during the breadth-first walk of one project subtree.
type walkItem struct {
	srcDir, dstDir       string
	srcRelDir, dstRelDir string
}

// Sync synchronizes sourceRoot into targetDir and returns the completed
// report. Failure to list the source root is fatal; every error below that
// is downgraded to a Fail entry in the report so that a single bad file can
// never abort the run.
func (s *Syncer) Sync(sourceRoot, targetDir string, opts Options) (*Report, error) {
	report := &Report{}

	tops, err := s.fs.ListDir(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot list source root %s: %w", sourceRoot, err)
	}

	only := make(map[string]bool, len(opts.Only))
	for _, name := range opts.Only {
		only[name] = true
	}

	for _, top := range tops {
		if len(only) > 0 && !only[top.Name] {
			plog.Debug("Skipping project outside selection", "name", top.Name)
			continue
		}
		if !top.IsDir {
			// Top-level entries are expected to be encoded project
			// directories; anything else is noted, never a failure.
			msg := fmt.Sprintf("skipping non-directory top-level entry: %s", top.Name)
			plog.Warn("Skipping non-directory top-level entry", "name", top.Name)
			report.note(msg)
			continue
		}

		dstPrefix := ccpath.DecodeToPath(top.Name)
		s.syncProject(top.Name, dstPrefix, sourceRoot, targetDir, opts, report)
	}

	return report, nil
}

// syncProject walks one project subtree breadth-first, so parent directories
// are always seen before their contents.
func (s *Syncer) syncProject(encodedName, dstPrefix, sourceRoot, targetDir string, opts Options, report *Report) {
	queue := []walkItem{{
		srcDir:    filepath.Join(sourceRoot, encodedName),
		dstDir:    filepath.Join(targetDir, dstPrefix),
		srcRelDir: encodedName,
		dstRelDir: dstPrefix,
	}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		entries, err := s.fs.ListDir(item.srcDir)
		if err != nil {
			// A subtree that cannot be listed fails as a unit but does not
			// stop the walk of its siblings.
			report.add(Action{Source: item.srcRelDir, Target: item.dstRelDir, Decision: Fail, Err: err})
			s.metrics.AddFilesFailed(1)
			plog.Warn("Failed to list source directory", "path", item.srcRelDir, "error", err)
			continue
		}

		for _, entry := range entries {
			srcRel := filepath.Join(item.srcRelDir, entry.Name)
			dstRel := filepath.Join(item.dstRelDir, entry.Name)

			if entry.IsDir {
				queue = append(queue, walkItem{
					srcDir:    filepath.Join(item.srcDir, entry.Name),
					dstDir:    filepath.Join(item.dstDir, entry.Name),
					srcRelDir: srcRel,
					dstRelDir: dstRel,
				})
				continue
			}

			s.syncFile(
				filepath.Join(item.srcDir, entry.Name),
				filepath.Join(item.dstDir, entry.Name),
				srcRel, dstRel, entry.ModTime, opts, report,
			)
		}
	}
}

// syncFile applies the freshness policy to one file and performs the copy
// when needed. Every error is caught here and recorded as a Fail action.
func (s *Syncer) syncFile(srcPath, dstPath, srcRel, dstRel string, srcMod time.Time, opts Options, report *Report) {
	fail := func(err error) {
		report.add(Action{Source: srcRel, Target: dstRel, Decision: Fail, Err: err})
		s.metrics.AddFilesFailed(1)
		plog.Warn("FAIL", "path", srcRel, "error", err)
	}

	needsCopy, err := s.shouldCopy(dstPath, srcMod)
	if err != nil {
		fail(err)
		return
	}

	if !needsCopy {
		report.add(Action{Source: srcRel, Target: dstRel, Decision: Skip})
		s.metrics.AddFilesSkipped(1)
		plog.Debug("Up to date", "path", dstRel)
		return
	}

	if opts.DryRun {
		report.add(Action{Source: srcRel, Target: dstRel, Decision: Copy})
		s.metrics.AddFilesCopied(1)
		plog.Info("[DRY RUN] COPY", "path", dstRel)
		return
	}

	if err := s.copyFile(srcPath, dstPath, srcMod, report); err != nil {
		fail(err)
		return
	}

	report.add(Action{Source: srcRel, Target: dstRel, Decision: Copy})
	s.metrics.AddFilesCopied(1)
	plog.Info("COPY", "path", dstRel)
}

// shouldCopy implements the freshness policy: copy if and only if the
// destination is absent or the source is strictly newer. Equal timestamps
// resolve to skip.
func (s *Syncer) shouldCopy(dstPath string, srcMod time.Time) (bool, error) {
	dstInfo, err := s.fs.Stat(dstPath)
	if err != nil {
		if errors.Is(err, vfs.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return srcMod.After(dstInfo.ModTime), nil
}

// copyFile reads the source, creates the destination's parents lazily,
// writes the content, and stamps the destination with the source's
// modification time so the next run sees it as up to date.
func (s *Syncer) copyFile(srcPath, dstPath string, srcMod time.Time, report *Report) error {
	data, err := s.fs.ReadFile(srcPath)
	if err != nil {
		return err
	}

	parent := filepath.Dir(dstPath)
	if _, statErr := s.fs.Stat(parent); errors.Is(statErr, vfs.ErrNotFound) {
		if err := s.fs.MkdirAll(parent); err != nil {
			return err
		}
		report.DirsCreated++
		s.metrics.AddDirsCreated(1)
	}

	if err := s.fs.WriteFile(dstPath, data); err != nil {
		return err
	}
	return s.fs.Chtimes(dstPath, srcMod)
}
