// Package archive moves cold session trees out of the session directory into
// compressed tarballs. A tree is cold when none of its files changed within
// the configured age. Archives are written atomically via temp file and
// rename, so a crashed run never leaves a partial archive behind.
package archive

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/yutahayashi/cc-sync-session/pkg/hints"
	"github.com/yutahayashi/cc-sync-session/pkg/metrics"
	"github.com/yutahayashi/cc-sync-session/pkg/plog"
	"github.com/yutahayashi/cc-sync-session/pkg/pool"
)

const (
	ioBufferSize   = 256 * 1024
	defaultWorkers = 2
)

// Options configures a single archiving run.
type Options struct {
	// OlderThan is the minimum age of the newest file in a tree for the
	// tree to be archived. Zero archives everything.
	OlderThan time.Duration
	Format    Format
	// Prune removes the source tree after its archive has been written.
	Prune   bool
	DryRun  bool
	Workers int
}

// Run archives every top-level directory in sessionsDir whose newest file is
// older than the cutoff. It returns a hint error when nothing qualifies.
func Run(ctx context.Context, sessionsDir string, opts Options, m metrics.Metrics) error {
	if m == nil {
		m = &metrics.NoopMetrics{}
	}
	if opts.Format == "" {
		opts.Format = TarGz
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}

	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return fmt.Errorf("failed to read session directory %s: %w", sessionsDir, err)
	}

	cutoff := time.Now().Add(-opts.OlderThan)

	var candidates []string
	for _, entry := range entries {
		// Lock and metadata files live at the top level and are never archived.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dirPath := filepath.Join(sessionsDir, entry.Name())
		newest, err := newestModTime(dirPath)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dirPath, err)
		}
		if newest.Before(cutoff) {
			candidates = append(candidates, dirPath)
		}
	}

	if len(candidates) == 0 {
		return hints.New("nothing to archive")
	}

	bufPool := pool.NewFixedBuffer(ioBufferSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, dirPath := range candidates {
		dirPath := dirPath
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return archiveTree(dirPath, opts, bufPool, m)
		})
	}

	return g.Wait()
}

// newestModTime returns the most recent file modification time inside root.
// An empty tree reports the zero time and is therefore always a candidate.
func newestModTime(root string) (time.Time, error) {
	var newest time.Time
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, err
}

func archiveTree(dirPath string, opts Options, bufPool *pool.FixedBufferPool, m metrics.Metrics) error {
	archivePath := dirPath + opts.Format.Extension()

	if opts.DryRun {
		plog.Notice("[DRY RUN] ARCHIVE", "source", dirPath, "target", archivePath)
		return nil
	}

	plog.Notice("ARCHIVE", "source", dirPath, "target", archivePath)

	if err := writeTar(dirPath, archivePath, opts.Format, bufPool); err != nil {
		return err
	}
	m.AddArchivesWritten(1)

	if opts.Prune {
		if err := os.RemoveAll(dirPath); err != nil {
			return fmt.Errorf("failed to prune archived tree %s: %w", dirPath, err)
		}
		plog.Info("PRUNE", "path", dirPath)
	}

	return nil
}

func writeTar(srcDir, archivePath string, format Format, bufPool *pool.FixedBufferPool) (retErr error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(archivePath), ".ccss-archive-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if retErr != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := writeTarContent(tmpFile, srcDir, format, bufPool); err != nil {
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}

	if err := os.Rename(tmpPath, archivePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

func writeTarContent(w io.Writer, srcDir string, format Format, bufPool *pool.FixedBufferPool) (retErr error) {
	bufWriter := bufio.NewWriterSize(w, ioBufferSize)

	var compressedWriter io.WriteCloser
	if format == TarZst {
		zstdWriter, err := zstd.NewWriter(bufWriter)
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	} else {
		compressedWriter = pgzip.NewWriter(bufWriter)
	}

	tarWriter := tar.NewWriter(compressedWriter)

	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	bufPtr := bufPool.Get()
	defer bufPool.Put(bufPtr)

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", path, err)
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", relPath, err)
		}
		header.Name = filepath.ToSlash(filepath.Join(filepath.Base(srcDir), relPath))

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", relPath, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.CopyBuffer(tarWriter, f, *bufPtr); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", relPath, err)
		}
		return nil
	})
}
