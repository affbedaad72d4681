package metrics

import (
	"sync/atomic"

	"github.com/yutahayashi/cc-sync-session/pkg/plog"
)

// Metrics defines the interface for collecting and reporting per-run
// statistics. The sync engine and the archiver only ever talk to this
// interface, so metrics collection can be disabled without touching them.
type Metrics interface {
	AddFilesCopied(n int64)
	AddFilesSkipped(n int64)
	AddFilesFailed(n int64)
	AddDirsCreated(n int64)
	AddArchivesWritten(n int64)
	Log()
}

// RunMetrics holds the atomic counters for one sync or archive run.
// It is the concrete implementation of the Metrics interface.
type RunMetrics struct {
	FilesCopied     atomic.Int64
	FilesSkipped    atomic.Int64
	FilesFailed     atomic.Int64
	DirsCreated     atomic.Int64
	ArchivesWritten atomic.Int64
}

func (m *RunMetrics) AddFilesCopied(n int64)     { m.FilesCopied.Add(n) }
func (m *RunMetrics) AddFilesSkipped(n int64)    { m.FilesSkipped.Add(n) }
func (m *RunMetrics) AddFilesFailed(n int64)     { m.FilesFailed.Add(n) }
func (m *RunMetrics) AddDirsCreated(n int64)     { m.DirsCreated.Add(n) }
func (m *RunMetrics) AddArchivesWritten(n int64) { m.ArchivesWritten.Add(n) }

// Log prints a summary of the run.
func (m *RunMetrics) Log() {
	plog.Notice("SUM",
		"filesCopied", m.FilesCopied.Load(),
		"filesSkipped", m.FilesSkipped.Load(),
		"filesFailed", m.FilesFailed.Load(),
		"dirsCreated", m.DirsCreated.Load(),
		"archivesWritten", m.ArchivesWritten.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no
// operations. It is used when metrics collection is disabled.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesCopied(n int64)     {}
func (m *NoopMetrics) AddFilesSkipped(n int64)    {}
func (m *NoopMetrics) AddFilesFailed(n int64)     {}
func (m *NoopMetrics) AddDirsCreated(n int64)     {}
func (m *NoopMetrics) AddArchivesWritten(n int64) {}
func (m *NoopMetrics) Log()                       {}

// Statically assert that our types implement the interface.
var _ Metrics = (*RunMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
