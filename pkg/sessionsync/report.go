package sessionsync

import "fmt"

// Decision classifies what the engine decided (and, on a real run, did) for
// a single source file.
type Decision int

const (
	// Copy means the destination was absent or strictly older than the source.
	Copy Decision = iota
	// Skip means the destination is already up to date. Equal timestamps skip.
	Skip
	// Fail means a per-file error was caught; the run continued without it.
	Fail
)

// String returns the string representation of a Decision.
func (d Decision) String() string {
	switch d {
	case Copy:
		return "copy"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("unknown_decision(%d)", d)
	}
}

// Action is one per-file outcome: the source-relative path, the translated
// destination-relative path, the decision, and the cause when it failed.
type Action struct {
	Source   string
	Target   string
	Decision Decision
	Err      error
}

// Report accumulates the ordered per-file decisions of one sync run, plus
// warning-level notes about entries the walk bypassed. It is append-only
// while the run is in progress and read-only for the caller afterwards.
// The same report shape serves dry-run previews and post-run summaries.
type Report struct {
	Actions []Action
	Notes   []string

	// DirsCreated counts destination directories that did not exist before a
	// copy forced their creation.
	DirsCreated int
}

func (r *Report) add(a Action) {
	r.Actions = append(r.Actions, a)
}

func (r *Report) note(msg string) {
	r.Notes = append(r.Notes, msg)
}

func (r *Report) count(d Decision) int {
	n := 0
	for _, a := range r.Actions {
		if a.Decision == d {
			n++
		}
	}
	return n
}

// Copied returns the number of Copy decisions.
func (r *Report) Copied() int { return r.count(Copy) }

// Skipped returns the number of Skip decisions.
func (r *Report) Skipped() int { return r.count(Skip) }

// Failed returns the number of Fail decisions.
func (r *Report) Failed() int { return r.count(Fail) }

// HasFailures reports whether any per-file operation failed. Callers use it
// to choose the process exit status.
func (r *Report) HasFailures() bool {
	for _, a := range r.Actions {
		if a.Decision == Fail {
			return true
		}
	}
	return false
}

// Failures returns the Fail actions with their causes, in walk order.
func (r *Report) Failures() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Decision == Fail {
			failed = append(failed, a)
		}
	}
	return failed
}
