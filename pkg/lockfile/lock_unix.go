//go:build unix

package lockfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// sysLock places a non-blocking exclusive advisory lock on the open file.
// The O_EXCL create is the primary mutual exclusion; the flock additionally
// protects against a stale-lock takeover racing a still-live holder.
func sysLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func sysUnlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
