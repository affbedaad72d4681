//go:build !unix

package lockfile

import "os"

// On platforms without flock the O_EXCL create is the only mutual exclusion.
func sysLock(*os.File) error { return nil }

func sysUnlock(*os.File) {}
