package cmd

import (
	"fmt"

	"github.com/yutahayashi/cc-sync-session/pkg/buildinfo"
)

// RunVersion prints the application version.
func RunVersion() error {
	fmt.Printf("%s version %s\n", buildinfo.Name, buildinfo.Version)
	return nil
}
