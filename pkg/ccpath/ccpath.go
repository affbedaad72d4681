// Package ccpath converts between filesystem paths and the flattened
// directory names Claude Code uses under its projects directory. A project
// at /Users/yuta/project is stored as the single directory name
// "-Users-yuta-project": every path separator becomes a dash, and the leading
// dash corresponds to the root's leading slash.
package ccpath

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Separator is the character the encoded form uses in place of path separators.
const Separator = "-"

// Decode splits an encoded top-level directory name back into its path
// segments. It is total: any string is valid input. A name with no separator
// decodes to a single segment, and the empty leading segment produced by a
// leading dash is dropped. Consecutive dashes yield empty segments, which are
// preserved rather than collapsed; Encode never produces them, and callers
// that join the segments into a path drop them at that boundary anyway.
func Decode(encoded string) []string {
	segments := strings.Split(encoded, Separator)
	if len(segments) > 0 && segments[0] == "" {
		segments = segments[1:]
	}
	return segments
}

// DecodeToPath decodes an encoded name and joins the segments into a
// filesystem-relative path.
func DecodeToPath(encoded string) string {
	return filepath.Join(Decode(encoded)...)
}

// Encode converts an absolute directory path into the encoded name Claude
// Code would use for it. Dots are flattened to dashes as well, matching the
// stored naming ("/Users/yuta/github.com" becomes "-Users-yuta-github-com"),
// which makes Encode lossy; it is only used to locate an existing source
// directory, never to reconstruct a path.
func Encode(absPath string) (string, error) {
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("path must be absolute: %s", absPath)
	}

	s := filepath.ToSlash(filepath.Clean(absPath))
	s = strings.TrimPrefix(s, "/")
	s = strings.ReplaceAll(s, "/", Separator)
	s = strings.ReplaceAll(s, ".", Separator)
	return Separator + s, nil
}
