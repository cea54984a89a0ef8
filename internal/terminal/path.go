package terminal

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizePath returns p as an absolute, symlink-resolved path. Paths that
// no longer exist are returned absolute and cleaned.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// IsWithin reports whether dir is root or lies beneath it. Both paths must
// already be normalized. "/repo-feat" is not within "/repo".
func IsWithin(dir, root string) bool {
	if dir == "" || root == "" {
		return false
	}
	if dir == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(dir, prefix)
}
