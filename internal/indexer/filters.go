package indexer

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

func isHiddenDir(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isHiddenRelPath(relPath string) bool {
	return strings.HasPrefix(relPath, ".")
}

// matchesInclude reports whether relPath matches any of the doublestar
// patterns. Paths are matched with forward slashes on every OS.
func matchesInclude(patterns []string, relPath string) bool {
	p := filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
