package discovery

import (
	"fmt"
	"os"
	"path/filepath"
)

var defaultPatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.JPG", "*.JPEG", "*.PNG"}

// DefaultPatterns returns a copy of the glob patterns used when none are configured.
func DefaultPatterns() []string {
	out := make([]string, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// Enumerate expands each pattern inside dir independently and concatenates the
// matches in pattern order. Matching is case-sensitive and results are not
// deduplicated, so a file reachable through two patterns on a case-insensitive
// filesystem is listed twice.
func Enumerate(dir string, patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			paths = append(paths, m)
		}
	}
	return paths, nil
}
