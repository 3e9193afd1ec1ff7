package ingest

import (
	"path/filepath"
	"strings"
)

// DefaultIgnore lists names that are never recorded.
var DefaultIgnore = []string{".git"}

// Matcher decides which paths the watcher skips. A pattern matches when it
// matches any path component or the whole root-relative path.
type Matcher struct {
	root     string
	exact    map[string]struct{}
	patterns []string
}

// NewMatcher builds a matcher for paths under root. exact holds absolute
// paths that are always skipped, such as the persisted work log.
func NewMatcher(root string, patterns []string, exact ...string) *Matcher {
	m := &Matcher{
		root:     filepath.Clean(root),
		exact:    make(map[string]struct{}, len(exact)),
		patterns: append(append([]string(nil), DefaultIgnore...), patterns...),
	}
	for _, p := range exact {
		m.exact[filepath.Clean(p)] = struct{}{}
	}
	return m
}

// Ignored reports whether path should not produce activity records.
func (m *Matcher) Ignored(path string) bool {
	path = filepath.Clean(path)
	if _, ok := m.exact[path]; ok {
		return true
	}

	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}

	components := strings.Split(rel, string(filepath.Separator))
	for _, pattern := range m.patterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		for _, component := range components {
			if ok, _ := filepath.Match(pattern, component); ok {
				return true
			}
		}
	}
	return false
}
