package watcher

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnoreSet matches paths against gitignore-style patterns:
//
//	node_modules   any path component named node_modules
//	*.map          any component matching the glob
//	dist/          directories only
//	/build         only at the root
//	src/gen/*.js   a root-relative path glob
//	!keep.map      re-include a previously ignored path
//
// Later patterns override earlier ones.
type IgnoreSet struct {
	rules []ignoreRule
}

type ignoreRule struct {
	pattern string
	negate  bool
	dirOnly bool
	rooted  bool
}

// NewIgnoreSet creates a matcher for patterns. Blank lines and comments
// are skipped.
func NewIgnoreSet(patterns ...string) *IgnoreSet {
	set := &IgnoreSet{}
	for _, p := range patterns {
		set.Add(p)
	}
	return set
}

// Add appends a pattern.
func (s *IgnoreSet) Add(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	var r ignoreRule
	if strings.HasPrefix(pattern, "!") {
		r.negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.rooted = true
		pattern = pattern[1:]
	}
	if strings.Contains(pattern, "/") {
		r.rooted = true
	}
	if pattern == "" {
		return
	}
	r.pattern = pattern
	s.rules = append(s.rules, r)
}

// Len returns the number of patterns.
func (s *IgnoreSet) Len() int {
	return len(s.rules)
}

// Match reports whether rel, a path relative to the watched root, is ignored.
// isDir says whether rel itself is a directory.
func (s *IgnoreSet) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	parts := strings.Split(rel, "/")

	ignored := false
	for _, r := range s.rules {
		if r.matches(rel, parts, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r ignoreRule) matches(rel string, parts []string, isDir bool) bool {
	// Components that are directories: all but the last, plus the last if isDir.
	dirs := len(parts) - 1
	if isDir {
		dirs = len(parts)
	}

	if r.rooted {
		segs := strings.Count(r.pattern, "/") + 1
		if segs > len(parts) {
			return false
		}
		if segs == len(parts) && r.dirOnly && !isDir {
			return false
		}
		ok, _ := path.Match(r.pattern, strings.Join(parts[:segs], "/"))
		return ok
	}

	for i, part := range parts {
		if r.dirOnly && i >= dirs {
			break
		}
		if ok, _ := path.Match(r.pattern, part); ok {
			return true
		}
	}
	return false
}
