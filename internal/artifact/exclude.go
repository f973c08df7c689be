package artifact

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Compiled set of exclude patterns.
type excluder struct {
	paths      []glob.Glob // Patterns containing a slash, matched against path prefixes.
	components []glob.Glob // Patterns without a slash, matched against single components.
}

// Compiles exclude patterns.
//
// Leading "/" and "./" and trailing "/" are ignored, so "/usr/share/doc/"
// and "usr/share/doc" are equivalent.
func newExcluder(patterns []string) (*excluder, error) {
	ex := &excluder{}
	for _, p := range patterns {
		norm := normalizePattern(p)
		if norm == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
		g, err := glob.Compile(norm, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, p, err)
		}
		if strings.Contains(norm, "/") {
			ex.paths = append(ex.paths, g)
		} else {
			ex.components = append(ex.components, g)
		}
	}
	return ex, nil
}

// Reports whether a relative path or any of its parents is excluded.
func (ex *excluder) match(path string) bool {
	if ex == nil {
		return false
	}
	for _, c := range strings.Split(path, "/") {
		for _, g := range ex.components {
			if g.Match(c) {
				return true
			}
		}
	}
	for prefix := path; prefix != ""; prefix = parent(prefix) {
		for _, g := range ex.paths {
			if g.Match(prefix) {
				return true
			}
		}
	}
	return false
}

// Returns the parent of a relative path, or "" at the top level.
func parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			return strings.TrimRight(p, "/")
		}
	}
}
