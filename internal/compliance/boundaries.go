// Package compliance derives pass/fail reports over intents, evidence,
// changelog, and claims. It is read-only: nothing in this package writes.
package compliance

import (
	"strings"
)

// ParseBoundaries extracts file patterns from a freeform boundaries string.
// Segments are split on commas, semicolons, and newlines. A segment that
// already looks like a path or glob is taken as-is; otherwise path-like
// tokens are pulled out of the surrounding prose, so "do not touch
// internal/auth/ or vendor/*" yields ["internal/auth/", "vendor/*"].
func ParseBoundaries(boundaries string) []string {
	if strings.TrimSpace(boundaries) == "" {
		return nil
	}

	splitter := func(r rune) bool { return r == ',' || r == ';' || r == '\n' }

	var patterns []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}

	for _, segment := range strings.FieldsFunc(boundaries, splitter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if !strings.ContainsAny(segment, " \t") && isPathLike(segment) {
			add(trimToken(segment))
			continue
		}
		for _, word := range strings.Fields(segment) {
			word = trimToken(word)
			if isPathLike(word) {
				add(word)
			}
		}
	}
	return patterns
}

// trimToken strips quoting and trailing punctuation that prose attaches to
// path tokens.
func trimToken(s string) string {
	s = strings.Trim(s, "\"'`()[]{}")
	return strings.TrimRight(s, ".:!?")
}

// isPathLike reports whether a token plausibly names a file, directory, or
// glob pattern rather than an ordinary word.
func isPathLike(token string) bool {
	if token == "" || token == "." || token == ".." || token == "/" {
		return false
	}
	if strings.Contains(token, "/") || strings.Contains(token, "*") {
		return true
	}
	// A bare filename like "config.yaml": a dot with a short alpha suffix.
	if idx := strings.LastIndex(token, "."); idx > 0 && idx < len(token)-1 {
		ext := token[idx+1:]
		if len(ext) <= 5 && isAlpha(ext) {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

// MatchBoundary reports whether a file path matches a boundary pattern.
// Matching is exact equality, a '*' glob (the wildcard spans separators),
// or a directory prefix: "src/core/" and "src/core" both match anything
// beneath src/core.
func MatchBoundary(file, pattern string) bool {
	if file == pattern {
		return true
	}
	if strings.Contains(pattern, "*") {
		return globMatch(file, pattern)
	}
	dir := strings.TrimSuffix(pattern, "/")
	if dir != "" && strings.HasPrefix(file, dir+"/") {
		return true
	}
	return false
}

// globMatch matches s against a pattern where '*' spans any run of
// characters including '/'.
func globMatch(s, pattern string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := len(parts) - 1
	for i := 1; i < last; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[last])
}

// Violations returns the modified files that hit any boundary pattern,
// in input order.
func Violations(modified []string, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	var out []string
	for _, f := range modified {
		for _, p := range patterns {
			if MatchBoundary(f, p) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
