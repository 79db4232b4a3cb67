package permissions

import "strings"

// NormalizePath strips query and fragment, ensures a leading slash and drops trailing
// slashes.
func NormalizePath(raw string) string {
	p := strings.TrimSpace(raw)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// IsPattern reports whether path has at least one bracketed segment such as {id} or [id].
func IsPattern(path string) bool {
	for _, seg := range segments(path) {
		if isWildcard(seg) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether path matches pattern segment by segment. A bracketed
// segment matches exactly one non-empty segment; every other segment must be equal.
// The second result is the number of wildcard segments in pattern.
func MatchPattern(pattern, path string) (bool, int) {
	pat := segments(NormalizePath(pattern))
	got := segments(NormalizePath(path))
	if len(pat) != len(got) {
		return false, 0
	}
	wildcards := 0
	for i, seg := range pat {
		if isWildcard(seg) {
			if got[i] == "" {
				return false, 0
			}
			wildcards++
			continue
		}
		if seg != got[i] {
			return false, 0
		}
	}
	return true, wildcards
}

func isWildcard(seg string) bool {
	if len(seg) < 2 {
		return false
	}
	first, last := seg[0], seg[len(seg)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}

func segments(path string) []string {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
