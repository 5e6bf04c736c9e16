package pagemodules

import "strings"

// NormalizeCSSClasses treats css classes as an ordered set: entries are
// trimmed, empty ones dropped, and duplicates removed keeping the first
// occurrence. The result is never nil.
func NormalizeCSSClasses(classes []string) []string {
	out := make([]string, 0, len(classes))
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
