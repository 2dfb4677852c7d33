// Package pathutil provides request path matching helpers shared by
// middleware implementations.
package pathutil

import "strings"

// NewPathMatcher returns a predicate reporting whether a request path is in
// the skip list. Exact paths are matched via a set lookup, prefixes linearly.
func NewPathMatcher(paths, prefixes []string) func(string) bool {
	if len(paths) == 0 && len(prefixes) == 0 {
		return func(string) bool { return false }
	}

	exact := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		exact[p] = struct{}{}
	}

	return func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}
}
