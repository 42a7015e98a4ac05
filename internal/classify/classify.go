// Package classify decides whether a browser download looks like a CS2
// demo artifact based on its URL and suggested filename.
package classify

import "strings"

// markers are matched case-insensitively against both the URL and the
// suggested filename. False negatives are acceptable (the user can still
// resolve a demo URL manually); the marker set is kept narrow so false
// positives stay rare.
var markers = []string{
	".dem",
	"demo",
	"replay",
}

// Match reports whether either the URL or the filename contains one of the
// demo markers. Pure string containment, no I/O.
func Match(url, filename string) bool {
	u := strings.ToLower(url)
	f := strings.ToLower(filename)
	for _, m := range markers {
		if strings.Contains(u, m) || strings.Contains(f, m) {
			return true
		}
	}
	return false
}
