package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern maps dynamic paths to a metrics label template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/notifications/\d+/read$`), Template: "/notifications/:id/read"},
	{Pattern: regexp.MustCompile(`^/notifications/\d+$`), Template: "/notifications/:id"},
}

// staticPaths are served as-is. Anything else is reported as "/other" so
// scanners probing random URLs cannot grow label cardinality.
var staticPaths = map[string]struct{}{
	"/":                  {},
	"/health":            {},
	"/health/live":       {},
	"/health/ready":      {},
	"/health/channels":   {},
	"/metrics":           {},
	"/stats":             {},
	"/webhooks/whatsapp": {},
}

// OtherPath is the label for unrecognised paths.
const OtherPath = "/other"

// NormalizePath converts a request path to a bounded metrics label.
//
//	NormalizePath("/notifications/42/read")  // "/notifications/:id/read"
//	NormalizePath("/health/")                // "/health"
//	NormalizePath("/stats?from=2026-09-01")  // "/stats"
//	NormalizePath("/wp-admin")               // "/other"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	if _, ok := staticPaths[path]; ok {
		return path
	}
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return OtherPath
}

// GetExpectedCardinality returns the number of distinct labels NormalizePath
// can produce.
func GetExpectedCardinality() int {
	return len(staticPaths) + len(pathPatterns) + 1
}
