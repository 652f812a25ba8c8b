package session

import (
	"regexp"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	repeatedUnders  = regexp.MustCompile(`_+`)
)

// Sanitize turns a raw destination (server address or world name) into a
// lower-case, filesystem-safe directory name. The result only contains
// [a-z0-9.-_] and never two consecutive underscores. Whitespace is an unsafe
// character like any other, so "  a " becomes "_a_". Names made only of dots
// would resolve to the root or its parent and become "_".
func Sanitize(raw string) string {
	name := unsafeNameChars.ReplaceAllString(raw, "_")
	name = repeatedUnders.ReplaceAllString(name, "_")
	if name != "" && strings.Trim(name, ".") == "" {
		return "_"
	}
	return strings.ToLower(name)
}
