// Package approval decides whether an assistant reply presents a final plan
// and asks the user to confirm it.
package approval

import "strings"

// Phrases are the readiness phrases, matched case-insensitively as substrings.
var Phrases = []string{
	"look good",
	"does this work",
	"shall i create",
	"ready to build",
}

// Detect reports whether reply contains a readiness phrase.
func Detect(reply string) bool {
	return Match(reply) != ""
}

// Match returns the first readiness phrase found in reply, or "".
func Match(reply string) string {
	lower := strings.ToLower(reply)
	for _, p := range Phrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
