package schema

import "strings"

// elisionPhrases are fragments a model writes when it skips part of a file.
var elisionPhrases = []string{
	"rest unchanged",
	"rest of the code",
	"rest of the file",
	"existing code",
	"remains unchanged",
	"same as before",
	"unchanged code",
	"previous code",
}

var commentOpeners = []string{"//", "/*", "{/*", "<!--", "#"}

// FindElision returns the first elision marker found in content, or "".
// A marker is either a comment line carrying one of elisionPhrases or a
// line consisting only of an ellipsis.
func FindElision(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "..." || trimmed == "…" {
			return trimmed
		}
		if !isComment(trimmed) {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, phrase := range elisionPhrases {
			if strings.Contains(lower, phrase) {
				return trimmed
			}
		}
	}
	return ""
}

func isComment(line string) bool {
	for _, p := range commentOpeners {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
