// Package redact scrubs credentials from project text before it is sent to
// a model backend.
package redact

import (
	"regexp"

	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// Mask replaces every secret match.
const Mask = "[REDACTED]"

var patterns []*regexp.Regexp

func init() {
	raw := []string{
		// Private key blocks
		`-----BEGIN [A-Z ]+PRIVATE KEY-----[\s\S]*?-----END [A-Z ]+PRIVATE KEY-----`,
		// JWTs (Supabase anon/service keys, session tokens)
		`eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+`,
		// OpenAI / Anthropic style keys
		`sk-(ant-)?[A-Za-z0-9_-]{16,}`,
		// Stripe keys
		`(sk|pk|rk)_(live|test)_[A-Za-z0-9]{16,}`,
		// GitHub tokens
		`gh[pousr]_[A-Za-z0-9]{20,}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// Bearer tokens
		`Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		// key/secret/token/password assignments in code or env files
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|client[_-]?secret|access[_-]?token|token|password|passwd)\s*[:=]\s*["'\x60]?[^\s"'\x60,;]+`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces secret patterns in text with Mask.
func Redact(text string) string {
	out, _ := Count(text)
	return out
}

// Count redacts text and reports how many matches were replaced.
func Count(text string) (string, int) {
	n := 0
	for _, p := range patterns {
		text = p.ReplaceAllStringFunc(text, func(string) string {
			n++
			return Mask
		})
	}
	return text, n
}

// Files returns a redacted copy of files and the total number of matches.
func Files(files []vfs.File) ([]vfs.File, int) {
	out := make([]vfs.File, len(files))
	total := 0
	for i, f := range files {
		content, n := Count(f.Content)
		out[i] = vfs.File{Path: f.Path, Content: content}
		total += n
	}
	return out, total
}
