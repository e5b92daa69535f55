// Package snapshot builds the size-capped text views of a project that are
// sent with a turn request: the file tree and the project context.
package snapshot

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/bleue740/huggy-code-haven-sub000/internal/redact"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

const (
	DefaultMaxContextBytes = 24000
	DefaultMaxFileBytes    = 8000

	truncatedMarker = "\n[truncated]\n"
)

// Options caps snapshot sizes.
type Options struct {
	MaxContextBytes int
	MaxFileBytes    int
	Redact          bool
}

func (o Options) withDefaults() Options {
	if o.MaxContextBytes <= 0 {
		o.MaxContextBytes = DefaultMaxContextBytes
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	return o
}

// Snapshot is the text view of a project for one turn.
type Snapshot struct {
	FileTree       string
	ProjectContext string
	Hash           string
	Truncated      bool
	Redactions     int
}

// Build renders the store's file tree and a capped project context. Files
// are emitted in ListPaths order, so the entry file comes last and is the
// first to lose content when the context cap is reached.
func Build(s *vfs.Store, opts Options) Snapshot {
	opts = opts.withDefaults()
	files := s.Files()

	snap := Snapshot{
		FileTree: FileTree(s.ListPaths()),
		Hash:     s.Hash(),
	}
	if opts.Redact {
		files, snap.Redactions = redact.Files(files)
	}

	var b strings.Builder
	for _, f := range files {
		content, cut := Cap(f.Content, opts.MaxFileBytes)
		snap.Truncated = snap.Truncated || cut
		block := fmt.Sprintf("// ---- %s ----\n%s", f.Path, content)
		if !strings.HasSuffix(block, "\n") {
			block += "\n"
		}
		if b.Len()+len(block) > opts.MaxContextBytes {
			remaining := opts.MaxContextBytes - b.Len()
			if remaining > 0 {
				partial, _ := Cap(block, remaining)
				b.WriteString(partial)
			}
			snap.Truncated = true
			break
		}
		b.WriteString(block)
	}
	snap.ProjectContext = b.String()
	return snap
}

// FileTree renders one path per line.
func FileTree(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return strings.Join(paths, "\n") + "\n"
}

// ParseFileTree is the inverse of FileTree. Blank lines and surrounding
// whitespace are ignored, as are common tree-drawing prefixes.
func ParseFileTree(tree string) []string {
	var out []string
	for _, line := range strings.Split(tree, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*├└│─ ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Cap truncates text to at most max bytes, cutting at a line boundary when
// one exists and appending a truncation marker. It reports whether text was cut.
func Cap(text string, max int) (string, bool) {
	if max <= 0 || len(text) <= max {
		return text, false
	}
	limit := max - len(truncatedMarker)
	if limit <= 0 {
		return "", true
	}
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	// Never split a UTF-8 sequence.
	for len(cut) > 0 {
		if r, size := utf8.DecodeLastRuneInString(cut); r == utf8.RuneError && size <= 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	return cut + truncatedMarker, true
}

// LoadText reads a text file to be used as extra context and returns its
// content with a sha256 digest.
func LoadText(path string) (content, hash string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("snapshot.LoadText: %w", err)
	}
	h := sha256.Sum256(data)
	return string(data), fmt.Sprintf("sha256:%x", h), nil
}
