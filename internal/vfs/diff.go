package vfs

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats counts line-level changes between two versions of a file.
type Stats struct {
	Added   int
	Removed int
}

// DiffStats compares two file bodies line by line.
func DiffStats(before, after string) Stats {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var st Stats
	for _, d := range diffs {
		n := lineCount(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			st.Added += n
		case diffmatchpatch.DiffDelete:
			st.Removed += n
		}
	}
	return st
}

// UnifiedPatch renders the change from before to after as a diffmatchpatch
// text patch with the given path as header.
func UnifiedPatch(path, before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before, after)
	var b strings.Builder
	b.WriteString("--- a/" + path + "\n")
	b.WriteString("+++ b/" + path + "\n")
	b.WriteString(dmp.PatchToText(patches))
	return b.String()
}

// LineCount returns the number of lines in content, counting a trailing
// partial line.
func LineCount(content string) int {
	return lineCount(content)
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
