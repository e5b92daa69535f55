// Package patch applies turn results to a project and writes unified diffs of
// the change.
package patch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// Apply returns a copy of project with the result's writes and deletes
// applied. project is left untouched. Conversational results return an
// unchanged copy.
func Apply(project *vfs.Store, res *events.Result) (*vfs.Store, error) {
	next := project.Clone()
	if res == nil || res.Conversational {
		return next, nil
	}
	if err := next.ApplyPatch(res.Patch()); err != nil {
		return nil, fmt.Errorf("patch.Apply: %w", err)
	}
	return next, nil
}

// Diff renders every changed path between before and after as a unified
// patch, in path order with App last.
func Diff(before, after *vfs.Store) string {
	var b strings.Builder
	for _, p := range changedPaths(before, after) {
		old, _ := before.Read(p)
		cur, _ := after.Read(p)
		d := vfs.UnifiedPatch(p, old, cur)
		b.WriteString(d)
		if d != "" && !strings.HasSuffix(d, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// WriteDiffFile writes Diff(before, after) to outPath.
// If nothing changed, no file is created.
func WriteDiffFile(before, after *vfs.Store, outPath string) error {
	d := Diff(before, after)
	if d == "" {
		return nil
	}
	if err := os.WriteFile(outPath, []byte(d), 0644); err != nil {
		return fmt.Errorf("patch.WriteDiffFile: %w", err)
	}
	return nil
}

func changedPaths(before, after *vfs.Store) []string {
	seen := make(map[string]bool)
	var out, app []string
	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		old, _ := before.Read(p)
		cur, _ := after.Read(p)
		if old == cur {
			return
		}
		if p == vfs.EntryPath {
			app = append(app, p)
			return
		}
		out = append(out, p)
	}
	for _, p := range before.ListPaths() {
		add(p)
	}
	for _, p := range after.ListPaths() {
		add(p)
	}
	sort.Strings(out)
	return append(out, app...)
}
