// Package render produces Markdown output from a turn result.
package render

import (
	"fmt"
	"strings"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// Markdown renders a turn result as a Markdown report. before is the project
// as it was when the turn started and is used for per-file change counts; it
// may be nil.
func Markdown(res *events.Result, before *vfs.Store) string {
	var b strings.Builder

	if res.Conversational {
		b.WriteString("# Reply\n\n")
		b.WriteString(strings.TrimSpace(res.Reply))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("# Turn Result\n\n")
	if res.Intent != "" {
		fmt.Fprintf(&b, "**Intent:** %s\n", res.Intent)
	}
	fmt.Fprintf(&b, "**Files:** %d written, %d deleted\n", len(res.Files), len(res.DeletedFiles))
	errs, warns := countFindings(res.Warnings)
	fmt.Fprintf(&b, "**Findings:** %d errors, %d warnings\n\n", errs, warns)

	if len(res.Files) > 0 {
		b.WriteString("## Files\n\n")
		for _, f := range res.Files {
			renderFile(&b, f, before)
		}
		b.WriteString("\n")
	}

	if len(res.DeletedFiles) > 0 {
		b.WriteString("## Deleted\n\n")
		for _, p := range res.DeletedFiles {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	if len(res.Warnings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range res.Warnings {
			fmt.Fprintf(&b, "- **%s** `%s`: %s\n", f.Type, f.File, f.Message)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// Plan renders a plan as a numbered checklist.
func Plan(p *plan.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Plan: %s [%s risk]\n\n", p.Intent, p.RiskLevel)
	if len(p.Steps) == 0 {
		b.WriteString("No steps.\n")
		return b.String()
	}
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "%d. **%s** `%s`: %s\n", s.ID, s.Action, s.Target, s.Description)
	}
	return b.String()
}

// Validation renders a validation report.
func Validation(r *validation.Result) string {
	var b strings.Builder
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}
	section(&b, "Errors", r.Errors)
	section(&b, "Warnings", r.Warnings)
	return b.String()
}

func section(b *strings.Builder, title string, fs []validation.Finding) {
	if len(fs) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	for _, f := range fs {
		fmt.Fprintf(b, "- %s\n", f.String())
	}
	b.WriteString("\n")
}

func renderFile(b *strings.Builder, f vfs.File, before *vfs.Store) {
	old, existed := "", false
	if before != nil {
		old, existed = before.Read(f.Path)
	}
	st := vfs.DiffStats(old, f.Content)
	tag := "new"
	if existed {
		tag = "modified"
	}
	fmt.Fprintf(b, "- `%s` (%s, +%d -%d)\n", f.Path, tag, st.Added, st.Removed)
}

// countFindings splits result findings by whether they came from an
// unresolved error or a plain warning.
func countFindings(fs []validation.Finding) (errs, warns int) {
	for _, f := range fs {
		if strings.HasPrefix(f.Message, validation.UnresolvedPrefix) {
			errs++
			continue
		}
		warns++
	}
	return errs, warns
}
