package render

import (
	"strings"
	"testing"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

func sampleResult() *events.Result {
	return &events.Result{
		Intent: "add a counter",
		Files: []vfs.File{
			{Path: "App", Content: "function App() {\n  return <Counter />;\n}\n"},
			{Path: "Counter", Content: "function Counter() {\n  return <button />;\n}\n"},
		},
		DeletedFiles: []string{"Legacy"},
		Warnings: []validation.Finding{
			{Type: validation.KindSecurity, File: "Counter", Message: "uses innerHTML"},
			{Type: validation.KindRuntime, File: "App", Message: validation.UnresolvedPrefix + "undefined prop"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	before := vfs.FromFiles([]vfs.File{
		{Path: "App", Content: "function App() {\n  return null;\n}\n"},
		{Path: "Legacy", Content: "old\n"},
	})
	md := Markdown(sampleResult(), before)

	checks := []string{
		"# Turn Result",
		"**Intent:** add a counter",
		"**Files:** 2 written, 1 deleted",
		"**Findings:** 1 errors, 1 warnings",
		"## Files",
		"`App` (modified, +1 -1)",
		"`Counter` (new, +3 -0)",
		"## Deleted",
		"`Legacy`",
		"## Findings",
		"uses innerHTML",
	}
	for _, want := range checks {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestMarkdownConversational(t *testing.T) {
	md := Markdown(&events.Result{Conversational: true, Reply: " Hello! "}, nil)
	if md != "# Reply\n\nHello!\n" {
		t.Errorf("unexpected reply rendering: %q", md)
	}
}

func TestMarkdownNilBefore(t *testing.T) {
	md := Markdown(sampleResult(), nil)
	if !strings.Contains(md, "`App` (new,") {
		t.Errorf("expected files to be new without a prior project:\n%s", md)
	}
}

func TestPlan(t *testing.T) {
	p := &plan.Plan{
		Intent:    "todo app",
		RiskLevel: plan.RiskLow,
		Steps: []plan.Step{
			{ID: 1, Action: plan.ActionCreate, Target: "TodoList", Description: "list component"},
			{ID: 2, Action: plan.ActionModify, Target: "App", Description: "mount list"},
		},
	}
	out := Plan(p)
	for _, want := range []string{"## Plan: todo app [low risk]", "1. **create** `TodoList`", "2. **modify** `App`"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q\n%s", want, out)
		}
	}

	if !strings.Contains(Plan(&plan.Plan{Intent: "x", RiskLevel: plan.RiskHigh}), "No steps.") {
		t.Error("expected 'No steps.' for an empty plan")
	}
}

func TestValidation(t *testing.T) {
	if got := Validation(&validation.Result{}); got != "No findings.\n" {
		t.Errorf("empty report = %q", got)
	}
	out := Validation(&validation.Result{
		Errors: []validation.Finding{{Type: validation.KindSyntax, File: "App", Message: "unexpected token"}},
	})
	if !strings.Contains(out, "### Errors") || strings.Contains(out, "### Warnings") {
		t.Errorf("unexpected sections:\n%s", out)
	}
	if !strings.Contains(out, "unexpected token") {
		t.Errorf("missing finding:\n%s", out)
	}
}
