package schema

import (
	"strings"
	"testing"

	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

func validPlan() *plan.Plan {
	return &plan.Plan{
		Intent:    "Add a counter",
		RiskLevel: plan.RiskLow,
		Steps: []plan.Step{
			{ID: 1, Action: plan.ActionCreate, Target: "Counter", Description: "Counter component"},
			{ID: 2, Action: plan.ActionModify, Target: "App", Description: "Render Counter"},
		},
	}
}

func hasPath(errs []ValidationError, path string) bool {
	for _, e := range errs {
		if e.Path == path {
			return true
		}
	}
	return false
}

func TestValidatePlanValid(t *testing.T) {
	if errs := ValidatePlan(validPlan()); len(errs) > 0 {
		for _, e := range errs {
			t.Errorf("unexpected error: %s", e)
		}
	}
}

func TestValidatePlanEmptyStepsIsValid(t *testing.T) {
	p := &plan.Plan{Intent: "unclear", RiskLevel: plan.RiskLow}
	if errs := ValidatePlan(p); len(errs) > 0 {
		t.Errorf("empty non-conversational plan should be valid, got %v", errs)
	}
}

func TestValidatePlanInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*plan.Plan)
		path   string
	}{
		{"bad risk", func(p *plan.Plan) { p.RiskLevel = "extreme" }, "risk_level"},
		{"id gap", func(p *plan.Plan) { p.Steps[1].ID = 3 }, "steps[1].id"},
		{"bad action", func(p *plan.Plan) { p.Steps[0].Action = "rename" }, "steps[0].action"},
		{"no target", func(p *plan.Plan) { p.Steps[0].Target = " " }, "steps[0].target"},
		{"no description", func(p *plan.Plan) { p.Steps[1].Description = "" }, "steps[1].description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			if errs := ValidatePlan(p); !hasPath(errs, tt.path) {
				t.Errorf("expected error at %s, got %v", tt.path, errs)
			}
		})
	}
}

func TestValidatePlanConversational(t *testing.T) {
	reply := "Hello! What would you like to build?"
	p := &plan.Plan{Intent: "greeting", RiskLevel: plan.RiskLow, Conversational: true, Reply: &reply}
	if errs := ValidatePlan(p); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	p.Reply = nil
	if errs := ValidatePlan(p); !hasPath(errs, "reply") {
		t.Error("expected reply error")
	}

	p.Reply = &reply
	p.Steps = validPlan().Steps
	if errs := ValidatePlan(p); !hasPath(errs, "steps") {
		t.Error("expected steps error for conversational plan with steps")
	}
}

func TestValidateFiles(t *testing.T) {
	ok := &FileSet{Files: []vfs.File{{Path: "App", Content: "export default function App() {}"}}}
	if errs := ValidateFiles(ok, false); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	if errs := ValidateFiles(&FileSet{}, false); !hasPath(errs, "files") {
		t.Error("expected error for empty file set")
	}
	if errs := ValidateFiles(&FileSet{}, true); len(errs) > 0 {
		t.Errorf("empty file set allowed for fixer, got %v", errs)
	}

	dup := &FileSet{Files: []vfs.File{{Path: "A", Content: "a"}, {Path: "A", Content: "b"}}}
	if errs := ValidateFiles(dup, false); !hasPath(errs, "files[1].path") {
		t.Error("expected duplicate path error")
	}

	blank := &FileSet{Files: []vfs.File{{Path: "", Content: "  "}}}
	errs := ValidateFiles(blank, false)
	if !hasPath(errs, "files[0].path") || !hasPath(errs, "files[0].content") {
		t.Errorf("expected path and content errors, got %v", errs)
	}
}

func TestValidateFilesRejectsUnsafePaths(t *testing.T) {
	for _, path := range []string{"/src/ContactForm.tsx", "../ContactForm", "src/../../x", "a\x00b"} {
		fs := &FileSet{Files: []vfs.File{{Path: path, Content: "export function X() {}"}}}
		if errs := ValidateFiles(fs, false); !hasPath(errs, "files[0].path") {
			t.Errorf("path %q: expected path error, got %v", path, errs)
		}
	}
	ok := &FileSet{Files: []vfs.File{{Path: "components/a..b", Content: "export function X() {}"}}}
	if errs := ValidateFiles(ok, false); len(errs) > 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestValidateFilesElision(t *testing.T) {
	fs := &FileSet{Files: []vfs.File{{
		Path:    "App",
		Content: "function App() {\n  // ... rest unchanged\n}",
	}}}
	errs := ValidateFiles(fs, false)
	if !hasPath(errs, "files[0].content") {
		t.Fatalf("expected elision error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, "rest unchanged") {
		t.Errorf("expected marker in message, got %q", errs[0].Message)
	}
}

func TestFindElision(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"const a = 1;", false},
		{"// existing code here", true},
		{"  /* existing code */", true},
		{"{/* Rest of the file remains unchanged */}", true},
		{"...", true},
		{"const rest = [...items];", false},
		{"const msg = 'existing code';", false},
	}
	for _, tt := range tests {
		got := FindElision(tt.content) != ""
		if got != tt.want {
			t.Errorf("FindElision(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestValidateResult(t *testing.T) {
	r := &validation.Result{
		Errors: []validation.Finding{{Type: validation.KindSyntax, File: "App", Message: "unclosed tag"}},
		Warnings: []validation.Finding{
			{Type: "style", File: "App", Message: "long line"},
			{Type: validation.KindRuntime, File: "", Message: ""},
		},
	}
	errs := ValidateResult(r)
	for _, p := range []string{"warnings[0].type", "warnings[1].file", "warnings[1].message"} {
		if !hasPath(errs, p) {
			t.Errorf("expected error at %s", p)
		}
	}
	if hasPath(errs, "errors[0].type") {
		t.Error("valid error finding flagged")
	}
}

func TestJoin(t *testing.T) {
	if Join(nil) != nil {
		t.Error("expected nil for no violations")
	}
	err := Join([]ValidationError{{"a", "required"}, {"b", "invalid"}})
	if err == nil || !strings.Contains(err.Error(), "a: required") || !strings.Contains(err.Error(), "b: invalid") {
		t.Errorf("unexpected joined error: %v", err)
	}
}
