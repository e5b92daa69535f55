package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/bleue740/huggy-code-haven-sub000/internal/config"
	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

const (
	helloPlan   = `{"intent":"greeting","risk_level":"low","conversational":true,"reply":"Hello!","steps":[]}`
	formPlan    = `{"intent":"Add a contact form","risk_level":"low","conversational":false,"steps":[{"id":1,"action":"create","target":"ContactForm","description":"Contact form"},{"id":2,"action":"delete","target":"Legacy","description":"unused"}]}`
	formFiles   = `{"files":[{"path":"ContactForm","content":"export function ContactForm() {\n  return <form />;\n}"}]}`
	cleanResult = `{"errors":[],"warnings":[]}`
	warnResult  = `{"errors":[],"warnings":[{"type":"security","file":"ContactForm","message":"form posts over http"}]}`
)

// --- Pure function tests ---

func TestExitError(t *testing.T) {
	err := exitError(4, "model %s failed", "x")
	var ee *exitErr
	if !errors.As(err, &ee) {
		t.Fatal("expected *exitErr")
	}
	if ee.code != 4 || ee.Error() != "model x failed" {
		t.Errorf("got code %d msg %q", ee.code, ee.msg)
	}
}

func TestTurnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"bad request", orchestrator.ErrBadRequest, exitInput},
		{"cancelled", orchestrator.ErrCancelled, exitTurnFailed},
		{"credit", credit.ErrInsufficientCredit, exitTurnFailed},
		{"malformed", llm.Malformed("{}", errors.New("missing intent")), exitMalformed},
		{"call", &llm.AgentCallFailed{Provider: "openai", Err: errors.New("timeout")}, exitProvider},
		{"other", errors.New("boom"), exitTurnFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ee *exitErr
			if !errors.As(turnError(tt.err), &ee) {
				t.Fatal("expected *exitErr")
			}
			if ee.code != tt.code {
				t.Errorf("code = %d, want %d", ee.code, tt.code)
			}
		})
	}
}

func TestAssistantSummary(t *testing.T) {
	got := assistantSummary(&events.Result{
		Intent:       "form",
		Files:        []vfs.File{{Path: "A"}, {Path: "B"}},
		DeletedFiles: []string{"C"},
	})
	if got != "form: updated A, B; deleted C" {
		t.Errorf("summary = %q", got)
	}
	if got := assistantSummary(&events.Result{Conversational: true, Reply: "hi"}); got != "hi" {
		t.Errorf("conversational summary = %q", got)
	}
}

// --- runGenerate integration tests via ScriptedProvider ---

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	cfg.User = "tester"
	cfg.Project = filepath.Join(t.TempDir(), "app", "project.json")
	return cfg
}

func writeProject(t *testing.T, path string, files ...vfs.File) {
	t.Helper()
	if err := ensureDir(path); err != nil {
		t.Fatal(err)
	}
	if err := vfs.SaveFile(vfs.FromFiles(files), path); err != nil {
		t.Fatal(err)
	}
}

func newFlags(replies ...llm.Reply) (*generateFlags, *bytes.Buffer, *credit.MemoryLedger) {
	out := &bytes.Buffer{}
	ledger := credit.NewMemoryLedger(map[string]int{"tester": 5})
	return &generateFlags{
		format:   "md",
		provider: llm.NewScripted(replies...),
		ledger:   ledger,
		stdout:   out,
		stderr:   &bytes.Buffer{},
	}, out, ledger
}

func TestRunGenerateHappyPath(t *testing.T) {
	cfg := testConfig(t)
	writeProject(t, cfg.Project, vfs.File{Path: "Legacy", Content: "function Legacy() {}\n"})
	f, out, ledger := newFlags(llm.Reply{Text: formPlan}, llm.Reply{Text: formFiles}, llm.Reply{Text: cleanResult})
	f.diffOut = filepath.Join(t.TempDir(), "turn.diff")

	if err := runGenerate(context.Background(), cfg, "add a contact form", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out.String(), "# Turn Result") || !strings.Contains(out.String(), "`ContactForm` (new,") {
		t.Errorf("unexpected output:\n%s", out)
	}

	saved, err := vfs.LoadFile(cfg.Project)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := saved.Read("ContactForm"); !ok {
		t.Error("ContactForm not saved")
	}
	if _, ok := saved.Read("Legacy"); ok {
		t.Error("Legacy should be deleted")
	}

	diff, err := os.ReadFile(f.diffOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diff), "+++ b/ContactForm") || !strings.Contains(string(diff), "--- a/Legacy") {
		t.Errorf("diff missing changes:\n%s", diff)
	}

	if ledger.Deductions("tester") != 1 {
		t.Errorf("deductions = %d, want 1", ledger.Deductions("tester"))
	}
}

func TestRunGenerateConversationalLeavesProject(t *testing.T) {
	cfg := testConfig(t)
	f, out, _ := newFlags(llm.Reply{Text: helloPlan})

	if err := runGenerate(context.Background(), cfg, "hi", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Hello!") {
		t.Errorf("reply missing from output:\n%s", out)
	}
	if _, err := os.Stat(cfg.Project); err == nil {
		t.Error("a conversational turn must not create the project file")
	}
}

func TestRunGenerateDryRun(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Text: formPlan}, llm.Reply{Text: formFiles}, llm.Reply{Text: cleanResult})
	f.dryRun = true

	if err := runGenerate(context.Background(), cfg, "add a contact form", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(cfg.Project); err == nil {
		t.Error("--dry-run must not write the project")
	}
}

func TestRunGenerateJSON(t *testing.T) {
	cfg := testConfig(t)
	f, out, _ := newFlags(llm.Reply{Text: formPlan}, llm.Reply{Text: formFiles}, llm.Reply{Text: cleanResult})
	f.format = "json"

	if err := runGenerate(context.Background(), cfg, "add a contact form", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res events.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Intent != "Add a contact form" || len(res.Files) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunGenerateNDJSON(t *testing.T) {
	cfg := testConfig(t)
	f, out, _ := newFlags(llm.Reply{Text: helloPlan})
	f.format = "ndjson"

	if err := runGenerate(context.Background(), cfg, "hi", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var types []events.Type
	err := events.ReadNDJSON(out, func(e events.Event) error {
		types = append(types, e.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadNDJSON: %v", err)
	}
	if len(types) == 0 || types[len(types)-1] != events.TypeDone {
		t.Errorf("stream must end with the sentinel, got %v", types)
	}
}

func TestRunGenerateHistory(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Text: helloPlan}, llm.Reply{Text: helloPlan})
	f.historyPath = filepath.Join(t.TempDir(), "history.json")

	for _, msg := range []string{"hi", "hello again"} {
		if err := runGenerate(context.Background(), cfg, msg, f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	h, err := loadHistory(f.historyPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 4 || h[2].Content != "hello again" || h[3].Role != "assistant" {
		t.Errorf("history = %+v", h)
	}

	sp := f.provider.(*llm.ScriptedProvider)
	if !strings.Contains(sp.Requests[1].Messages[0].Content, "Hello!") {
		t.Error("second turn should carry the first reply as history")
	}
}

func TestRunGenerateInsufficientCredit(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Text: helloPlan})
	f.ledger = credit.NewMemoryLedger(nil)

	err := runGenerate(context.Background(), cfg, "build a shop", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitTurnFailed {
		t.Fatalf("expected exit %d, got %v", exitTurnFailed, err)
	}
	if f.provider.(*llm.ScriptedProvider).Calls() != 0 {
		t.Error("no model call may happen without credit")
	}
}

func TestRunGenerateMalformedPlan(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Text: "this is not json at all"})

	err := runGenerate(context.Background(), cfg, "build a shop", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitMalformed {
		t.Fatalf("expected exit %d, got %v", exitMalformed, err)
	}
}

func TestRunGenerateProviderError(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Err: &llm.AgentCallFailed{Provider: "scripted", Err: errors.New("model exploded")}})

	err := runGenerate(context.Background(), cfg, "build a shop", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitProvider {
		t.Fatalf("expected exit %d, got %v", exitProvider, err)
	}
}

func TestRunGenerateFailOnWarnings(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags(llm.Reply{Text: formPlan}, llm.Reply{Text: formFiles}, llm.Reply{Text: warnResult})
	f.failOnWarnings = true

	err := runGenerate(context.Background(), cfg, "add a contact form", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitTurnFailed {
		t.Fatalf("expected exit %d, got %v", exitTurnFailed, err)
	}
	if _, err := vfs.LoadFile(cfg.Project); err != nil {
		t.Fatal(err)
	}
}

func TestRunGenerateUnknownFormat(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags()
	f.format = "xml"

	err := runGenerate(context.Background(), cfg, "hi", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitInput {
		t.Fatalf("expected exit %d, got %v", exitInput, err)
	}
}

func TestRunGenerateBadTier(t *testing.T) {
	cfg := testConfig(t)
	f, _, _ := newFlags()
	f.tier = "huge"

	err := runGenerate(context.Background(), cfg, "hi", f)
	var ee *exitErr
	if !errors.As(err, &ee) || ee.code != exitInput {
		t.Fatalf("expected exit %d, got %v", exitInput, err)
	}
}

func TestRunGenerateOutFile(t *testing.T) {
	cfg := testConfig(t)
	f, out, _ := newFlags(llm.Reply{Text: helloPlan})
	f.out = filepath.Join(t.TempDir(), "reply.md")

	if err := runGenerate(context.Background(), cfg, "hi", f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout should be empty when --out is set, got %q", out)
	}
	data, err := os.ReadFile(f.out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Hello!") {
		t.Errorf("out file = %q", data)
	}
}
