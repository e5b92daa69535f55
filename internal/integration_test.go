package internal

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/patch"
	"github.com/bleue740/huggy-code-haven-sub000/internal/routing"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// skipUnlessIntegration skips the test unless HAVEN_INTEGRATION=1.
func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("HAVEN_INTEGRATION") != "1" {
		t.Skip("skipping integration test (set HAVEN_INTEGRATION=1 to run)")
	}
}

// newLiveOrchestrator builds an orchestrator against a real backend with no
// credit ledger.
func newLiveOrchestrator(t *testing.T, kind, envKey string) *orchestrator.Orchestrator {
	t.Helper()
	if os.Getenv(envKey) == "" {
		t.Skipf("%s not set", envKey)
	}
	provider, err := llm.ResolveProvider(llm.Options{Kind: kind})
	if err != nil {
		t.Fatalf("resolve provider: %v", err)
	}
	prof, err := routing.LoadBuiltin(routing.DefaultProfile)
	if err != nil {
		t.Fatal(err)
	}
	router, err := routing.NewRouter(prof, routing.Override{Force: "fast", Provider: provider.Name()})
	if err != nil {
		t.Fatal(err)
	}
	agent := &llm.Agent{Provider: provider, Temperature: 0.2, MaxTokens: 8192}
	return orchestrator.New(agent, nil, orchestrator.Options{Router: router})
}

func liveTurn(t *testing.T, orch *orchestrator.Orchestrator, project *vfs.Store, message string) (*events.Result, *events.Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	snap := snapshot.Build(project, snapshot.Options{Redact: true})
	var rec events.Recorder
	res, err := orch.Run(ctx, "integration", orchestrator.TurnRequest{
		Messages:       []llm.Message{{Role: "user", Content: message}},
		ProjectContext: snap.ProjectContext,
		FileTree:       snap.FileTree,
	}, &rec)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	types := rec.Types()
	if len(types) == 0 || types[len(types)-1] != events.TypeDone {
		t.Fatalf("stream did not end with the sentinel: %v", types)
	}
	t.Logf("Phases: %v | Files: %d | Warnings: %d", rec.Phases(), len(res.Files), len(res.Warnings))
	return res, &rec
}

func assertGenerated(t *testing.T, project *vfs.Store, res *events.Result) {
	t.Helper()
	if res.Conversational {
		t.Fatalf("expected a generation turn, got reply %q", res.Reply)
	}
	if len(res.Files) == 0 {
		t.Fatal("expected at least one generated file")
	}
	next, err := patch.Apply(project, res)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	app, _ := next.Read(vfs.EntryPath)
	if !strings.Contains(app, "App") {
		t.Errorf("entry file lost its App component:\n%s", app)
	}
}

// ---------- Per-provider tests ----------

func TestIntegrationOpenAIConversational(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	orch := newLiveOrchestrator(t, "openai", "OPENAI_API_KEY")

	res, _ := liveTurn(t, orch, vfs.New(), "hi, what can you do?")
	if !res.Conversational || res.Reply == "" {
		t.Errorf("expected a conversational reply, got %+v", res)
	}
}

func TestIntegrationOpenAIGenerate(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	orch := newLiveOrchestrator(t, "openai", "OPENAI_API_KEY")

	project := vfs.New()
	res, _ := liveTurn(t, orch, project, "Build a counter with increment and reset buttons.")
	assertGenerated(t, project, res)
}

func TestIntegrationAnthropicGenerate(t *testing.T) {
	skipUnlessIntegration(t)
	t.Parallel()
	orch := newLiveOrchestrator(t, "anthropic", "ANTHROPIC_API_KEY")

	project := vfs.New()
	res, _ := liveTurn(t, orch, project, "Build a counter with increment and reset buttons.")
	assertGenerated(t, project, res)
}
