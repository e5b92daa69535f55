package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bleue740/huggy-code-haven-sub000/internal/client"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/orchestrator"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

func starter() *vfs.Store {
	return vfs.FromFiles([]vfs.File{
		{Path: "App", Content: "function App() {\n  return null;\n}\n"},
		{Path: "Old", Content: "function Old() {}\n"},
	})
}

// generationTurn emits a complete generation turn that rewrites App and
// deletes Old.
func generationTurn(got *orchestrator.TurnRequest) TurnFunc {
	return func(ctx context.Context, req orchestrator.TurnRequest, sink events.Sink) (*events.Result, error) {
		*got = req
		p := &plan.Plan{Intent: "counter", RiskLevel: plan.RiskLow, Steps: []plan.Step{
			{ID: 1, Action: plan.ActionModify, Target: "App", Description: "render a counter"},
			{ID: 2, Action: plan.ActionDelete, Target: "Old", Description: "remove"},
		}}
		res := &events.Result{
			Intent:       "counter",
			Files:        []vfs.File{{Path: "App", Content: "function App() {\n  return <button />;\n}\n"}},
			DeletedFiles: []string{"Old"},
		}
		for _, e := range []events.Event{
			events.PhaseEvent(events.PhasePlanning, "Planning"),
			events.PlanEvent(p),
			events.PhaseEvent(events.PhaseGenerating, "Generating"),
			events.FileGenerated(res.Files[0]),
			events.PhaseEvent(events.PhaseComplete, "Done"),
			events.ResultEvent(res),
			events.Done(),
		} {
			if err := sink.Emit(ctx, e); err != nil {
				return nil, err
			}
		}
		return res, nil
	}
}

// drive sends the input line and feeds every stream message back into the
// model until the turn ends.
func drive(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.Input.SetValue(text)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	cmd := m.next()
	for i := 0; cmd != nil; i++ {
		if i > 50 {
			t.Fatal("turn did not end")
		}
		msg := cmd()
		next, cmd = m.Update(msg)
		m = next.(Model)
		if _, ok := msg.(MsgTurnEnded); ok {
			break
		}
	}
	return m
}

func TestGenerationTurnAppliesResult(t *testing.T) {
	var req orchestrator.TurnRequest
	var saved *vfs.Store
	m := NewModel(starter(), generationTurn(&req), Options{
		OnApply: func(s *vfs.Store) error { saved = s; return nil },
	})

	m = drive(t, m, "add a counter")

	if m.State.Phase != client.PhasePreviewing {
		t.Fatalf("phase = %s, want previewing", m.State.Phase)
	}
	if got, _ := m.Project.Read("App"); !strings.Contains(got, "<button />") {
		t.Errorf("App not updated: %q", got)
	}
	if _, ok := m.Project.Read("Old"); ok {
		t.Error("Old should be deleted")
	}
	if saved == nil || saved.Hash() != m.Project.Hash() {
		t.Error("OnApply should receive the applied project")
	}

	if len(req.Messages) != 1 || req.Messages[0].Content != "add a counter" {
		t.Errorf("unexpected request messages: %+v", req.Messages)
	}
	if !strings.Contains(req.FileTree, "App") || !strings.Contains(req.ProjectContext, "function Old") {
		t.Errorf("request should carry a snapshot of the project: %q", req.FileTree)
	}

	if len(m.History) != 2 || m.History[1].Role != "assistant" {
		t.Fatalf("history = %+v", m.History)
	}
	if !strings.Contains(m.History[1].Content, "deleted Old") {
		t.Errorf("assistant summary = %q", m.History[1].Content)
	}
	if m.stream != nil || m.cancel != nil {
		t.Error("turn resources should be released")
	}
}

func TestConversationalTurn(t *testing.T) {
	run := func(ctx context.Context, _ orchestrator.TurnRequest, sink events.Sink) (*events.Result, error) {
		res := &events.Result{Conversational: true, Reply: "Hello!"}
		_ = sink.Emit(ctx, events.PhaseEvent(events.PhasePlanning, "Planning"))
		_ = sink.Emit(ctx, events.ResultEvent(res))
		_ = sink.Emit(ctx, events.Done())
		return res, nil
	}
	before := starter()
	m := drive(t, NewModel(before, run, Options{}), "hi")

	if m.State.Phase != client.PhaseIdle {
		t.Errorf("phase = %s, want idle", m.State.Phase)
	}
	if m.Project.Hash() != before.Hash() {
		t.Error("a conversational turn must not change the project")
	}
	last := m.Transcript[len(m.Transcript)-1]
	if last.Role != "assistant" || last.Text != "Hello!" {
		t.Errorf("last transcript entry = %+v", last)
	}
}

func TestFatalTurnShowsError(t *testing.T) {
	run := func(ctx context.Context, _ orchestrator.TurnRequest, sink events.Sink) (*events.Result, error) {
		_ = sink.Emit(ctx, events.PhaseEvent(events.PhasePlanning, "Planning"))
		_ = sink.Emit(ctx, events.PhaseEvent(events.PhaseError, "insufficient credit"))
		_ = sink.Emit(ctx, events.ResultEvent(&events.Result{Conversational: true, Reply: orchestrator.Apology}))
		_ = sink.Emit(ctx, events.Done())
		return nil, errors.New("insufficient credit")
	}
	m := drive(t, NewModel(starter(), run, Options{}), "build a shop")

	if m.State.Phase != client.PhaseError {
		t.Fatalf("phase = %s, want error", m.State.Phase)
	}
	if !strings.Contains(m.View(), "insufficient credit") {
		t.Error("view should show the error message")
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if next.(Model).State.Phase != client.PhaseIdle {
		t.Error("ctrl+r should clear the error")
	}
}

func TestCancelKey(t *testing.T) {
	run := func(ctx context.Context, _ orchestrator.TurnRequest, sink events.Sink) (*events.Result, error) {
		_ = sink.Emit(ctx, events.PhaseEvent(events.PhasePlanning, "Planning"))
		<-ctx.Done()
		final := context.WithoutCancel(ctx)
		_ = sink.Emit(final, events.Cancelled())
		_ = sink.Emit(final, events.Done())
		return nil, orchestrator.ErrCancelled
	}
	m := NewModel(starter(), run, Options{})
	m.Input.SetValue("build a dashboard")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.State.Phase.Busy() {
		t.Fatalf("phase = %s, want busy", m.State.Phase)
	}

	// First event, then cancel.
	next, cmd := m.Update(m.next()())
	m = next.(Model)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)

	for cmd != nil {
		msg := cmd()
		next, cmd = m.Update(msg)
		m = next.(Model)
		if _, ok := msg.(MsgTurnEnded); ok {
			break
		}
	}

	if m.State.Phase != client.PhaseIdle {
		t.Errorf("phase = %s, want idle after cancel", m.State.Phase)
	}
	if last := m.Transcript[len(m.Transcript)-1]; last.Text != "Turn cancelled." {
		t.Errorf("last transcript entry = %+v", last)
	}
}

func TestSendIgnoredWhileBusyOrEmpty(t *testing.T) {
	m := NewModel(starter(), func(context.Context, orchestrator.TurnRequest, events.Sink) (*events.Result, error) {
		t.Fatal("turn should not start")
		return nil, nil
	}, Options{})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || next.(Model).State.Phase != client.PhaseIdle {
		t.Error("empty input should not start a turn")
	}

	m.State.Phase = client.PhaseGenerating
	m.Input.SetValue("again")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(next.(Model).History) != 0 {
		t.Error("input should be ignored while a turn is running")
	}
}

func TestWindowResize(t *testing.T) {
	m := NewModel(starter(), nil, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	got := next.(Model)
	if got.Viewport.Width != 100 || got.Viewport.Height != 36 {
		t.Errorf("viewport = %dx%d", got.Viewport.Width, got.Viewport.Height)
	}
}
