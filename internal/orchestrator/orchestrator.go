// Package orchestrator sequences the stages of one turn, decides which
// branch the turn takes, and owns the credit and cancellation policy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bleue740/huggy-code-haven-sub000/internal/credit"
	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/prompt"
	"github.com/bleue740/huggy-code-haven-sub000/internal/redact"
	"github.com/bleue740/huggy-code-haven-sub000/internal/routing"
	"github.com/bleue740/huggy-code-haven-sub000/internal/snapshot"
	"github.com/bleue740/huggy-code-haven-sub000/internal/stage"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

const (
	// DefaultCost is charged per billable turn.
	DefaultCost = 1

	// Apology is the reply sent on any fatal failure.
	Apology = "Sorry, something went wrong while working on your request. Please try again."

	// ClarifyReply is sent when the Planner found nothing actionable.
	ClarifyReply = "Could you tell me a bit more about what you'd like to build or change?"
)

// ErrCancelled is returned by Run when the caller aborted the turn.
var ErrCancelled = errors.New("orchestrator: turn cancelled")

// Options configures an Orchestrator.
type Options struct {
	Prompt       prompt.Options
	Router       *routing.Router
	Cost         int
	HistoryTurns int
	// MaxContextBytes caps the project context forwarded to the Planner and
	// Generator.
	MaxContextBytes int
	// MaxFindings caps each list in the validation event; 0 means
	// validation.DefaultMaxFindings. The Fixer always sees every error.
	MaxFindings int
	Redact      bool
	Logger      *slog.Logger
}

// Orchestrator runs turns. It is safe for concurrent use; callers must not
// start two turns for the same project at once.
type Orchestrator struct {
	planner   *stage.Planner
	generator *stage.Generator
	validator *stage.Validator
	fixer     *stage.Fixer

	router      *routing.Router
	ledger      credit.Ledger
	cost        int
	ctxCap      int
	maxFindings int
	redact      bool
	log         *slog.Logger
}

// New builds an Orchestrator whose stages share one agent.
func New(agent *llm.Agent, ledger credit.Ledger, opts Options) *Orchestrator {
	if opts.Cost <= 0 {
		opts.Cost = DefaultCost
	}
	if opts.MaxContextBytes <= 0 {
		opts.MaxContextBytes = snapshot.DefaultMaxContextBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		planner:     &stage.Planner{Agent: agent, Prompt: opts.Prompt, HistoryTurns: opts.HistoryTurns},
		generator:   &stage.Generator{Agent: agent, Prompt: opts.Prompt},
		validator:   &stage.Validator{Agent: agent, Prompt: opts.Prompt},
		fixer:       &stage.Fixer{Agent: agent, Prompt: opts.Prompt},
		router:      opts.Router,
		ledger:      ledger,
		cost:        opts.Cost,
		ctxCap:      opts.MaxContextBytes,
		redact:      opts.Redact,
		maxFindings: opts.MaxFindings,
		log:         opts.Logger,
	}
}

// turn carries the mutable state of one Run call.
type turn struct {
	id     string
	userID string
	ctx    context.Context
	sink   events.Sink
	log    *slog.Logger
	state  state
	// gone is set when the sink reports its consumer has left.
	gone bool
}

func (t *turn) cancelled() bool {
	return t.gone || t.ctx.Err() != nil
}

func (t *turn) emit(e events.Event) {
	if t.gone {
		return
	}
	if err := t.sink.Emit(t.ctx, e); err != nil {
		t.log.Debug("sink closed", "event", e.Type, "err", err)
		t.gone = true
	}
}

// emitFinal writes terminal events even after the turn context is done.
func (t *turn) emitFinal(e events.Event) {
	if err := t.sink.Emit(context.WithoutCancel(t.ctx), e); err != nil {
		t.log.Debug("sink closed", "event", e.Type, "err", err)
	}
}

func (t *turn) enter(s state, p events.Phase, msg string) {
	t.state.advance(s)
	t.log.Debug("phase", "state", s)
	t.emit(events.PhaseEvent(p, msg))
}

// Run executes one turn and streams its events to sink. The sentinel is
// emitted exactly once on every path that emits anything. A request that
// fails validation returns ErrBadRequest before any event is sent.
//
// On a fatal failure Run returns the apology result together with the cause.
// On cancellation it returns ErrCancelled and no result.
func (o *Orchestrator) Run(ctx context.Context, userID string, req TurnRequest, sink events.Sink) (*events.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := &turn{
		id:     uuid.NewString(),
		userID: userID,
		ctx:    ctx,
		sink:   sink,
	}
	t.log = o.log.With("turn", t.id, "user", userID)
	start := time.Now()

	res, err := o.run(t, req)
	t.emitFinal(events.Done())

	t.log.Info("turn finished", "state", t.state, "elapsed", time.Since(start).Round(time.Millisecond))
	return res, err
}

func (o *Orchestrator) run(t *turn, req TurnRequest) (*events.Result, error) {
	message, history := req.Split()

	if err := o.checkBalance(t); err != nil {
		if errors.Is(err, credit.ErrInsufficientCredit) {
			return o.fail(t, "insufficient credit", err)
		}
		return o.fail(t, "credit check failed", err)
	}

	t.enter(statePlanning, events.PhasePlanning, "Understanding your request")
	if t.cancelled() {
		return o.cancel(t)
	}

	tier, model := routing.TierFast, ""
	if o.router != nil {
		tier, model = o.router.Model(message)
	}
	t.log.Debug("routed", "tier", tier, "model", model)

	projectContext := req.ProjectContext
	if o.redact {
		var n int
		projectContext, n = redact.Count(projectContext)
		if n > 0 {
			t.log.Debug("redacted project context", "matches", n)
		}
	}
	projectContext, _ = snapshot.Cap(projectContext, o.ctxCap)

	pl, err := timed(t, "planner", func() (*plan.Plan, error) {
		return o.planner.Run(t.ctx, stage.PlanInput{
			Message:        message,
			History:        history,
			FileTree:       req.FileTree,
			ProjectContext: projectContext,
		}, model)
	})
	if t.cancelled() {
		return o.cancel(t)
	}
	if err != nil {
		return o.fail(t, "planning failed", err)
	}
	t.log.Debug("plan", "intent", pl.Intent, "risk", pl.RiskLevel, "steps", pl.Outline())
	t.emit(events.PlanEvent(pl))

	switch {
	case pl.Conversational:
		res := &events.Result{Conversational: true, Reply: pl.ReplyText(), Intent: pl.Intent}
		if err := o.charge(t); err != nil {
			return o.fail(t, "charge failed", err)
		}
		t.state.advance(stateComplete)
		t.emit(events.ResultEvent(res))
		return res, nil

	case pl.NeedsClarification():
		res := &events.Result{Conversational: true, Reply: ClarifyReply, Intent: pl.Intent}
		t.state.advance(stateComplete)
		t.emit(events.ResultEvent(res))
		return res, nil
	}

	// Generation.
	t.enter(stateGenerating, events.PhaseGenerating, fmt.Sprintf("Writing code for %d step(s)", len(pl.Steps)))
	if t.cancelled() {
		return o.cancel(t)
	}
	files, err := timed(t, "generator", func() ([]vfs.File, error) {
		return o.generator.Run(t.ctx, pl, projectContext, model)
	})
	if t.cancelled() {
		return o.cancel(t)
	}
	if err != nil {
		return o.fail(t, "generation failed", err)
	}
	for _, f := range files {
		t.emit(events.FileGenerated(f))
	}

	// Validation.
	var warnings []validation.Finding
	t.enter(stateValidating, events.PhaseValidating, "Checking the generated code")
	if t.cancelled() {
		return o.cancel(t)
	}
	vres, err := timed(t, "validator", func() (validation.Result, error) {
		return o.validator.Run(t.ctx, files, model)
	})
	if t.cancelled() {
		return o.cancel(t)
	}
	if err != nil {
		t.log.Warn("validation skipped", "err", err)
		warnings = append(warnings, validation.Finding{
			Type:    validation.KindRuntime,
			File:    "*",
			Message: "validation skipped: the generated code was not checked",
		})
	} else {
		wire := vres
		validation.Truncate(&wire, o.maxFindings)
		t.emit(events.ValidationEvent(wire))
		warnings = append(warnings, vres.Warnings...)
	}

	// Single fix pass.
	if err == nil && vres.Blocking() {
		t.enter(stateFixing, events.PhaseFixing, fmt.Sprintf("Fixing %d error(s)", len(vres.Errors)))
		if t.cancelled() {
			return o.cancel(t)
		}
		fixed, ferr := timed(t, "fixer", func() ([]vfs.File, error) {
			return o.fixer.Run(t.ctx, vres.Errors, files, model)
		})
		if t.cancelled() {
			return o.cancel(t)
		}
		if ferr != nil {
			t.log.Warn("fix failed, keeping generated files", "err", ferr)
			warnings = append(warnings, validation.Unresolved(vres.Errors)...)
		} else {
			for _, f := range fixed {
				t.emit(events.FileGenerated(f))
			}
			files = stage.Merge(files, fixed)
		}
	}

	if missing := MissingTargets(pl, files); len(missing) > 0 {
		t.log.Warn("plan targets missing from generated files", "targets", missing)
	}

	res := &events.Result{
		Intent:       pl.Intent,
		Files:        files,
		DeletedFiles: DeletedFiles(pl, req.FileTree, files),
		Warnings:     warnings,
	}
	if err := o.charge(t); err != nil {
		return o.fail(t, "charge failed", err)
	}
	t.enter(stateComplete, events.PhaseComplete, fmt.Sprintf("Updated %d file(s)", len(files)))
	t.emit(events.ResultEvent(res))
	return res, nil
}

func (o *Orchestrator) checkBalance(t *turn) error {
	if o.ledger == nil {
		return nil
	}
	bal, err := o.ledger.Balance(t.ctx, t.userID)
	if err != nil {
		return err
	}
	if bal < o.cost {
		return fmt.Errorf("%w: have %d, need %d", credit.ErrInsufficientCredit, bal, o.cost)
	}
	return nil
}

func (o *Orchestrator) charge(t *turn) error {
	if o.ledger == nil {
		return nil
	}
	if err := o.ledger.Deduct(context.WithoutCancel(t.ctx), t.userID, o.cost); err != nil {
		return err
	}
	t.log.Info("charged", "amount", o.cost)
	return nil
}

func (o *Orchestrator) fail(t *turn, msg string, cause error) (*events.Result, error) {
	t.state.advance(stateError)
	logAgentError(t.log, msg, cause)
	res := &events.Result{Conversational: true, Reply: Apology}
	t.emitFinal(events.PhaseEvent(events.PhaseError, msg))
	t.emitFinal(events.ResultEvent(res))
	return res, fmt.Errorf("orchestrator: %s: %w", msg, cause)
}

func (o *Orchestrator) cancel(t *turn) (*events.Result, error) {
	t.state.advance(stateCancelled)
	t.log.Info("turn cancelled", "client_gone", t.gone)
	t.emitFinal(events.Cancelled())
	return nil, ErrCancelled
}

func logAgentError(log *slog.Logger, msg string, err error) {
	var mal *llm.MalformedAgentOutput
	if errors.As(err, &mal) {
		log.Error(msg, "err", err)
		log.Debug("malformed agent output", "raw", mal.Raw)
		return
	}
	log.Error(msg, "err", err)
}

func timed[T any](t *turn, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	t.log.Debug("stage returned", "stage", name, "elapsed", time.Since(start).Round(time.Millisecond), "ok", err == nil)
	return out, err
}

// MissingTargets returns create and modify targets that no file in files
// provides. A target matches a path exactly or with the extension dropped,
// so "ContactForm" is satisfied by "components/ContactForm.tsx".
func MissingTargets(pl *plan.Plan, files []vfs.File) []string {
	have := make(map[string]bool)
	for _, f := range files {
		have[f.Path] = true
		have[stripExt(f.Path)] = true
		have[stripExt(path.Base(f.Path))] = true
	}
	var out []string
	for _, target := range pl.Targets() {
		if !have[target] && !have[stripExt(target)] {
			out = append(out, target)
		}
	}
	return out
}

func stripExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// DeletedFiles returns delete-step targets present in the file tree, minus
// the entry path and any path the turn also wrote.
func DeletedFiles(pl *plan.Plan, fileTree string, written []vfs.File) []string {
	existing := make(map[string]bool)
	for _, p := range snapshot.ParseFileTree(fileTree) {
		existing[p] = true
	}
	skip := map[string]bool{vfs.EntryPath: true}
	for _, f := range written {
		skip[f.Path] = true
	}
	out := []string{}
	for _, target := range pl.Deletions() {
		if existing[target] && !skip[target] {
			skip[target] = true
			out = append(out, target)
		}
	}
	return out
}
