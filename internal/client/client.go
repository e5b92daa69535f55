// Package client holds the caller-side state machine for a conversation.
// A single Phase value plus a pure reducer replaces loose UI flags.
package client

import (
	"time"

	"github.com/bleue740/huggy-code-haven-sub000/internal/events"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
)

// Phase is what the client is showing.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePlanning   Phase = "planning"
	PhaseGenerating Phase = "generating"
	PhaseValidating Phase = "validating"
	PhaseFixing     Phase = "fixing"
	PhasePreviewing Phase = "previewing"
	PhaseError      Phase = "error"
)

// Busy reports whether a turn is in flight.
func (p Phase) Busy() bool {
	switch p {
	case PhasePlanning, PhaseGenerating, PhaseValidating, PhaseFixing:
		return true
	}
	return false
}

func (p Phase) rank() int {
	switch p {
	case PhasePlanning:
		return 1
	case PhaseGenerating:
		return 2
	case PhaseValidating:
		return 3
	case PhaseFixing:
		return 4
	}
	return 0
}

// State is the whole client view of the current turn.
type State struct {
	Phase          Phase
	Message        string
	Errors         []validation.Finding
	Warnings       []validation.Finding
	PlanSteps      []plan.Step
	GeneratedFiles []string
	StartedAt      time.Time

	// Reply and Result are set once the turn's result arrives.
	Reply  string
	Result *events.Result
}

// Initial returns the idle state.
func Initial() State {
	return State{Phase: PhaseIdle}
}

// ActionKind discriminates reducer inputs.
type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionEvent
	ActionComplete
	ActionError
	ActionReset
)

// Action is one reducer input.
type Action struct {
	Kind    ActionKind
	At      time.Time
	Event   events.Event
	Result  *events.Result
	Message string
}

func Start(at time.Time) Action        { return Action{Kind: ActionStart, At: at} }
func Event(e events.Event) Action      { return Action{Kind: ActionEvent, Event: e} }
func Complete(r *events.Result) Action { return Action{Kind: ActionComplete, Result: r} }
func Error(msg string) Action          { return Action{Kind: ActionError, Message: msg} }
func Reset() Action                    { return Action{Kind: ActionReset} }

// Reduce returns the next state. It never mutates s.
func Reduce(s State, a Action) State {
	switch a.Kind {
	case ActionStart:
		if s.Phase.Busy() {
			return s
		}
		return State{Phase: PhasePlanning, Message: "Understanding your request", StartedAt: a.At}

	case ActionEvent:
		return reduceEvent(s, a.Event)

	case ActionComplete:
		if s.Phase == PhaseError {
			// The apology result after a fatal error keeps the error visible.
			s.Reply = replyOf(a.Result)
			s.Result = a.Result
			return s
		}
		next := s
		next.Result = a.Result
		next.Reply = replyOf(a.Result)
		if a.Result != nil && !a.Result.Conversational {
			next.Phase = PhasePreviewing
			next.Warnings = append(append([]validation.Finding{}, s.Warnings...), newOnly(s.Warnings, a.Result.Warnings)...)
			next.Message = a.Result.Intent
		} else {
			next.Phase = PhaseIdle
			next.Message = ""
		}
		return next

	case ActionError:
		next := s
		next.Phase = PhaseError
		next.Message = a.Message
		return next

	case ActionReset:
		return Initial()
	}
	return s
}

func reduceEvent(s State, e events.Event) State {
	switch e.Type {
	case events.TypePhase:
		return reducePhase(s, e)
	case events.TypePlan:
		if e.Plan != nil {
			s.PlanSteps = append([]plan.Step{}, e.Plan.Steps...)
		}
	case events.TypeFileGenerated:
		for _, p := range s.GeneratedFiles {
			if p == e.Path {
				return s
			}
		}
		s.GeneratedFiles = append(append([]string{}, s.GeneratedFiles...), e.Path)
	case events.TypeValidation:
		if e.Validation != nil {
			s.Errors = append([]validation.Finding{}, e.Validation.Errors...)
			s.Warnings = append([]validation.Finding{}, e.Validation.Warnings...)
		}
	case events.TypeResult:
		return Reduce(s, Complete(e.Result))
	case events.TypeCancelled:
		return Reduce(s, Reset())
	case events.TypeDone:
		// A stream that ends mid-turn must not leave the client busy.
		if s.Phase.Busy() {
			return Reduce(s, Error("The connection ended before the turn finished."))
		}
	}
	return s
}

func reducePhase(s State, e events.Event) State {
	var next Phase
	switch e.Phase {
	case events.PhasePlanning:
		next = PhasePlanning
	case events.PhaseGenerating:
		next = PhaseGenerating
	case events.PhaseValidating:
		next = PhaseValidating
	case events.PhaseFixing:
		next = PhaseFixing
	case events.PhaseComplete:
		// The result event carries the payload and moves to previewing.
		s.Message = e.Message
		return s
	case events.PhaseError:
		return Reduce(s, Error(e.Message))
	default:
		return s
	}
	if !s.Phase.Busy() && next != PhasePlanning {
		return s
	}
	if next.rank() < s.Phase.rank() {
		return s
	}
	s.Phase = next
	s.Message = e.Message
	return s
}

func replyOf(r *events.Result) string {
	if r == nil {
		return ""
	}
	return r.Reply
}

func newOnly(have, add []validation.Finding) []validation.Finding {
	seen := make(map[validation.Finding]bool, len(have))
	for _, f := range have {
		seen[f] = true
	}
	var out []validation.Finding
	for _, f := range add {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
