// Package events defines the typed, ordered event stream a turn produces and
// the sinks that carry it to a caller.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// Type discriminates events.
type Type string

const (
	TypePhase         Type = "phase"
	TypePlan          Type = "plan"
	TypeFileGenerated Type = "file_generated"
	TypeValidation    Type = "validation"
	TypeResult        Type = "result"
	TypeCancelled     Type = "cancelled"
	// TypeDone is the end-of-stream sentinel. Every turn emits it exactly once.
	TypeDone Type = "done"
)

// Phase is a pipeline stage as seen by the caller.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseGenerating Phase = "generating"
	PhaseValidating Phase = "validating"
	PhaseFixing     Phase = "fixing"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
)

// Rank orders phases along the forward path. Error ranks after everything.
func (p Phase) Rank() int {
	switch p {
	case PhasePlanning:
		return 1
	case PhaseGenerating:
		return 2
	case PhaseValidating:
		return 3
	case PhaseFixing:
		return 4
	case PhaseComplete:
		return 5
	case PhaseError:
		return 6
	}
	return 0
}

func (p Phase) Valid() bool { return p.Rank() > 0 }

// Result is the terminal payload of a turn.
type Result struct {
	Conversational bool                 `json:"conversational"`
	Reply          string               `json:"reply,omitempty"`
	Intent         string               `json:"intent,omitempty"`
	Files          []vfs.File           `json:"files"`
	DeletedFiles   []string             `json:"deletedFiles"`
	Warnings       []validation.Finding `json:"warnings,omitempty"`
}

// Patch converts the result into a store patch.
func (r *Result) Patch() vfs.Patch {
	return vfs.Patch{Writes: r.Files, Deletes: r.DeletedFiles}
}

// Event is one record of the stream. Only the fields relevant to Type are set.
type Event struct {
	Type       Type
	Phase      Phase
	Message    string
	Plan       *plan.Plan
	Path       string
	LinesCount int
	Validation *validation.Result
	Result     *Result
}

func PhaseEvent(p Phase, msg string) Event {
	return Event{Type: TypePhase, Phase: p, Message: msg}
}

func PlanEvent(p *plan.Plan) Event {
	return Event{Type: TypePlan, Plan: p}
}

func FileGenerated(f vfs.File) Event {
	return Event{Type: TypeFileGenerated, Path: f.Path, LinesCount: vfs.LineCount(f.Content)}
}

func ValidationEvent(r validation.Result) Event {
	return Event{Type: TypeValidation, Validation: &r}
}

func ResultEvent(r *Result) Event {
	return Event{Type: TypeResult, Result: r}
}

func Cancelled() Event { return Event{Type: TypeCancelled} }

func Done() Event { return Event{Type: TypeDone} }

// Terminal reports whether e ends a turn's payload (result or cancelled).
func (e Event) Terminal() bool {
	return e.Type == TypeResult || e.Type == TypeCancelled
}

// MarshalJSON writes the flat wire shape for each event type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypePhase:
		return json.Marshal(struct {
			Type    Type   `json:"type"`
			Phase   Phase  `json:"phase"`
			Message string `json:"message"`
		}{e.Type, e.Phase, e.Message})
	case TypePlan:
		return json.Marshal(struct {
			Type Type       `json:"type"`
			Plan *plan.Plan `json:"plan"`
		}{e.Type, e.Plan})
	case TypeFileGenerated:
		return json.Marshal(struct {
			Type       Type   `json:"type"`
			Path       string `json:"path"`
			LinesCount int    `json:"linesCount"`
		}{e.Type, e.Path, e.LinesCount})
	case TypeValidation:
		v := validation.Result{}
		if e.Validation != nil {
			v = *e.Validation
		}
		return json.Marshal(struct {
			Type     Type                 `json:"type"`
			Errors   []validation.Finding `json:"errors"`
			Warnings []validation.Finding `json:"warnings"`
		}{e.Type, nonNil(v.Errors), nonNil(v.Warnings)})
	case TypeResult:
		r := Result{}
		if e.Result != nil {
			r = *e.Result
		}
		if r.Files == nil {
			r.Files = []vfs.File{}
		}
		if r.DeletedFiles == nil {
			r.DeletedFiles = []string{}
		}
		return json.Marshal(struct {
			Type Type `json:"type"`
			Result
		}{e.Type, r})
	case TypeCancelled, TypeDone:
		return json.Marshal(struct {
			Type Type `json:"type"`
		}{e.Type})
	}
	return nil, fmt.Errorf("events: unknown event type %q", e.Type)
}

type wire struct {
	Type       Type                 `json:"type"`
	Phase      Phase                `json:"phase"`
	Message    string               `json:"message"`
	Plan       *plan.Plan           `json:"plan"`
	Path       string               `json:"path"`
	LinesCount int                  `json:"linesCount"`
	Errors     []validation.Finding `json:"errors"`
	Warnings   []validation.Finding `json:"warnings"`

	Conversational bool       `json:"conversational"`
	Reply          string     `json:"reply"`
	Intent         string     `json:"intent"`
	Files          []vfs.File `json:"files"`
	DeletedFiles   []string   `json:"deletedFiles"`
}

// UnmarshalJSON reads any event shape written by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{Type: w.Type}
	switch w.Type {
	case TypePhase:
		e.Phase, e.Message = w.Phase, w.Message
	case TypePlan:
		e.Plan = w.Plan
	case TypeFileGenerated:
		e.Path, e.LinesCount = w.Path, w.LinesCount
	case TypeValidation:
		e.Validation = &validation.Result{Errors: nonNil(w.Errors), Warnings: nonNil(w.Warnings)}
	case TypeResult:
		e.Result = &Result{
			Conversational: w.Conversational,
			Reply:          w.Reply,
			Intent:         w.Intent,
			Files:          w.Files,
			DeletedFiles:   w.DeletedFiles,
			Warnings:       w.Warnings,
		}
	case TypeCancelled, TypeDone:
	default:
		return fmt.Errorf("events: unknown event type %q", w.Type)
	}
	return nil
}

func nonNil(fs []validation.Finding) []validation.Finding {
	if fs == nil {
		return []validation.Finding{}
	}
	return fs
}
