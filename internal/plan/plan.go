// Package plan holds the Planner's output: what should change this turn,
// expressed as ordered steps rather than code.
package plan

import (
	"fmt"
	"strings"
)

// Action is what a step does to its target.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionModify, ActionDelete:
		return true
	}
	return false
}

// RiskLevel is the Planner's confidence that the request is well specified.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Plan is produced once per turn and never modified afterward.
type Plan struct {
	Intent         string    `json:"intent"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Conversational bool      `json:"conversational"`
	Reply          *string   `json:"reply,omitempty"`
	Steps          []Step    `json:"steps"`
}

// Step is one unit of planned change.
type Step struct {
	ID          int    `json:"id"`
	Action      Action `json:"action"`
	Target      string `json:"target"`
	Description string `json:"description"`
}

// ReplyText returns the reply or an empty string.
func (p *Plan) ReplyText() string {
	if p.Reply == nil {
		return ""
	}
	return *p.Reply
}

// NeedsClarification reports a non-conversational plan with nothing to do.
func (p *Plan) NeedsClarification() bool {
	return !p.Conversational && len(p.Steps) == 0
}

// Targets returns the targets of non-delete steps in step order, without
// duplicates.
func (p *Plan) Targets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range p.Steps {
		if s.Action == ActionDelete || seen[s.Target] {
			continue
		}
		seen[s.Target] = true
		out = append(out, s.Target)
	}
	return out
}

// Deletions returns the targets of delete steps in step order.
func (p *Plan) Deletions() []string {
	var out []string
	for _, s := range p.Steps {
		if s.Action == ActionDelete {
			out = append(out, s.Target)
		}
	}
	return out
}

// Outline renders the steps as numbered lines for prompts and logs.
func (p *Plan) Outline() string {
	var b strings.Builder
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", s.ID, s.Action, s.Target, s.Description)
	}
	return b.String()
}
