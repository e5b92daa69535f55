// Package stage implements the four single-purpose model calls of a turn:
// Planner, Generator, Validator and Fixer. Each stage decodes its answer into
// a strict shape and rejects anything else as malformed output.
package stage

import (
	"context"
	"encoding/json"

	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/prompt"
	"github.com/bleue740/huggy-code-haven-sub000/internal/schema"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// DefaultHistoryTurns is how many prior messages the Planner sees.
const DefaultHistoryTurns = 10

// Planner turns a user message into a Plan.
type Planner struct {
	Agent        *llm.Agent
	Prompt       prompt.Options
	HistoryTurns int
}

// PlanInput is everything the Planner reads.
type PlanInput struct {
	Message        string
	History        []llm.Message
	FileTree       string
	ProjectContext string
}

// Run calls the model and validates the Plan. Any failure is returned as is;
// the caller treats it as fatal for the turn.
func (p *Planner) Run(ctx context.Context, in PlanInput, model string) (*plan.Plan, error) {
	n := p.HistoryTurns
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	payload := prompt.PlannerPayload{
		Message:        in.Message,
		History:        LastN(in.History, n),
		FileTree:       in.FileTree,
		ProjectContext: in.ProjectContext,
	}
	if payload.History == nil {
		payload.History = []llm.Message{}
	}

	out, err := llm.Call[plan.Plan](ctx, p.Agent, prompt.Planner(p.Prompt), payload, model)
	if err != nil {
		return nil, err
	}
	if err := schema.Join(schema.ValidatePlan(&out)); err != nil {
		return nil, llm.Malformed(remarshal(out), err)
	}
	return &out, nil
}

// Generator writes complete files for a Plan.
type Generator struct {
	Agent  *llm.Agent
	Prompt prompt.Options
}

// Run returns the generated file set in the model's order.
func (g *Generator) Run(ctx context.Context, pl *plan.Plan, currentFiles string, model string) ([]vfs.File, error) {
	payload := prompt.GeneratorPayload{
		Intent:       pl.Intent,
		Steps:        pl.Steps,
		CurrentFiles: currentFiles,
	}
	out, err := llm.Call[schema.FileSet](ctx, g.Agent, prompt.Generator(g.Prompt), payload, model)
	if err != nil {
		return nil, err
	}
	if err := schema.Join(schema.ValidateFiles(&out, false)); err != nil {
		return nil, llm.Malformed(remarshal(out), err)
	}
	return out.Files, nil
}

// Validator reviews generated files. It never changes them.
type Validator struct {
	Agent  *llm.Agent
	Prompt prompt.Options
}

// Run returns the normalized Validation Result.
func (v *Validator) Run(ctx context.Context, files []vfs.File, model string) (validation.Result, error) {
	payload := prompt.ValidatorPayload{Files: files}
	out, err := llm.Call[validation.Result](ctx, v.Agent, prompt.Validator(v.Prompt), payload, model)
	if err != nil {
		return validation.Result{}, err
	}
	if err := schema.Join(schema.ValidateResult(&out)); err != nil {
		return validation.Result{}, llm.Malformed(remarshal(out), err)
	}
	return validation.Normalize(out), nil
}

// Fixer makes one repair pass over files with errors.
type Fixer struct {
	Agent  *llm.Agent
	Prompt prompt.Options
}

// Run returns only the files the model changed; the set may be empty.
func (f *Fixer) Run(ctx context.Context, errs []validation.Finding, files []vfs.File, model string) ([]vfs.File, error) {
	payload := prompt.FixerPayload{Errors: errs, Files: files}
	out, err := llm.Call[schema.FileSet](ctx, f.Agent, prompt.Fixer(f.Prompt), payload, model)
	if err != nil {
		return nil, err
	}
	if err := schema.Join(schema.ValidateFiles(&out, true)); err != nil {
		return nil, llm.Malformed(remarshal(out), err)
	}
	return out.Files, nil
}

// Merge overlays fixed onto generated by path. Fixed content wins; paths
// only present in fixed are appended in their original order.
func Merge(generated, fixed []vfs.File) []vfs.File {
	byPath := make(map[string]int, len(generated))
	out := make([]vfs.File, len(generated))
	copy(out, generated)
	for i, f := range out {
		byPath[f.Path] = i
	}
	for _, f := range fixed {
		if i, ok := byPath[f.Path]; ok {
			out[i] = f
			continue
		}
		byPath[f.Path] = len(out)
		out = append(out, f)
	}
	return out
}

// LastN returns the trailing n messages.
func LastN(msgs []llm.Message, n int) []llm.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func remarshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
