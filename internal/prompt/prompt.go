// Package prompt builds the system instructions and user payloads for each
// pipeline stage.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bleue740/huggy-code-haven-sub000/internal/llm"
	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// DefaultStack describes the generated project's technology when none is configured.
const DefaultStack = "React function components with Tailwind CSS utility classes"

// Options configures system prompt construction.
type Options struct {
	Stack string
	// Guidelines is appended verbatim to every stage prompt.
	Guidelines string
	// Strict asks the Planner to refuse to guess missing entities.
	Strict bool
}

func (o Options) writeGuidelines(b *strings.Builder) {
	if g := strings.TrimSpace(o.Guidelines); g != "" {
		b.WriteString("\n")
		b.WriteString(g)
		b.WriteString("\n")
	}
}

func (o Options) stack() string {
	if strings.TrimSpace(o.Stack) == "" {
		return DefaultStack
	}
	return o.Stack
}

// PlannerPayload is the Planner's user message.
type PlannerPayload struct {
	Message        string        `json:"message"`
	History        []llm.Message `json:"history"`
	FileTree       string        `json:"fileTree"`
	ProjectContext string        `json:"projectContext"`
}

// GeneratorPayload is the Generator's user message.
type GeneratorPayload struct {
	Intent       string      `json:"intent"`
	Steps        []plan.Step `json:"steps"`
	CurrentFiles string      `json:"currentFiles"`
}

// ValidatorPayload is the Validator's user message.
type ValidatorPayload struct {
	Files []vfs.File `json:"files"`
}

// FixerPayload is the Fixer's user message.
type FixerPayload struct {
	Errors []validation.Finding `json:"errors"`
	Files  []vfs.File           `json:"files"`
}

const jsonOnly = "You MUST output ONLY valid JSON matching the schema below. No markdown, no prose outside JSON.\n\n"

// Planner returns the Planner's system prompt.
func Planner(opts Options) string {
	var b strings.Builder

	b.WriteString("You are the planning stage of a front-end app builder. You read the user's latest message, the recent conversation, and a snapshot of the current project, and you decide what should change.\n\n")
	b.WriteString(jsonOnly)
	b.WriteString(planSchema)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `## Rules

1. Do NOT write code. Describe each change in one sentence.
2. Greetings, thanks, small talk, and questions about the project are conversational: set "conversational": true, leave "steps" empty, and answer in "reply".
3. Number steps from 1 in execution order. Each step has exactly one action: create, modify, or delete.
4. A target is a component or file name (for example "ContactForm" or "App"). The entry file is %q and can never be deleted.
5. The project uses %s.
`, vfs.EntryPath, opts.stack())

	if opts.Strict {
		b.WriteString(`6. If the request is ambiguous (for example it names no target entity), set "risk_level": "high" and return a single step whose description is the clarifying question. Do NOT guess.
`)
	} else {
		b.WriteString(`6. If the request is ambiguous, set "risk_level": "high" and include a step asking for clarification rather than guessing.
`)
	}
	b.WriteString("\nThe user payload has fields message, history, fileTree and projectContext. projectContext may be truncated.\n")
	opts.writeGuidelines(&b)
	return b.String()
}

// Generator returns the Generator's system prompt.
func Generator(opts Options) string {
	var b strings.Builder

	b.WriteString("You are the code generation stage of a front-end app builder. You receive an approved plan and the current project files and you write the files the plan requires.\n\n")
	b.WriteString(jsonOnly)
	b.WriteString(filesSchema)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `## Rules

1. Every file MUST contain its complete content. Never write placeholders such as "// ... rest unchanged", "/* existing code */" or a line holding only "...". The content you return replaces the file entirely.
2. Only return files implicated by the plan steps, plus any file that must change with them.
3. Use %s.
4. The entry file is %q. If a new component must be rendered, modify %q to use it.
5. Do not return files targeted by delete steps.
`, opts.stack(), vfs.EntryPath, vfs.EntryPath)
	opts.writeGuidelines(&b)
	return b.String()
}

// Validator returns the Validator's system prompt.
func Validator(opts Options) string {
	var b strings.Builder

	b.WriteString("You are the validation stage of a front-end app builder. You review generated files for problems. You never rewrite files.\n\n")
	b.WriteString(jsonOnly)
	b.WriteString(resultSchema)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `## Rules

1. Classify each finding as exactly one type: syntax, runtime, security, or import.
2. Errors are problems that break the app or expose the user: syntax errors, references to undefined names, imports of files or packages that do not exist, and insecure patterns such as eval or unescaped HTML injection.
3. Warnings are problems that do not break the app: stylistic nits, unused variables, missing accessibility attributes.
4. "file" is the path of the file the finding is in. Check references between files.
5. The project uses %s.
6. Return empty arrays when there is nothing to report.
`, opts.stack())
	opts.writeGuidelines(&b)
	return b.String()
}

// Fixer returns the Fixer's system prompt.
func Fixer(opts Options) string {
	var b strings.Builder

	b.WriteString("You are the repair stage of a front-end app builder. You receive a list of errors and the full project files and you fix those errors.\n\n")
	b.WriteString(jsonOnly)
	b.WriteString(filesSchema)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, `## Rules

1. Fix ONLY the errors listed. Do not refactor or restyle anything else.
2. Return only the files you changed, each with its complete content. Never elide code.
3. If no change is needed, return {"files": []}.
4. The project uses %s.
`, opts.stack())
	opts.writeGuidelines(&b)
	return b.String()
}

const planSchema = `## Output JSON Schema

{
  "intent": string,
  "risk_level": "low" | "medium" | "high",
  "conversational": boolean,
  "reply": string (required when conversational, omitted otherwise),
  "steps": [{
    "id": integer (1..n),
    "action": "create" | "modify" | "delete",
    "target": string,
    "description": string
  }]
}`

const filesSchema = `## Output JSON Schema

{
  "files": [{
    "path": string,
    "content": string
  }]
}`

const resultSchema = `## Output JSON Schema

{
  "errors": [{"type": "syntax" | "runtime" | "security" | "import", "file": string, "message": string}],
  "warnings": [{"type": "syntax" | "runtime" | "security" | "import", "file": string, "message": string}]
}`
