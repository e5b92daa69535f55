// Package validation defines the Validator's findings and the stable
// severity policy that decides whether the Fixer runs.
package validation

import "fmt"

// Kind classifies a finding. Every finding has exactly one kind.
type Kind string

const (
	KindSyntax   Kind = "syntax"
	KindRuntime  Kind = "runtime"
	KindSecurity Kind = "security"
	KindImport   Kind = "import"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSyntax, KindRuntime, KindSecurity, KindImport:
		return true
	}
	return false
}

// order returns a sort key (lower = reported first).
func (k Kind) order() int {
	switch k {
	case KindSecurity:
		return 0
	case KindSyntax:
		return 1
	case KindImport:
		return 2
	case KindRuntime:
		return 3
	default:
		return 4
	}
}

// Finding is one problem reported against a file.
type Finding struct {
	Type    Kind   `json:"type"`
	File    string `json:"file"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Type, f.File, f.Message)
}

// Result is the Validator's output for one turn.
type Result struct {
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// Blocking reports whether any error is present.
func (r Result) Blocking() bool {
	return len(r.Errors) > 0
}
