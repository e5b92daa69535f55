package validation

import "fmt"

// DefaultMaxFindings caps each list sent on the wire.
const DefaultMaxFindings = 50

// Truncate caps errors and warnings to max entries each. When either list is
// cut, a warning noting the truncation is appended. The slices are re-capped,
// so a caller's copy of r keeps its full lists.
func Truncate(r *Result, max int) {
	if max <= 0 {
		max = DefaultMaxFindings
	}

	dropped := 0
	if len(r.Errors) > max {
		dropped += len(r.Errors) - max
		r.Errors = r.Errors[:max:max]
	}
	if len(r.Warnings) > max-1 {
		dropped += len(r.Warnings) - (max - 1)
		r.Warnings = r.Warnings[: max-1 : max-1]
	}

	if dropped > 0 {
		r.Warnings = append(r.Warnings, Finding{
			Type:    KindRuntime,
			File:    "*",
			Message: fmt.Sprintf("%d more findings were omitted", dropped),
		})
	}
}

// UnresolvedPrefix marks findings the Fixer could not address.
const UnresolvedPrefix = "unresolved: "

// Unresolved converts errors the Fixer could not address into warnings so
// they reach the caller without blocking delivery.
func Unresolved(errs []Finding) []Finding {
	out := make([]Finding, 0, len(errs))
	for _, e := range errs {
		e.Message = UnresolvedPrefix + e.Message
		out = append(out, e)
	}
	return out
}
