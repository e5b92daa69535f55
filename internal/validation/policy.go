package validation

import "sort"

// Severity policy
//
// The Validator files each finding as an error or a warning. Errors block
// auto-acceptance and trigger the single Fixer pass; warnings never block.
// Normalize applies these rules on top of the model's split:
//
//	security  always an error (insecure patterns block delivery)
//	syntax    kept where the model filed it
//	import    kept where the model filed it
//	runtime   kept where the model filed it
//
// Findings are then sorted and exact duplicates removed, so the same model
// output always yields the same Result.

// Normalize applies the severity policy, sorts, and deduplicates.
func Normalize(r Result) Result {
	var out Result
	out.Errors = append(out.Errors, r.Errors...)
	for _, w := range r.Warnings {
		if w.Type == KindSecurity {
			out.Errors = append(out.Errors, w)
			continue
		}
		out.Warnings = append(out.Warnings, w)
	}
	out.Errors = dedupe(out.Errors)
	out.Warnings = dedupe(out.Warnings)

	// A finding reported as both error and warning is only an error.
	errs := make(map[Finding]bool, len(out.Errors))
	for _, e := range out.Errors {
		errs[e] = true
	}
	kept := out.Warnings[:0]
	for _, w := range out.Warnings {
		if !errs[w] {
			kept = append(kept, w)
		}
	}
	out.Warnings = kept

	Sort(out.Errors)
	Sort(out.Warnings)
	if out.Errors == nil {
		out.Errors = []Finding{}
	}
	if out.Warnings == nil {
		out.Warnings = []Finding{}
	}
	return out
}

// Sort orders findings by file, then kind, then message.
func Sort(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].File != fs[j].File {
			return fs[i].File < fs[j].File
		}
		oi, oj := fs[i].Type.order(), fs[j].Type.order()
		if oi != oj {
			return oi < oj
		}
		return fs[i].Message < fs[j].Message
	})
}

func dedupe(fs []Finding) []Finding {
	seen := make(map[Finding]bool, len(fs))
	var out []Finding
	for _, f := range fs {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
