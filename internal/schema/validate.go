// Package schema enforces the strict per-stage output shapes of the
// generation pipeline. A stage response that passes JSON decoding but
// violates one of these rules is treated as malformed agent output.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bleue740/huggy-code-haven-sub000/internal/plan"
	"github.com/bleue740/huggy-code-haven-sub000/internal/validation"
	"github.com/bleue740/huggy-code-haven-sub000/internal/vfs"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Join folds violations into one error, or nil when there are none.
func Join(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return errors.Join(out...)
}

// ValidatePlan checks a Planner response.
func ValidatePlan(p *plan.Plan) []ValidationError {
	var errs []ValidationError

	if !p.RiskLevel.Valid() {
		errs = append(errs, ValidationError{"risk_level", fmt.Sprintf("invalid: %q", p.RiskLevel)})
	}

	if p.Conversational {
		if len(p.Steps) > 0 {
			errs = append(errs, ValidationError{"steps", "must be empty for a conversational plan"})
		}
		if strings.TrimSpace(p.ReplyText()) == "" {
			errs = append(errs, ValidationError{"reply", "required for a conversational plan"})
		}
		return errs
	}

	for i, s := range p.Steps {
		prefix := fmt.Sprintf("steps[%d]", i)
		if s.ID != i+1 {
			errs = append(errs, ValidationError{prefix + ".id", fmt.Sprintf("expected %d, got %d", i+1, s.ID)})
		}
		if !s.Action.Valid() {
			errs = append(errs, ValidationError{prefix + ".action", fmt.Sprintf("invalid: %q", s.Action)})
		}
		if strings.TrimSpace(s.Target) == "" {
			errs = append(errs, ValidationError{prefix + ".target", "required"})
		}
		if strings.TrimSpace(s.Description) == "" {
			errs = append(errs, ValidationError{prefix + ".description", "required"})
		}
	}
	return errs
}

// FileSet is the Generator and Fixer response shape.
type FileSet struct {
	Files []vfs.File `json:"files"`
}

// ValidateFiles checks a Generator response. allowEmpty relaxes the
// at-least-one-file rule for the Fixer, which may return nothing.
func ValidateFiles(fs *FileSet, allowEmpty bool) []ValidationError {
	var errs []ValidationError

	if len(fs.Files) == 0 && !allowEmpty {
		errs = append(errs, ValidationError{"files", "at least one file required"})
	}

	seen := make(map[string]bool)
	for i, f := range fs.Files {
		prefix := fmt.Sprintf("files[%d]", i)
		switch {
		case strings.TrimSpace(f.Path) == "":
			errs = append(errs, ValidationError{prefix + ".path", "required"})
		case vfs.ValidPath(f.Path) != nil:
			errs = append(errs, ValidationError{prefix + ".path", vfs.ValidPath(f.Path).Error()})
		case seen[f.Path]:
			errs = append(errs, ValidationError{prefix + ".path", fmt.Sprintf("duplicate path: %q", f.Path)})
		default:
			seen[f.Path] = true
		}
		if strings.TrimSpace(f.Content) == "" {
			errs = append(errs, ValidationError{prefix + ".content", "required"})
			continue
		}
		if m := FindElision(f.Content); m != "" {
			errs = append(errs, ValidationError{prefix + ".content", fmt.Sprintf("contains elision marker %q; full file content required", m)})
		}
	}
	return errs
}

// ValidateResult checks a Validator response.
func ValidateResult(r *validation.Result) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateFindings("errors", r.Errors)...)
	errs = append(errs, validateFindings("warnings", r.Warnings)...)
	return errs
}

func validateFindings(field string, fs []validation.Finding) []ValidationError {
	var errs []ValidationError
	for i, f := range fs {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if !f.Type.Valid() {
			errs = append(errs, ValidationError{prefix + ".type", fmt.Sprintf("invalid: %q", f.Type)})
		}
		if strings.TrimSpace(f.File) == "" {
			errs = append(errs, ValidationError{prefix + ".file", "required"})
		}
		if strings.TrimSpace(f.Message) == "" {
			errs = append(errs, ValidationError{prefix + ".message", "required"})
		}
	}
	return errs
}
