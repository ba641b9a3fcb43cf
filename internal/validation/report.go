package validation

import (
	"fmt"

	"github.com/itchan-dev/crosspost/shared/domain"
)

// Report collects blocking problems and advisory warnings. Problems are data
// for the caller to render, never errors.
type Report struct {
	Problems []domain.Problem `json:"problems,omitempty"`
	Warnings []domain.Problem `json:"warnings,omitempty"`
}

func (r *Report) Problem(context, format string, args ...any) {
	r.Problems = append(r.Problems, domain.Problem{Message: fmt.Sprintf(format, args...), Context: context})
}

func (r *Report) Warn(context, format string, args ...any) {
	r.Warnings = append(r.Warnings, domain.Problem{Message: fmt.Sprintf(format, args...), Context: context})
}

func (r *Report) Merge(other Report) {
	r.Problems = append(r.Problems, other.Problems...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Blocked reports whether posting must not proceed.
func (r Report) Blocked() bool {
	return len(r.Problems) > 0
}

// ApplyTo appends the findings to the submission's accumulated lists.
func (r Report) ApplyTo(sub *domain.Submission) {
	sub.Problems = append(sub.Problems, r.Problems...)
	sub.Warnings = append(sub.Warnings, r.Warnings...)
}
