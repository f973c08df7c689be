package build

import (
	"errors"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Outcomes of a build run, one per target in the order requested.
type Report struct {
	Results []Result
}

// Builds a report from unordered results.
func newReport(targets []recipe.Target, results <-chan Result) *Report {
	byImage := make(map[string]Result, len(targets))
	for res := range results {
		byImage[res.Target.Image] = res
	}

	report := &Report{Results: make([]Result, 0, len(targets))}
	for _, t := range targets {
		report.Results = append(report.Results, byImage[t.Image])
	}
	return report
}

// Looks up the result of a target image.
func (r *Report) Result(image string) (Result, bool) {
	for _, res := range r.Results {
		if res.Target.Image == image {
			return res, true
		}
	}
	return Result{}, false
}

// Returns the number of results in the given state.
func (r *Report) Count(state State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == state {
			n++
		}
	}
	return n
}

// Reports whether every target succeeded.
func (r *Report) Succeeded() bool {
	return r.Count(StateSucceeded) == len(r.Results)
}

// Returns the results that did not succeed.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.State != StateSucceeded {
			failed = append(failed, res)
		}
	}
	return failed
}

// Joins the errors of every unsuccessful target, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}
