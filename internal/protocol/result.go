package protocol

import (
	"github.com/cruciblehq/cruxpkg/internal/build"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Converts a build report into its wire form.
func NewBuildResult(r *recipe.Recipe, report *build.Report) *BuildResult {
	res := &BuildResult{
		Package: r.Metadata.Name,
		Version: r.Metadata.Version,
		Targets: make([]TargetResult, 0, len(report.Results)),
	}

	for _, jr := range report.Results {
		tr := TargetResult{
			Image:    jr.Target.Image,
			OS:       jr.Target.OS.String(),
			Format:   string(jr.Target.Format),
			JobID:    jr.JobID,
			State:    jr.State.String(),
			Phase:    jr.Phase.String(),
			Duration: jr.Duration.String(),
		}
		if jr.Manifest != nil {
			tr.Entries = jr.Manifest.Len()
		}
		if jr.Err != nil {
			tr.Error = jr.Err.Error()
		}
		res.Targets = append(res.Targets, tr)
	}

	return res
}

// Returns the targets that did not succeed.
func (r *BuildResult) Failed() []TargetResult {
	var failed []TargetResult
	for _, t := range r.Targets {
		if t.State != build.StateSucceeded.String() {
			failed = append(failed, t)
		}
	}
	return failed
}
