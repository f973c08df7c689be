package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/buildenv"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Progress of a job through the stages.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseConfigure
	PhaseBuild
	PhaseInstall
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not started"
	case PhaseConfigure:
		return "configure"
	case PhaseBuild:
		return "build"
	case PhaseInstall:
		return "install"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Returns the phase that runs a stage.
func stagePhase(kind recipe.StageKind) Phase {
	switch kind {
	case recipe.Configure:
		return PhaseConfigure
	case recipe.Build:
		return PhaseBuild
	default:
		return PhaseInstall
	}
}

// Drives one environment through configure, build and install.
type pipeline struct {
	backend backend.Backend // Backend running the steps.
	handle  backend.Handle  // Environment of the job.
	recipe  *recipe.Recipe  // Recipe being built.
	target  recipe.Target   // Target the environment was created for.
	dirs    buildenv.Dirs   // Per-job directories.
	stream  io.Writer       // Step output sink, may be nil.
	log     *slog.Logger    // Job-scoped logger.
	onPhase func(Phase)     // Called on every transition, may be nil.
	phase   Phase           // Current phase.
}

// Runs the stages in order.
//
// Empty stages pass straight through. The first failing step stops the
// pipeline in [PhaseFailed] and its error is returned.
func (p *pipeline) run(ctx context.Context) error {
	for _, kind := range recipe.StageKinds() {
		p.enter(stagePhase(kind))
		if err := p.runStage(ctx, kind); err != nil {
			p.enter(PhaseFailed)
			return err
		}
	}
	p.enter(PhaseSucceeded)
	return nil
}

// Runs the steps of one stage that apply to the target.
//
// The stage's working directory is created before its first included step,
// so a stage whose steps are all filtered out leaves no trace.
func (p *pipeline) runStage(ctx context.Context, kind recipe.StageKind) error {
	stage := p.recipe.Stage(kind)
	if stage.Empty() {
		return nil
	}

	if kind != recipe.Configure && stage.WorkingDir != "" {
		p.log.Warn("working_dir is only honored for the configure stage", "stage", kind, "working_dir", stage.WorkingDir)
	}

	bctx := buildenv.Resolve(p.recipe, p.target, kind, p.dirs, p.handle.Workdir())
	prepared := false

	for i, step := range stage.Steps {
		if !step.RunsOn(p.target.Image) {
			p.log.Debug("skipping step", "stage", kind, "index", i, "images", step.Images)
			continue
		}

		if !prepared {
			if err := p.backend.MkdirAll(ctx, p.handle, bctx.Workdir); err != nil {
				return fmt.Errorf("%s stage working directory %s: %w", kind, bctx.Workdir, err)
			}
			prepared = true
		}

		if err := p.runStep(ctx, kind, i, step, bctx); err != nil {
			return err
		}
	}
	return nil
}

// Records a phase transition.
func (p *pipeline) enter(phase Phase) {
	if p.phase == phase {
		return
	}
	p.log.Debug("phase", "from", p.phase, "to", phase)
	p.phase = phase
	if p.onPhase != nil {
		p.onPhase(phase)
	}
}
