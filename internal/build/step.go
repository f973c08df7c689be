package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/buildenv"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Maximum number of output bytes kept in a [StepError].
const maxErrorOutput = 4096

// Reports a step that exited with a non-zero code.
//
// Matches [ErrStepExecution] with errors.Is.
type StepError struct {
	Target   string           // Target image.
	Stage    recipe.StageKind // Stage the step belongs to.
	Index    int              // Index of the step within the stage's declared steps.
	Command  string           // Command that failed.
	ExitCode int              // Exit code of the command.
	Output   string           // Tail of the combined output.
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s step %d (%q) exited with code %d", e.Target, e.Stage, e.Index, e.Command, e.ExitCode)
}

func (e *StepError) Unwrap() error {
	return ErrStepExecution
}

// Runs one step in the stage's context.
func (p *pipeline) runStep(ctx context.Context, kind recipe.StageKind, index int, step recipe.Step, bctx buildenv.Context) error {
	p.log.Debug("running step", "stage", kind, "index", index, "command", step.Cmd, "workdir", bctx.Workdir)

	res, err := p.backend.Exec(ctx, p.handle, backend.ExecRequest{
		Command: step.Cmd,
		Shell:   bctx.Shell,
		Workdir: bctx.Workdir,
		Env:     bctx.Environ(),
		Stream:  p.stream,
	})
	if err != nil {
		return fmt.Errorf("%s: %s step %d (%q): %w", p.target.Image, kind, index, step.Cmd, err)
	}

	if res.ExitCode != 0 {
		return &StepError{
			Target:   p.target.Image,
			Stage:    kind,
			Index:    index,
			Command:  step.Cmd,
			ExitCode: res.ExitCode,
			Output:   tail(res.Output, maxErrorOutput),
		}
	}
	return nil
}

// Returns at most the last n bytes of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
