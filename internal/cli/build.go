package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cruciblehq/cruxpkg/internal"
	"github.com/cruciblehq/cruxpkg/internal/artifact"
	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/backend/mock"
	"github.com/cruciblehq/cruxpkg/internal/build"
	"github.com/cruciblehq/cruxpkg/internal/protocol"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
	"github.com/cruciblehq/cruxpkg/internal/runtime"
	"github.com/cruciblehq/cruxpkg/internal/server"
	"github.com/cruciblehq/cruxpkg/internal/settings"
)

// Represents the 'cruxpkg build' command.
type BuildCmd struct {
	Recipe   string        `arg:"" help:"Recipe file." type:"existingfile"`
	Target   []string      `short:"t" help:"Target image to build; repeatable. Defaults to every image." placeholder:"IMAGE"`
	Parallel int           `short:"j" help:"Maximum number of targets built at once. Overrides the settings file." placeholder:"N"`
	Timeout  time.Duration `help:"Per-target time limit, e.g. 30m. Overrides the settings file." placeholder:"DURATION"`
	Output   string        `short:"o" help:"Directory receiving package manifests." placeholder:"DIR" type:"path"`
	Stage    string        `help:"Directory receiving the collected install trees." placeholder:"DIR" type:"path"`
	DryRun   bool          `help:"Run the steps against an in-memory environment instead of containerd."`
	Remote   bool          `short:"r" help:"Submit the build to the daemon instead of running it in-process."`
}

// Executes the build command.
//
// The outcome of every target is printed as a table. The command fails when
// any target does not succeed.
func (c *BuildCmd) Run(ctx context.Context) error {
	s, err := settings.Load(RootCmd.Config)
	if err != nil {
		return err
	}
	c.apply(s)

	if c.Remote {
		return c.submit(ctx, s)
	}

	r, err := recipe.Load(c.Recipe)
	if err != nil {
		return err
	}

	b, closeBackend, err := c.backend(s)
	if err != nil {
		return err
	}
	defer closeBackend()

	opts := build.Options{
		Recipe:      r,
		Targets:     c.Target,
		Parallelism: s.Build.Parallelism,
		JobTimeout:  s.Build.JobTimeout,
		StageDir:    s.Build.StageDir,
		OnPhase: func(target string, phase build.Phase) {
			slog.Debug("phase", "target", target, "phase", phase)
		},
	}
	if s.Build.OutputDir != "" {
		opts.Writer = artifact.DirWriter{Dir: s.Build.OutputDir}
	}
	if internal.IsVerbose() {
		opts.Stream = os.Stderr
	}

	report, err := build.Run(ctx, b, opts)
	if err != nil {
		return err
	}

	if err := renderResult(os.Stdout, protocol.NewBuildResult(r, report)); err != nil {
		return err
	}
	return report.Err()
}

// Overrides the settings with the flags that were given.
func (c *BuildCmd) apply(s *settings.Settings) {
	if c.Parallel > 0 {
		s.Build.Parallelism = c.Parallel
	}
	if c.Timeout > 0 {
		s.Build.JobTimeout = c.Timeout
	}
	if c.Output != "" {
		s.Build.OutputDir = c.Output
	}
	if c.Stage != "" {
		s.Build.StageDir = c.Stage
	}
	if RootCmd.Socket != "" {
		s.Daemon.Socket = RootCmd.Socket
	}
}

// Returns the backend selected by the flags and a function releasing it.
func (c *BuildCmd) backend(s *settings.Settings) (backend.Backend, func(), error) {
	if c.DryRun {
		slog.Info("dry run, steps are interpreted in memory")
		b := mock.New()
		b.ExecFunc = mock.Interpret
		return b, func() {}, nil
	}

	rt, err := runtime.New(s.Runtime())
	if err != nil {
		return nil, nil, err
	}
	return rt, func() { rt.Close() }, nil
}

// Submits the build to the daemon and prints its result.
func (c *BuildCmd) submit(ctx context.Context, s *settings.Settings) error {
	if c.DryRun {
		return fmt.Errorf("--dry-run cannot be combined with --remote")
	}

	path, err := filepath.Abs(c.Recipe)
	if err != nil {
		return err
	}

	req := &protocol.BuildRequest{
		Recipe:      path,
		Targets:     c.Target,
		Parallelism: c.Parallel,
		Output:      c.Output,
	}
	if c.Timeout > 0 {
		req.JobTimeout = c.Timeout.String()
	}

	raw, err := server.Request(ctx, s.Daemon.Socket, protocol.CmdBuild, req, func(env *protocol.Envelope) {
		if ev, err := protocol.DecodePayload[protocol.PhaseEvent](env.Payload); err == nil {
			slog.Info("phase", "target", ev.Target, "phase", ev.Phase)
		}
	})
	if err != nil {
		return err
	}

	res, err := protocol.DecodePayload[protocol.BuildResult](raw)
	if err != nil {
		return err
	}

	if err := renderResult(os.Stdout, res); err != nil {
		return err
	}
	return resultErr(res)
}

// Returns an error naming the targets that did not succeed, or nil.
func resultErr(res *protocol.BuildResult) error {
	failed := res.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d targets did not succeed", len(failed), len(res.Targets))
}
