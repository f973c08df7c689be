package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/cruciblehq/cruxpkg/internal/artifact"
	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/buildenv"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
	"github.com/cruciblehq/cruxpkg/internal/source"
)

// Time allowed for tearing down an environment.
const destroyTimeout = 2 * time.Minute

// Lifecycle state of a job.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Build dependencies installed for every target of a format unless the
// recipe skips them.
var defaultDeps = map[recipe.Format][]string{
	recipe.FormatDeb:  {"dpkg-dev", "gzip", "tar"},
	recipe.FormatRPM:  {"gzip", "rpm-build", "tar"},
	recipe.FormatPkg:  {"base-devel"},
	recipe.FormatApk:  {"alpine-sdk"},
	recipe.FormatGzip: {"gzip", "tar"},
}

// Outcome of one target.
type Result struct {
	Target   recipe.Target      // Target that was built.
	JobID    string             // Identifier of the job.
	State    State              // Final state.
	Phase    Phase              // Last phase reached.
	Err      error              // Failure or cancellation cause; nil on success.
	Manifest *artifact.Manifest // Collected artifacts; nil unless succeeded.
	Duration time.Duration      // Wall time of the job.
}

// Builds one target in its own environment.
type job struct {
	id       string
	recipe   *recipe.Recipe
	target   recipe.Target
	dirs     buildenv.Dirs
	backend  backend.Backend
	writer   PackageWriter
	fetcher  *source.Fetcher
	stream   *prefixWriter // Nil when output is not streamed.
	stageDir string        // Host staging directory; empty skips extraction.
	timeout  time.Duration
	onPhase  func(target string, phase Phase)
	log      *slog.Logger
	phase    Phase
}

// Creates a job for a target.
func newJob(r *recipe.Recipe, t recipe.Target, b backend.Backend, id string, opts *Options, stream io.Writer) *job {
	j := &job{
		id:      id,
		recipe:  r,
		target:  t,
		dirs:    buildenv.NewDirs(r.Metadata.Name, id),
		backend: b,
		writer:  opts.Writer,
		fetcher: opts.Fetcher,
		timeout: opts.JobTimeout,
		onPhase: opts.OnPhase,
		log:     slog.With("target", t.Image, "job", id),
	}
	if stream != nil {
		j.stream = newPrefixWriter(stream, "["+t.Image+"] ")
	}
	if opts.StageDir != "" {
		j.stageDir = filepath.Join(opts.StageDir, t.PathName())
	}
	return j
}

// Runs the job to completion and reports its outcome.
//
// It never panics and never returns before the environment, if one was
// created, has been destroyed.
func (j *job) run(parent context.Context) (res Result) {
	start := time.Now()
	res = Result{Target: j.target, JobID: j.id, State: StateRunning}

	ctx, cancel := parent, context.CancelFunc(func() {})
	if j.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, j.timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			j.log.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			res.State = StateFailed
			res.Err = fmt.Errorf("%w: %s: %v", ErrInternal, j.target.Image, r)
			res.Manifest = nil
			j.removeStage()
		}
		res.Phase = j.phase
		res.Duration = time.Since(start)
		if j.stream != nil {
			j.stream.Flush()
		}
	}()

	if err := parent.Err(); err != nil {
		res.State = StateCancelled
		res.Err = fmt.Errorf("%w: %s: %w", ErrCancelled, j.target.Image, err)
		return res
	}

	j.log.Info("job started", "os", j.target.OS, "format", j.target.Format)

	m, err := j.execute(ctx)
	switch {
	case err == nil:
		res.State = StateSucceeded
		res.Manifest = m
		j.log.Info("job succeeded", "entries", m.Len(), "duration", time.Since(start))
		return res

	case parent.Err() != nil:
		res.State = StateCancelled
		res.Err = fmt.Errorf("%w: %s: %w", ErrCancelled, j.target.Image, err)
		j.log.Warn("job cancelled", "error", err)

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.State = StateFailed
		res.Err = fmt.Errorf("%w: %s after %s: %w", ErrTimeout, j.target.Image, j.timeout, err)
		j.log.Error("job timed out", "timeout", j.timeout, "phase", j.phase)

	default:
		res.State = StateFailed
		res.Err = err
		j.log.Error("job failed", "phase", j.phase, "error", err)
	}

	j.removeStage()
	return res
}

// Creates the environment, runs the pipeline, collects and hands off the
// artifacts. The environment is destroyed on every path out.
func (j *job) execute(ctx context.Context) (*artifact.Manifest, error) {
	h, err := j.backend.Create(ctx, backend.CreateRequest{
		ID:     j.envID(),
		Target: j.target,
		Deps:   j.deps(),
	})
	if err != nil {
		return nil, err
	}
	defer j.destroy(ctx, h)

	for _, dir := range []string{j.dirs.Build, j.dirs.Out} {
		if err := j.backend.MkdirAll(ctx, h, dir); err != nil {
			return nil, fmt.Errorf("%w: %s: creating %s: %w", backend.ErrEnvironmentSetup, j.target.Image, dir, err)
		}
	}

	if err := j.fetch(ctx, h); err != nil {
		j.enter(PhaseFailed)
		return nil, err
	}

	p := &pipeline{
		backend: j.backend,
		handle:  h,
		recipe:  j.recipe,
		target:  j.target,
		dirs:    j.dirs,
		log:     j.log,
		onPhase: j.enter,
		phase:   j.phase,
	}
	if j.stream != nil {
		p.stream = j.stream
	}
	if err := p.run(ctx); err != nil {
		return nil, err
	}

	src := artifact.SourceFunc(func(ctx context.Context, w io.Writer) error {
		return j.backend.Archive(ctx, h, j.dirs.Out, w)
	})
	m, err := artifact.Collect(ctx, src, artifact.Options{
		Exclude:  j.recipe.Metadata.Exclude,
		StageDir: j.stageDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", j.target.Image, j.dirs.Out, err)
	}

	if j.writer != nil {
		if err := j.writer.Write(ctx, j.target, m, j.recipe.Metadata); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPackageWrite, j.target.Image, err)
		}
	}

	return m, nil
}

// Places the recipe's source in the build directory.
//
// A tarball or host directory is unpacked there; a git repository is
// cloned into it by the environment's git. Recipes without a source
// leave the directory empty.
func (j *job) fetch(ctx context.Context, h backend.Handle) error {
	m := j.recipe.Metadata
	switch {
	case m.Source != "":
		j.log.Info("fetching source", "source", m.Source)
		rc, err := j.fetcher.Open(ctx, m.Source, j.recipe.Dir)
		if err != nil {
			return fmt.Errorf("%s: %w", j.target.Image, err)
		}
		defer rc.Close()
		if err := j.backend.Extract(ctx, h, j.dirs.Build, rc); err != nil {
			return fmt.Errorf("%w: %s: unpacking %s: %w", source.ErrSourceFetch, j.target.Image, m.Source, err)
		}

	case m.Git != nil:
		j.log.Info("cloning source", "url", m.Git.URL, "branch", m.Git.Branch)
		args := []string{"git", "clone", "--depth", "1"}
		if m.Git.Branch != "" {
			args = append(args, "--branch", shellQuote(m.Git.Branch))
		}
		args = append(args, "--", shellQuote(m.Git.URL), ".")

		req := backend.ExecRequest{
			Command: strings.Join(args, " "),
			Shell:   "/bin/sh",
			Workdir: j.dirs.Build,
			Env:     buildenv.Context{Env: buildenv.Environment(j.recipe, j.target, j.dirs)}.Environ(),
		}
		if j.stream != nil {
			req.Stream = j.stream
		}
		res, err := j.backend.Exec(ctx, h, req)
		if err != nil {
			return fmt.Errorf("%w: %s: cloning %s: %w", source.ErrSourceFetch, j.target.Image, m.Git.URL, err)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("%w: %s: git clone %s exited with code %d", source.ErrSourceFetch, j.target.Image, m.Git.URL, res.ExitCode)
		}
	}
	return nil
}

// Quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Destroys the environment on a context that survives cancellation.
func (j *job) destroy(ctx context.Context, h backend.Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
	defer cancel()

	if err := j.backend.Destroy(ctx, h); err != nil {
		j.log.Warn("failed to destroy environment", "id", h.ID(), "error", err)
	}
}

// Records a phase transition and notifies the observer.
func (j *job) enter(phase Phase) {
	j.phase = phase
	if j.onPhase != nil {
		j.onPhase(j.target.Image, phase)
	}
}

// Removes partially staged files.
func (j *job) removeStage() {
	if j.stageDir == "" {
		return
	}
	if err := os.RemoveAll(j.stageDir); err != nil {
		j.log.Warn("failed to remove staging directory", "dir", j.stageDir, "error", err)
	}
}

// Returns the environment identifier.
func (j *job) envID() string {
	return fmt.Sprintf("%s-%s-%s", j.recipe.Metadata.Name, j.target.PathName(), j.id)
}

// Returns the build dependencies of the target.
//
// The format's default dependencies are added unless the recipe skips
// them. The result is sorted and free of duplicates.
func (j *job) deps() []string {
	deps := j.recipe.Metadata.BuildDepends.For(j.target.Image)
	if !j.recipe.Metadata.SkipDefaultDeps {
		deps = append(deps, defaultDeps[j.target.Format]...)
	}
	if j.recipe.Metadata.Git != nil {
		deps = append(deps, "git")
	}
	slices.Sort(deps)
	return slices.Compact(deps)
}
