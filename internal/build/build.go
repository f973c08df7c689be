package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cruciblehq/cruxpkg/internal/artifact"
	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
	"github.com/cruciblehq/cruxpkg/internal/source"
)

// Receives the collected artifacts of a succeeded target.
//
// Implementations turn the manifest into a native package. They are called
// concurrently for different targets.
type PackageWriter interface {
	Write(ctx context.Context, t recipe.Target, m *artifact.Manifest, meta recipe.Metadata) error
}

// Controls a build run.
type Options struct {
	Recipe      *recipe.Recipe                   // Recipe to build.
	Targets     []string                         // Target images to build. Empty builds every target.
	Parallelism int                              // Maximum concurrent jobs. Zero or less runs all targets at once.
	JobTimeout  time.Duration                    // Per-job time limit. Zero disables it.
	StageDir    string                           // Host directory receiving collected files, one subdirectory per target.
	Writer      PackageWriter                    // Optional package writer.
	Stream      io.Writer                        // Optional sink for step output, prefixed with "[image] ".
	NewJobID    func() string                    // Job ID generator. Defaults to random UUIDs.
	OnPhase     func(target string, phase Phase) // Optional phase observer, called concurrently from jobs.
	Fetcher     *source.Fetcher                  // Retrieves metadata.source. Defaults to [source.NewFetcher].
}

// Builds every selected target of a recipe.
//
// Each target runs as an independent job in its own environment; one
// target failing never affects another. The returned error is non-nil only
// when the run could not start: the recipe is invalid, a selected target is
// not declared, or the backend is unavailable. Job failures are reported in
// the [Report].
func Run(ctx context.Context, b backend.Backend, opts Options) (*Report, error) {
	if opts.Recipe == nil {
		return nil, fmt.Errorf("%w: no recipe", recipe.ErrRecipeValidation)
	}
	if err := opts.Recipe.Validate(); err != nil {
		return nil, err
	}

	targets, err := selectTargets(opts.Recipe, opts.Targets)
	if err != nil {
		return nil, err
	}

	// A run cancelled before it starts reports every target as cancelled
	// rather than blaming the backend.
	if ctx.Err() == nil {
		if err := b.Check(ctx); err != nil {
			if !errors.Is(err, backend.ErrRuntimeUnavailable) {
				err = fmt.Errorf("%w: %w", backend.ErrRuntimeUnavailable, err)
			}
			return nil, err
		}
	}

	limit := opts.Parallelism
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}

	newID := opts.NewJobID
	if newID == nil {
		newID = uuid.NewString
	}
	if opts.Fetcher == nil {
		opts.Fetcher = source.NewFetcher()
	}

	var stream io.Writer
	if opts.Stream != nil {
		stream = &syncWriter{w: opts.Stream}
	}

	slog.Info("starting build",
		"package", opts.Recipe.Metadata.Name,
		"version", opts.Recipe.Metadata.Version,
		"targets", len(targets),
		"parallelism", limit,
	)

	// Jobs never return errors, so a plain group does not cancel siblings.
	var g errgroup.Group
	g.SetLimit(limit)

	results := make(chan Result, len(targets))
	for _, t := range targets {
		j := newJob(opts.Recipe, t, b, newID(), &opts, stream)
		g.Go(func() error {
			results <- j.run(ctx)
			return nil
		})
	}
	g.Wait()
	close(results)

	report := newReport(targets, results)
	slog.Info("build finished", "succeeded", report.Count(StateSucceeded), "failed", report.Count(StateFailed), "cancelled", report.Count(StateCancelled))
	return report, nil
}

// Returns the targets to build, in the order requested.
//
// Empty selection means every target in declaration order. Duplicates are
// built once.
func selectTargets(r *recipe.Recipe, images []string) ([]recipe.Target, error) {
	if len(images) == 0 {
		return append([]recipe.Target(nil), r.Targets...), nil
	}

	var targets []recipe.Target
	seen := make(map[string]bool, len(images))
	var unknown []string
	for _, image := range images {
		if seen[image] {
			continue
		}
		seen[image] = true

		t, ok := r.Target(image)
		if !ok {
			unknown = append(unknown, image)
			continue
		}
		targets = append(targets, t)
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %v (declared: %v)", ErrUnknownTarget, unknown, r.Images())
	}
	return targets, nil
}
