// Package build runs package recipes against an execution backend.
//
// [Run] starts one job per selected target. Each job creates an isolated
// environment from the target's image, creates the per-job build and output
// directories, and drives the environment through the configure, build and
// install stages. Steps whose image filter excludes the target are skipped.
// After a successful install the output directory is collected into an
// [artifact.Manifest] and handed to the optional [PackageWriter].
//
// Jobs are independent. A failing step, a timeout or a setup error fails
// only its own target; cancelling the run context cancels every job and
// kills the running steps. Environments are destroyed on every path,
// including panics, which are reported as [ErrInternal] failures. The
// outcome of every target is collected into a [Report].
//
// Example usage:
//
//	r, err := recipe.Load("recipe.yml")
//	if err != nil {
//	    return err
//	}
//
//	report, err := build.Run(ctx, rt, build.Options{
//	    Recipe:      r,
//	    Parallelism: 2,
//	    JobTimeout:  30 * time.Minute,
//	    Writer:      artifact.DirWriter{Dir: "out"},
//	    Stream:      os.Stderr,
//	})
//	if err != nil {
//	    return err
//	}
//	if !report.Succeeded() {
//	    return report.Err()
//	}
package build
