package backend

import (
	"context"
	"io"

	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Provisions, drives and tears down isolated build environments.
//
// Implementations must be safe for concurrent use by multiple jobs; each
// [Handle] is used by one job at a time.
type Backend interface {

	// Verifies that the underlying runtime is reachable. A failure here
	// aborts the whole run before any job starts.
	Check(ctx context.Context) error

	// Provisions an environment from the request's image and installs the
	// requested build dependencies. Errors wrap [ErrEnvironmentSetup].
	Create(ctx context.Context, req CreateRequest) (Handle, error)

	// Runs req.Command as "req.Shell -c req.Command". A non-zero exit code
	// is reported in the result, not as an error; errors are reserved for
	// failures to run the command at all. Cancelling ctx terminates the
	// running command.
	Exec(ctx context.Context, h Handle, req ExecRequest) (*ExecResult, error)

	// Creates a directory and its parents inside the environment.
	MkdirAll(ctx context.Context, h Handle, path string) error

	// Writes a tar stream of path to w. Entry names are relative to path
	// ("." for path itself). Errors wrap [ErrPathNotFound] when path does
	// not exist.
	Archive(ctx context.Context, h Handle, path string, w io.Writer) error

	// Unpacks the tar stream r into dir, creating dir when missing. A read
	// error from r fails the extraction.
	Extract(ctx context.Context, h Handle, dir string, r io.Reader) error

	// Removes the environment and everything in it. Destroying an already
	// destroyed handle is not an error.
	Destroy(ctx context.Context, h Handle) error
}

// A live build environment.
type Handle interface {
	ID() string      // Unique identifier of the environment.
	Workdir() string // Default working directory of the environment.
}

// Describes the environment a job needs.
type CreateRequest struct {
	ID     string        // Environment identifier, unique per job.
	Target recipe.Target // Target whose image seeds the environment.
	Deps   []string      // Build dependencies to install before returning.
}

// Describes one command execution.
type ExecRequest struct {
	Command string    // Command string passed to the shell.
	Shell   string    // Shell binary, e.g. "/bin/sh".
	Workdir string    // Working directory of the process.
	Env     []string  // Complete environment as "key=value"; nothing else is inherited.
	Stream  io.Writer // Optional sink receiving combined output while it is produced.
}

// Outcome of a command execution.
type ExecResult struct {
	ExitCode int    // Exit code of the process.
	Output   string // Combined stdout and stderr.
}
