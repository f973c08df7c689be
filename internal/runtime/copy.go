package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cruciblehq/cruxpkg/internal/backend"
)

// Creates a directory inside the container, including parents.
func (c *Container) MkdirAll(ctx context.Context, path string) error {
	return c.mustExec(ctx, "mkdir", nil, nil, "mkdir", "-p", path)
}

// Copies a directory from the container's filesystem as a tar stream.
//
// The directory is archived by running "tar cf - -C <path> ." inside the
// container, so entry names are relative to path. Returns an error wrapping
// [backend.ErrPathNotFound] when path is not a directory.
func (c *Container) CopyFrom(ctx context.Context, w io.Writer, path string) error {
	code, err := c.execCommand(ctx, nil, nil, nil, c.baseEnv(), "/", "test", "-d", path)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%w: %s", backend.ErrPathNotFound, path)
	}
	return c.mustExec(ctx, "tar archive", nil, w, "tar", "cf", "-", "-C", path, ".")
}

// Unpacks the tar stream r into dir inside the container.
//
// The stream is piped to "tar xf - -C <dir>" and dir is created first.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, dir string) error {
	if err := c.MkdirAll(ctx, dir); err != nil {
		return err
	}
	return c.mustExec(ctx, "tar extract", r, nil, "tar", "xf", "-", "-C", dir)
}

// Runs a command inside the container, returning an error that includes
// desc if the process exits with a non-zero code.
func (c *Container) mustExec(ctx context.Context, desc string, stdin io.Reader, stdout io.Writer, args ...string) error {
	var stderr bytes.Buffer
	code, err := c.execCommand(ctx, stdin, stdout, &stderr, c.baseEnv(), "/", args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%w: %s failed with exit code %d (%s)", backend.ErrExec, desc, code, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// Returns the environment for internal helper commands.
func (c *Container) baseEnv() []string {
	return processEnv(nil, c.path)
}
