package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/cruciblehq/cruxpkg/internal/backend"
)

// Sequence counter for generating unique exec process identifiers.
var execSeq uint64

// Returns a unique exec process identifier.
func nextExecID() string {
	return fmt.Sprintf("exec-%d", atomic.AddUint64(&execSeq, 1))
}

// Runs a shell command inside the container.
//
// The command runs as "shell -c command" with exactly the environment in
// req.Env; PATH from the image config is added when req.Env lacks one.
// Standard output and standard error are captured together and mirrored to
// req.Stream as they are produced. A non-zero exit code is not an error.
// When ctx is cancelled the process is killed and ctx's error is returned.
func (c *Container) Exec(ctx context.Context, req backend.ExecRequest) (*backend.ExecResult, error) {
	var output bytes.Buffer
	var sink io.Writer = &output
	if req.Stream != nil {
		sink = io.MultiWriter(&output, req.Stream)
	}

	// Stdout and stderr are copied by separate goroutines.
	w := &lockedWriter{w: sink}

	workdir := req.Workdir
	if workdir == "" {
		workdir = c.workdir
	}

	env := processEnv(req.Env, c.path)
	exitCode, err := c.execCommand(ctx, nil, w, w, env, workdir, valueOr(req.Shell, "/bin/sh"), "-c", req.Command)
	if err != nil {
		return nil, err
	}

	return &backend.ExecResult{
		ExitCode: exitCode,
		Output:   output.String(),
	}, nil
}

// Returns env with PATH added from the image when env does not set it.
func processEnv(env []string, imagePath string) []string {
	result := make([]string, 0, len(env)+1)
	hasPath := false
	for _, entry := range env {
		k, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			hasPath = true
		}
		result = append(result, entry)
	}
	if !hasPath && imagePath != "" {
		result = append(result, "PATH="+imagePath)
	}
	return result
}

// Builds an OCI process spec for running a command inside the container.
//
// The base values are copied from the container's own OCI spec. The
// environment is replaced entirely and the working directory is overridden.
func (c *Container) buildProcessSpec(ctx context.Context, env []string, workdir string, args ...string) (*specs.Process, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, err
	}

	spec, err := ctr.Spec(ctx)
	if err != nil {
		return nil, err
	}

	pspec := *spec.Process
	pspec.Terminal = false
	pspec.Args = args
	pspec.Env = env
	if workdir != "" {
		pspec.Cwd = workdir
	}

	return &pspec, nil
}

// Runs a command inside the container and returns its exit code.
//
// A non-nil stdin is fed to the process and closed once it is exhausted.
func (c *Container) execCommand(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, env []string, workdir string, args ...string) (int, error) {
	pspec, err := c.buildProcessSpec(ctx, env, workdir, args...)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return 0, fmt.Errorf("%w: %s", backend.ErrHandleDestroyed, c.id)
		}
		return 0, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	return c.execProcess(ctx, pspec, stdin, stdout, stderr)
}

// Starts a process inside the container's running task, waits for it to
// exit, and returns the exit code.
//
// The process is attached to the task as an additional exec. Nil streams
// are replaced with io.Discard.
func (c *Container) execProcess(ctx context.Context, pspec *specs.Process, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	task, err := c.loadTask(ctx)
	if err != nil {
		return 0, err
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	var in *stdinReader
	var streamIn io.Reader
	var stdinDone <-chan struct{}
	if stdin != nil {
		in = newStdinReader(stdin)
		streamIn, stdinDone = in, in.done
	}

	process, err := task.Exec(ctx, nextExecID(), pspec, cio.NewCreator(
		cio.WithStreams(streamIn, stdout, stderr),
	))
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	code, err := awaitProcess(ctx, process, stdinDone)
	if err == nil && in != nil {
		if rerr := in.Err(); rerr != nil {
			return code, fmt.Errorf("%w: reading stdin: %w", backend.ErrExec, rerr)
		}
	}
	return code, err
}

// Loads the container's running task.
func (c *Container) loadTask(ctx context.Context) (containerd.Task, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", backend.ErrHandleDestroyed, c.id)
		}
		return nil, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	return task, nil
}

// Waits for an exec process to exit and returns the exit code.
//
// Waiting is detached from ctx so that the exit status is still collected
// after a kill. When ctx is done first, the process is killed with SIGKILL
// and ctx's error is returned. The process is always deleted before
// returning. When stdinDone is non-nil the process's stdin is closed as
// soon as the channel is closed.
func awaitProcess(ctx context.Context, process containerd.Process, stdinDone <-chan struct{}) (int, error) {
	detached := context.WithoutCancel(ctx)

	statusC, err := process.Wait(detached)
	if err != nil {
		process.Delete(detached)
		return 0, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	if err := process.Start(ctx); err != nil {
		process.Delete(detached)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	if stdinDone != nil {
		exited := make(chan struct{})
		defer close(exited)
		go func() {
			select {
			case <-stdinDone:
				process.CloseIO(detached, containerd.WithStdinCloser)
			case <-exited:
			}
		}()
	}

	var exitStatus containerd.ExitStatus
	select {
	case exitStatus = <-statusC:
	case <-ctx.Done():
		process.Kill(detached, unix.SIGKILL)
		<-statusC
		process.Delete(detached)
		return 0, ctx.Err()
	}
	process.Delete(detached)

	code, _, err := exitStatus.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %w", backend.ErrExec, ErrRuntime, err)
	}

	return int(code), nil
}

// Serializes writes from concurrent stream copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Writes p while holding the lock.
func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
