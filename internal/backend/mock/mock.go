package mock

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/cruciblehq/cruxpkg/internal/backend"
)

// Names of recorded operations.
const (
	OpCreate  = "create"
	OpExec    = "exec"
	OpMkdir   = "mkdir"
	OpArchive = "archive"
	OpExtract = "extract"
	OpDestroy = "destroy"
)

// Default working directory of mock environments.
const DefaultWorkdir = "/"

// Runs a command inside an environment, returning the exit code and the
// combined output.
type ExecFunc func(ctx context.Context, env *Env, req backend.ExecRequest) (int, string, error)

// One recorded backend call.
type Call struct {
	Op    string              // One of the Op constants.
	Env   string              // Environment ID.
	Image string              // Target image of the environment.
	Exec  backend.ExecRequest // Request, for OpExec calls.
	Path  string              // Path, for OpMkdir, OpArchive and OpExtract calls.
}

// An in-memory [backend.Backend].
//
// The exported fields configure behavior and must be set before the backend
// is used.
type Backend struct {
	CheckErr   error                                                      // Returned by Check.
	CreateFunc func(ctx context.Context, req backend.CreateRequest) error // Optional hook; an error fails Create.
	ExecFunc   ExecFunc                                                   // Runs commands; nil succeeds with no output.
	Workdir    string                                                     // Default workdir of new environments.

	mu        sync.Mutex
	envs      []*Env // Every environment ever created, in creation order.
	live      int    // Environments created and not yet destroyed.
	destroyed int    // Number of environments destroyed.
	calls     []Call // Every call, in order.
}

var _ backend.Backend = (*Backend)(nil)

// Creates a mock backend whose commands all succeed.
func New() *Backend {
	return &Backend{Workdir: DefaultWorkdir}
}

// Returns CheckErr.
func (b *Backend) Check(ctx context.Context) error {
	if b.CheckErr != nil {
		return fmt.Errorf("%w: %w", backend.ErrRuntimeUnavailable, b.CheckErr)
	}
	return nil
}

// Creates an empty in-memory environment.
func (b *Backend) Create(ctx context.Context, req backend.CreateRequest) (backend.Handle, error) {
	b.record(Call{Op: OpCreate, Env: req.ID, Image: req.Target.Image})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrEnvironmentSetup, err)
	}
	if b.CreateFunc != nil {
		if err := b.CreateFunc(ctx, req); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", backend.ErrEnvironmentSetup, req.Target.Image, err)
		}
	}

	workdir := b.Workdir
	if workdir == "" {
		workdir = DefaultWorkdir
	}
	env := newEnv(req, workdir)

	b.mu.Lock()
	b.envs = append(b.envs, env)
	b.live++
	b.mu.Unlock()

	return env, nil
}

// Runs the command through ExecFunc.
func (b *Backend) Exec(ctx context.Context, h backend.Handle, req backend.ExecRequest) (*backend.ExecResult, error) {
	env, err := b.env(h)
	if err != nil {
		return nil, err
	}
	b.record(Call{Op: OpExec, Env: env.id, Image: env.target.Image, Exec: req})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrExec, err)
	}

	code, output := 0, ""
	if b.ExecFunc != nil {
		code, output, err = b.ExecFunc(ctx, env, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrExec, err)
		}
	}

	if req.Stream != nil && output != "" {
		io.WriteString(req.Stream, output)
	}
	return &backend.ExecResult{ExitCode: code, Output: output}, nil
}

// Adds a directory and its parents to the environment's filesystem.
func (b *Backend) MkdirAll(ctx context.Context, h backend.Handle, p string) error {
	env, err := b.env(h)
	if err != nil {
		return err
	}
	b.record(Call{Op: OpMkdir, Env: env.id, Image: env.target.Image, Path: p})
	env.MkdirAll(p)
	return nil
}

// Streams the tree below p as a tar archive.
func (b *Backend) Archive(ctx context.Context, h backend.Handle, p string, w io.Writer) error {
	env, err := b.env(h)
	if err != nil {
		return err
	}
	b.record(Call{Op: OpArchive, Env: env.id, Image: env.target.Image, Path: p})

	root := clean("/", p)
	entries, ok := env.tree(root)
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrPathNotFound, root)
	}

	tw := tar.NewWriter(w)
	for _, e := range entries {
		name := "."
		if e.path != root {
			name = "./" + strings.TrimPrefix(e.path, strings.TrimSuffix(root, "/")+"/")
		}
		if err := writeEntry(tw, name, e.file); err != nil {
			return err
		}
	}
	return tw.Close()
}

// Unpacks directories, regular files and symlinks of the tar stream below
// dir. Other entry types are skipped.
func (b *Backend) Extract(ctx context.Context, h backend.Handle, dir string, r io.Reader) error {
	env, err := b.env(h)
	if err != nil {
		return err
	}
	b.record(Call{Op: OpExtract, Env: env.id, Image: env.target.Image, Path: dir})

	root := clean("/", dir)
	env.MkdirAll(root)

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: extracting into %s: %w", backend.ErrExec, root, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", backend.ErrExec, err)
		}

		name := path.Clean(strings.TrimPrefix(hdr.Name, "/"))
		if name == ".." || strings.HasPrefix(name, "../") {
			return fmt.Errorf("%w: entry %q escapes %s", backend.ErrExec, hdr.Name, root)
		}
		p := path.Join(root, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			env.MkdirAll(p)
		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("%w: extracting %s: %w", backend.ErrExec, hdr.Name, err)
			}
			env.WriteFile(p, data, fs.FileMode(hdr.Mode).Perm())
		case tar.TypeSymlink:
			env.Symlink(hdr.Linkname, p)
		}
	}
}

// Marks the environment destroyed. Repeated calls are no-ops.
func (b *Backend) Destroy(ctx context.Context, h backend.Handle) error {
	env, ok := h.(*Env)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	b.record(Call{Op: OpDestroy, Env: env.id, Image: env.target.Image})

	if env.destroy() {
		b.mu.Lock()
		b.live--
		b.destroyed++
		b.mu.Unlock()
	}
	return nil
}

// Returns the number of environments created.
func (b *Backend) Created() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.envs)
}

// Returns the number of environments destroyed.
func (b *Backend) Destroyed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Returns the number of environments created and not yet destroyed.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Returns every environment created so far, in creation order.
func (b *Backend) Envs() []*Env {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Env(nil), b.envs...)
}

// Returns the environment created for a target image, or nil.
func (b *Backend) EnvFor(image string) *Env {
	for _, env := range b.Envs() {
		if env.target.Image == image {
			return env
		}
	}
	return nil
}

// Returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Returns the recorded calls of one operation, optionally limited to one
// image. An empty image matches every call.
func (b *Backend) CallsOf(op, image string) []Call {
	var calls []Call
	for _, c := range b.Calls() {
		if c.Op == op && (image == "" || c.Image == image) {
			calls = append(calls, c)
		}
	}
	return calls
}

// Appends a call to the log.
func (b *Backend) record(c Call) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	b.mu.Unlock()
}

// Resolves a handle to a live environment.
func (b *Backend) env(h backend.Handle) (*Env, error) {
	env, ok := h.(*Env)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	if env.Destroyed() {
		return nil, fmt.Errorf("%w: %s", backend.ErrHandleDestroyed, env.id)
	}
	return env, nil
}

// Writes one tar header and, for regular files, its content.
func writeEntry(tw *tar.Writer, name string, f *File) error {
	hdr := &tar.Header{Name: name, Mode: int64(f.Mode.Perm())}
	switch {
	case f.Dir:
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
	case f.Link != "":
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = f.Link
	default:
		hdr.Typeflag = tar.TypeReg
		hdr.Size = int64(len(f.Data))
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if hdr.Typeflag == tar.TypeReg {
		_, err := tw.Write(f.Data)
		return err
	}
	return nil
}

// Resolves p against dir and cleans it.
func clean(dir, p string) string {
	if !path.IsAbs(p) {
		p = path.Join(dir, p)
	}
	return path.Clean(p)
}
