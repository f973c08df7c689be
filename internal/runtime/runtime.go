package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

const (

	// Default containerd socket address.
	DefaultAddress = "/run/containerd/containerd.sock"

	// Default containerd namespace for images and containers.
	DefaultNamespace = "cruxpkg"

	// Default snapshotter used for container filesystems.
	DefaultSnapshotter = "overlayfs"

	// Default OCI runtime shim for running containers.
	DefaultOCIRuntime = "io.containerd.runc.v2"
)

// Configures a [Runtime].
type Config struct {
	Address     string            // Containerd socket address. Empty uses [DefaultAddress].
	Namespace   string            // Containerd namespace. Empty uses [DefaultNamespace].
	Snapshotter string            // Snapshotter name. Empty uses [DefaultSnapshotter].
	OCIRuntime  string            // Runtime shim. Empty uses [DefaultOCIRuntime].
	Platform    string            // Platform to pull and run, e.g. "linux/amd64". Empty uses the host.
	Images      map[string]string // Target image identifier to image reference.
}

// Manages the containerd client and provisions build containers.
//
// A Runtime implements [backend.Backend] and is safe for concurrent use.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter for container root filesystems.
	ociRuntime  string             // Runtime shim for container tasks.
	platform    string             // Normalized platform string.
	images      map[string]string  // Image alias table.
}

var _ backend.Backend = (*Runtime)(nil)

// Creates a runtime connected to the configured containerd socket.
//
// The connection is established lazily by containerd; use [Runtime.Check]
// to verify that the daemon is serving. The runtime must be closed when no
// longer needed.
func New(cfg Config) (*Runtime, error) {
	address := valueOr(cfg.Address, DefaultAddress)
	namespace := valueOr(cfg.Namespace, DefaultNamespace)

	platform := platforms.DefaultString()
	if cfg.Platform != "" {
		p, err := platforms.Parse(cfg.Platform)
		if err != nil {
			return nil, fmt.Errorf("%w: platform %q: %w", ErrRuntime, cfg.Platform, err)
		}
		platform = platforms.Format(p)
	}

	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", backend.ErrRuntimeUnavailable, ErrRuntime, err)
	}

	return &Runtime{
		client:      client,
		snapshotter: valueOr(cfg.Snapshotter, DefaultSnapshotter),
		ociRuntime:  valueOr(cfg.OCIRuntime, DefaultOCIRuntime),
		platform:    platform,
		images:      cfg.Images,
	}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Verifies that containerd is serving requests.
func (rt *Runtime) Check(ctx context.Context) error {
	serving, err := rt.client.IsServing(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrRuntimeUnavailable, err)
	}
	if !serving {
		return fmt.Errorf("%w: containerd is not serving", backend.ErrRuntimeUnavailable)
	}
	return nil
}

// Provisions a build container for the request's target.
//
// The image is pulled when missing, a container with a fresh snapshot and a
// long-running task is started, and the requested build dependencies are
// installed. Any existing container with the same ID is removed first. On
// failure nothing is left behind.
func (rt *Runtime) Create(ctx context.Context, req backend.CreateRequest) (backend.Handle, error) {
	ref, err := rt.reference(req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrEnvironmentSetup, err)
	}

	image, err := rt.ensureImage(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: image %s: %w", backend.ErrEnvironmentSetup, ref, err)
	}

	config, err := imageConfig(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%w: image %s config: %w", backend.ErrEnvironmentSetup, ref, err)
	}

	c := &Container{
		client:  rt.client,
		id:      containerID(req.ID),
		image:   ref,
		workdir: valueOr(config.WorkingDir, "/"),
		path:    lookupEnv(config.Env, "PATH"),
	}

	// Remove any stale container from an interrupted build with the same ID.
	c.remove(ctx)

	ctr, err := c.create(ctx, image, rt.snapshotter, rt.ociRuntime)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", backend.ErrEnvironmentSetup, ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(context.WithoutCancel(ctx), containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("%w: %w: %w", backend.ErrEnvironmentSetup, ErrRuntime, err)
	}

	slog.Debug("container started", "id", c.id, "image", ref)

	if err := c.installDeps(ctx, req.Target.OS.Family, req.Deps); err != nil {
		c.destroy(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%w: %s: %w", backend.ErrEnvironmentSetup, req.Target.Image, err)
	}

	return c, nil
}

// Runs a command in the container.
func (rt *Runtime) Exec(ctx context.Context, h backend.Handle, req backend.ExecRequest) (*backend.ExecResult, error) {
	c, err := container(h)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, req)
}

// Creates a directory inside the container.
func (rt *Runtime) MkdirAll(ctx context.Context, h backend.Handle, path string) error {
	c, err := container(h)
	if err != nil {
		return err
	}
	return c.MkdirAll(ctx, path)
}

// Streams a directory of the container as a tar archive.
func (rt *Runtime) Archive(ctx context.Context, h backend.Handle, path string, w io.Writer) error {
	c, err := container(h)
	if err != nil {
		return err
	}
	return c.CopyFrom(ctx, w, path)
}

// Unpacks a tar stream into a directory of the container.
func (rt *Runtime) Extract(ctx context.Context, h backend.Handle, dir string, r io.Reader) error {
	c, err := container(h)
	if err != nil {
		return err
	}
	return c.CopyTo(ctx, r, dir)
}

// Removes the container, its task and its snapshot.
func (rt *Runtime) Destroy(ctx context.Context, h backend.Handle) error {
	c, err := container(h)
	if err != nil {
		return err
	}
	c.destroy(ctx)
	return nil
}

// Returns the image reference for a target.
//
// The alias table wins. Identifiers that already look like references
// (containing ":" or "/") are used as they are. Otherwise the OS family
// and version form the reference, so "debian10" resolves to "debian:10".
func (rt *Runtime) reference(t recipe.Target) (string, error) {
	ref, ok := rt.images[t.Image]
	switch {
	case ok:
	case strings.ContainsAny(t.Image, ":/"):
		ref = t.Image
	case t.OS.Version != "":
		ref = t.OS.Family + ":" + t.OS.Version
	default:
		ref = t.Image
	}
	return normalizeReference(ref)
}

// Returns the image for ref, pulling and unpacking it when necessary.
func (rt *Runtime) ensureImage(ctx context.Context, ref string) (containerd.Image, error) {
	image, err := rt.client.GetImage(ctx, ref)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return nil, err
		}

		slog.Info("pulling image", "image", ref, "platform", rt.platform)
		return rt.client.Pull(ctx, ref,
			containerd.WithPlatform(rt.platform),
			containerd.WithPullUnpack,
			containerd.WithPullSnapshotter(rt.snapshotter),
		)
	}

	unpacked, err := image.IsUnpacked(ctx, rt.snapshotter)
	if err != nil {
		return nil, err
	}
	if !unpacked {
		if err := image.Unpack(ctx, rt.snapshotter); err != nil {
			return nil, err
		}
	}
	return image, nil
}

// Returns the runtime configuration of an image.
func imageConfig(ctx context.Context, image containerd.Image) (ocispec.ImageConfig, error) {
	spec, err := image.Spec(ctx)
	if err != nil {
		return ocispec.ImageConfig{}, err
	}
	return spec.Config, nil
}

// Asserts that a handle was produced by a Runtime.
func container(h backend.Handle) (*Container, error) {
	c, ok := h.(*Container)
	if !ok {
		return nil, fmt.Errorf("%w: foreign handle %T", ErrRuntime, h)
	}
	return c, nil
}

// Returns the value of key in a "key=value" list, or "".
func lookupEnv(env []string, key string) string {
	for _, entry := range env {
		if k, v, ok := strings.Cut(entry, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Returns v, or def when v is empty.
func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
