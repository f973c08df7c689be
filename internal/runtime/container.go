package runtime

import (
	"context"
	"log/slog"
	"strings"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/cruciblehq/cruxpkg/internal/backend"
)

// A build container backed by containerd.
//
// Returned by [Runtime.Create] as the environment handle of a job.
type Container struct {
	client  *containerd.Client // Containerd client for managing the container.
	id      string             // Containerd container ID.
	image   string             // Normalized image reference the container was created from.
	workdir string             // Working directory from the image config.
	path    string             // PATH from the image config.
}

var _ backend.Handle = (*Container)(nil)

// Returns the containerd container ID.
func (c *Container) ID() string { return c.id }

// Returns the image's configured working directory.
func (c *Container) Workdir() string { return c.workdir }

// Returns the image reference the container was created from.
func (c *Container) Image() string { return c.image }

// Creates the containerd container with the standard build configuration.
func (c *Container) create(ctx context.Context, image containerd.Image, snapshotter, ociRuntime string) (containerd.Container, error) {
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithProcessArgs("sleep", "infinity"),
		),
	)
}

// Starts the container's long-running task with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		return err
	}
	return nil
}

// Kills the task and removes the container with its snapshot.
//
// Missing containers and tasks are ignored. Other failures are logged
// because there is nothing left for the caller to do about them.
func (c *Container) destroy(ctx context.Context) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Warn("failed to load container for destruction", "id", c.id, "error", err)
		}
		return
	}

	killTask(ctx, ctr)

	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		slog.Warn("failed to delete container", "id", c.id, "error", err)
		return
	}

	slog.Debug("container destroyed", "id", c.id)
}

// Removes an existing container with this ID, if one exists.
func (c *Container) remove(ctx context.Context) {
	existing, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return
	}
	slog.Warn("removing stale container", "id", c.id)
	killTask(ctx, existing)
	existing.Delete(ctx, containerd.WithSnapshotCleanup)
}

// Kills and deletes the container's task, if it has one.
func killTask(ctx context.Context, ctr containerd.Container) {
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return
	}
	task.Kill(ctx, unix.SIGKILL)
	task.Delete(ctx, containerd.WithProcessKill)
}

// Returns a containerd-safe container ID.
//
// Containerd accepts letters, digits, '_', '-' and '.'; anything else is
// replaced with '-'.
func containerID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, id)
}
