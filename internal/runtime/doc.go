// Package runtime implements the build environment backend on containerd.
//
// A [Runtime] connects to a containerd daemon and provisions one container
// per build job. The target's image is resolved through an alias table,
// normalized into a fully qualified reference, pulled and unpacked when it
// is not yet present, and used to create a container with a fresh snapshot
// and a long-running "sleep infinity" task. Build dependencies are installed
// with the image's native package manager before the container is handed
// out.
//
// Each [Container] accepts exec processes that run with exactly the
// environment they are given; only PATH from the image config is passed
// through when the caller does not set it. Cancelling an exec's context
// kills the process. Destroying a container kills its task and removes the
// container together with its snapshot.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Config{
//	    Address:   "/run/containerd/containerd.sock",
//	    Namespace: "cruxpkg",
//	})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	h, err := rt.Create(ctx, backend.CreateRequest{ID: "pkg-1", Target: target})
//	if err != nil {
//	    return err
//	}
//	defer rt.Destroy(ctx, h)
//
//	res, err := rt.Exec(ctx, h, backend.ExecRequest{Command: "make", Shell: "/bin/sh"})
package runtime
