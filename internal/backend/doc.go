// Package backend defines the execution backend used by the build engine.
//
// A [Backend] provisions one isolated build environment per job, runs shell
// commands inside it, streams files out of it, and tears it down. The
// engine is written against this interface only; the containerd
// implementation lives in the runtime package and a deterministic in-memory
// implementation for tests lives in backend/mock. The variant is chosen by
// whoever constructs the build, there is no registry.
package backend
