// Package mock provides a deterministic in-memory [backend.Backend].
//
// Every environment created by a [Backend] is an [Env] with its own in-memory
// filesystem. Commands are handed to a pluggable ExecFunc; [Interpret] is a
// small interpreter for the handful of shell commands tests need (touch,
// mkdir, test, echo, exit). All calls are recorded so tests can assert how
// many environments were created and destroyed and what ran where.
//
// Example usage:
//
//	be := mock.New()
//	be.ExecFunc = mock.Interpret
//	report, err := build.Run(ctx, be, build.Options{Recipe: r})
//	if be.Live() != 0 {
//	    t.Fatal("leaked environments")
//	}
package mock
