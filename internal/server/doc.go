// Package server implements the cruxpkg build daemon.
//
// The daemon listens on a Unix domain socket for newline-delimited JSON
// envelopes defined by the protocol package. Each connection carries a
// single request: the client sends one envelope, the server dispatches the
// command, streams progress events for builds, and writes the final result
// before closing the connection. When the client disconnects early the
// request's context is cancelled, which cancels a running build.
//
// Supported commands are build, status and shutdown. Builds are delegated
// to the build package using the backend the server was created with.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    Backend:  rt,
//	    Settings: s,
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	srv.Wait()
package server
