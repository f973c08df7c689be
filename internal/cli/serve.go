package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/cruxpkg/internal/runtime"
	"github.com/cruciblehq/cruxpkg/internal/server"
	"github.com/cruciblehq/cruxpkg/internal/settings"
)

// Represents the 'cruxpkg serve' command.
type ServeCmd struct{}

// Executes the serve command.
//
// Connects to containerd, starts the daemon on a Unix domain socket and
// blocks until the context is cancelled (e.g. via SIGINT or SIGTERM) or a
// client requests a shutdown.
func (c *ServeCmd) Run(ctx context.Context) error {
	s, err := settings.Load(RootCmd.Config)
	if err != nil {
		return err
	}

	rt, err := runtime.New(s.Runtime())
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Check(ctx); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		SocketPath: RootCmd.Socket,
		Backend:    rt,
		Settings:   s,
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("cruxpkg daemon is running")

	select {
	case <-ctx.Done():
	case <-srv.Done():
	}

	slog.Info("shutting down, cancelling running builds")
	return srv.Stop()
}
