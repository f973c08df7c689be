package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cruciblehq/cruxpkg/internal/protocol"
	"github.com/cruciblehq/cruxpkg/internal/server"
	"github.com/cruciblehq/cruxpkg/internal/settings"
)

// Represents the 'cruxpkg status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context) error {
	socket, err := socketPath()
	if err != nil {
		return err
	}

	raw, err := server.Request(ctx, socket, protocol.CmdStatus, nil, nil)
	if err != nil {
		return err
	}

	status, err := protocol.DecodePayload[protocol.StatusResult](raw)
	if err != nil {
		return err
	}

	return renderStatus(os.Stdout, status)
}

// Represents the 'cruxpkg stop' command.
type StopCmd struct{}

// Executes the stop command.
func (c *StopCmd) Run(ctx context.Context) error {
	socket, err := socketPath()
	if err != nil {
		return err
	}

	if _, err := server.Request(ctx, socket, protocol.CmdShutdown, nil, nil); err != nil {
		return err
	}

	fmt.Println("daemon stopped")
	return nil
}

// Returns the daemon socket from the flag or the settings file.
func socketPath() (string, error) {
	if RootCmd.Socket != "" {
		return RootCmd.Socket, nil
	}

	s, err := settings.Load(RootCmd.Config)
	if err != nil {
		return "", err
	}
	return s.Daemon.Socket, nil
}
