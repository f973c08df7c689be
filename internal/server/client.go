package server

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/cruciblehq/cruxpkg/internal/protocol"
)

// Sends one command to the daemon listening on socketPath and returns the
// payload of the final response.
//
// Events received before the final response are passed to onEvent, which
// may be nil. A [protocol.CmdError] response is returned as an error wrapping
// [ErrRequestFailed]. Cancelling ctx closes the connection, which cancels
// the request on the daemon side.
func Request(ctx context.Context, socketPath string, cmd protocol.Command, payload any, onEvent func(*protocol.Envelope)) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrRequestFailed, socketPath, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: connection closed: %w", ErrRequestFailed, err)
		}

		env, raw, err := protocol.Decode(line)
		if err != nil {
			return nil, err
		}

		switch env.Command {
		case protocol.CmdOK:
			return raw, nil
		case protocol.CmdError:
			res, err := protocol.DecodePayload[protocol.ErrorResult](raw)
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, res.Message)
		default:
			if onEvent != nil {
				onEvent(env)
			}
		}
	}
}
