// Package protocol defines the messages exchanged with the build daemon.
//
// Every message is a JSON [Envelope] on a single line. A client opens a
// connection, sends one request envelope and reads envelopes until it
// receives [CmdOK] or [CmdError]. While a build runs the daemon may send
// [CmdPhase] events before the final result.
//
// Example usage:
//
//	data, err := protocol.Encode(protocol.CmdBuild, &protocol.BuildRequest{
//	    Recipe: "/src/pkg/recipe.yml",
//	})
//	if err != nil {
//	    return err
//	}
//	conn.Write(append(data, '\n'))
//
//	env, payload, err := protocol.Decode(line)
//	if err != nil {
//	    return err
//	}
//	if env.Command == protocol.CmdOK {
//	    result, err := protocol.DecodePayload[protocol.BuildResult](payload)
//	}
package protocol
