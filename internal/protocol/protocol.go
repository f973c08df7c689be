package protocol

import (
	"encoding/json"
	"fmt"
)

// Version of the envelope format.
const Version = 1

// Names a request, response or event.
type Command string

const (
	CmdBuild    Command = "build"    // Runs a recipe. Payload: [BuildRequest].
	CmdStatus   Command = "status"   // Queries the daemon. No payload.
	CmdShutdown Command = "shutdown" // Stops the daemon. No payload.
	CmdPhase    Command = "phase"    // Build progress event. Payload: [PhaseEvent].
	CmdOK       Command = "ok"       // Successful response.
	CmdError    Command = "error"    // Failed response. Payload: [ErrorResult].
)

// Wraps every message on the wire.
type Envelope struct {
	Version int             `json:"version"`
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encodes a message. A nil payload is omitted.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Version: Version, Command: cmd}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s payload: %w", ErrMalformedMessage, cmd, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decodes a message, returning the envelope and its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if env.Version != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("%w: missing command", ErrMalformedMessage)
	}
	return &env, env.Payload, nil
}

// Decodes a payload into T. An empty payload yields the zero value.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	v := new(T)
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return v, nil
}

// Requests a build.
type BuildRequest struct {
	Recipe      string   `json:"recipe"`                // Path of the recipe file, as seen by the daemon.
	Targets     []string `json:"targets,omitempty"`     // Target images; empty builds all.
	Parallelism int      `json:"parallelism,omitempty"` // Overrides the daemon's parallelism when positive.
	JobTimeout  string   `json:"job_timeout,omitempty"` // Overrides the daemon's job timeout, e.g. "30m".
	Output      string   `json:"output,omitempty"`      // Overrides the daemon's output directory.
}

// Outcome of a build request.
type BuildResult struct {
	Package string         `json:"package"`
	Version string         `json:"version"`
	Targets []TargetResult `json:"targets"`
}

// Outcome of one target.
type TargetResult struct {
	Image    string `json:"image"`
	OS       string `json:"os"`
	Format   string `json:"format"`
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Phase    string `json:"phase"`
	Entries  int    `json:"entries,omitempty"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// Reports that a target entered a phase.
type PhaseEvent struct {
	Target string `json:"target"`
	Phase  string `json:"phase"`
}

// Daemon status.
type StatusResult struct {
	Running bool   `json:"running"`
	Version string `json:"version"`
	Pid     int    `json:"pid"`
	Uptime  string `json:"uptime"`
	Builds  int    `json:"builds"` // Build requests completed.
	Active  int    `json:"active"` // Build requests in progress.
}

// Describes a failed request.
type ErrorResult struct {
	Message string `json:"message"`
}
