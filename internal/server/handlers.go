package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cruciblehq/cruxpkg/internal"
	"github.com/cruciblehq/cruxpkg/internal/artifact"
	"github.com/cruciblehq/cruxpkg/internal/build"
	"github.com/cruciblehq/cruxpkg/internal/protocol"
	"github.com/cruciblehq/cruxpkg/internal/recipe"
)

// Handles the build command.
//
// Loads the recipe named in the request, runs every selected target and
// streams a phase event each time a target advances. The final response is
// [protocol.CmdOK] with a [protocol.BuildResult] even when targets failed;
// only errors that keep the run from starting are reported as
// [protocol.CmdError].
func (s *Server) handleBuild(ctx context.Context, w *responder, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		w.fail(err)
		return
	}

	opts, err := s.buildOptions(req)
	if err != nil {
		w.fail(err)
		return
	}
	opts.OnPhase = func(target string, phase build.Phase) {
		w.send(protocol.CmdPhase, &protocol.PhaseEvent{Target: target, Phase: phase.String()})
	}

	s.begin()
	defer s.end()

	slog.Debug("build requested", "recipe", req.Recipe, "package", opts.Recipe.Metadata.Name)

	report, err := build.Run(ctx, s.backend, *opts)
	if err != nil {
		w.fail(err)
		return
	}

	w.send(protocol.CmdOK, protocol.NewBuildResult(opts.Recipe, report))
}

// Resolves the options of a build request against the server settings.
func (s *Server) buildOptions(req *protocol.BuildRequest) (*build.Options, error) {
	if req.Recipe == "" {
		return nil, fmt.Errorf("%w: no recipe path", ErrInvalidRequest)
	}

	r, err := recipe.Load(req.Recipe)
	if err != nil {
		return nil, err
	}

	opts := &build.Options{
		Recipe:      r,
		Targets:     req.Targets,
		Parallelism: s.settings.Build.Parallelism,
		JobTimeout:  s.settings.Build.JobTimeout,
		StageDir:    s.settings.Build.StageDir,
	}

	if req.Parallelism > 0 {
		opts.Parallelism = req.Parallelism
	}

	if req.JobTimeout != "" {
		d, err := time.ParseDuration(req.JobTimeout)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: invalid job timeout %q", ErrInvalidRequest, req.JobTimeout)
		}
		opts.JobTimeout = d
	}

	output := s.settings.Build.OutputDir
	if req.Output != "" {
		output = req.Output
	}
	if output != "" {
		opts.Writer = artifact.DirWriter{Dir: output}
	}

	return opts, nil
}

// Handles the status command.
func (s *Server) handleStatus(w *responder) {
	s.mu.Lock()
	builds, active := s.builds, s.active
	s.mu.Unlock()

	w.send(protocol.CmdOK, &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  time.Since(s.startedAt).Truncate(time.Second).String(),
		Builds:  builds,
		Active:  active,
	})
}

// Handles the shutdown command.
//
// The response is written before the server stops so the client receives
// confirmation.
func (s *Server) handleShutdown(w *responder) {
	w.send(protocol.CmdOK, nil)
	go s.Stop()
}

// Marks a build request as in progress.
func (s *Server) begin() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

// Marks a build request as completed.
func (s *Server) end() {
	s.mu.Lock()
	s.active--
	s.builds++
	s.mu.Unlock()
}
