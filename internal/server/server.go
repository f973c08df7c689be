package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cruciblehq/cruxpkg/internal"
	"github.com/cruciblehq/cruxpkg/internal/backend"
	"github.com/cruciblehq/cruxpkg/internal/paths"
	"github.com/cruciblehq/cruxpkg/internal/protocol"
	"github.com/cruciblehq/cruxpkg/internal/settings"
)

const (

	// Group name used to grant socket access. Members of this group can
	// connect to the daemon socket without owning the process.
	socketGroup = internal.Name

	// File mode applied to the Unix socket. Owner and group get read-write
	// (required for connect); others get no access.
	socketMode = 0660
)

// Holds server configuration.
type Config struct {
	SocketPath string             // Override for the Unix socket path. Empty uses the settings, then the default.
	PIDFile    string             // Override for the PID file path. Empty uses the default.
	Backend    backend.Backend    // Backend running the builds.
	Settings   *settings.Settings // Build defaults. Nil uses [settings.Default].
}

// Listens on a Unix domain socket and dispatches commands.
type Server struct {
	socketPath string             // Path to the Unix socket file.
	pidFile    string             // Path to the PID file.
	backend    backend.Backend    // Backend running the builds.
	settings   *settings.Settings // Build defaults.
	listener   net.Listener       // Listener for incoming connections.
	startedAt  time.Time          // Timestamp when the server started.
	builds     int                // Number of build requests completed.
	active     int                // Number of build requests in progress.
	ctx        context.Context    // Parent of every request context; cancelled by Stop.
	cancel     context.CancelFunc // Cancels ctx.
	handlers   sync.WaitGroup     // Connections being handled.
	done       chan struct{}      // Closed when the server has stopped.
	stopOnce   sync.Once          // Guards Stop.
	mu         sync.Mutex         // Protects builds, active and handler registration.
}

// Creates a new server instance.
//
// The socket is not opened until [Server.Start] is called.
func New(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: no backend", ErrServer)
	}

	s := cfg.Settings
	if s == nil {
		s = settings.Default()
	}

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath = s.Daemon.Socket
	}
	if socketPath == "" {
		socketPath = paths.Socket()
	}

	pidFile := cfg.PIDFile
	if pidFile == "" {
		pidFile = paths.PIDFile()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		pidFile:    pidFile,
		backend:    cfg.Backend,
		settings:   s,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Returns the socket path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Opens the Unix socket and begins accepting connections.
func (s *Server) Start() error {
	listener, err := listen(s.socketPath)
	if err != nil {
		return err
	}

	s.listener = listener
	s.startedAt = time.Now()

	if err := writePID(s.pidFile); err != nil {
		slog.Warn("failed to write PID file", "error", err)
	}

	slog.Info("server listening on socket", "path", s.socketPath)

	go s.accept()
	return nil
}

// Creates the Unix socket listener, removes any stale socket from a previous
// run, and applies permissions.
func listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServer, err)
	}

	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %w", ErrServer, socketPath, err)
	}

	if err := setSocketPermissions(socketPath); err != nil {
		listener.Close()
		return nil, err
	}

	return listener, nil
}

// Restricts socket access to owner and group.
func setSocketPermissions(socketPath string) error {
	if err := os.Chmod(socketPath, socketMode); err != nil {
		return fmt.Errorf("%w: failed to chmod socket %s: %w", ErrServer, socketPath, err)
	}

	if g, err := user.LookupGroup(socketGroup); err == nil {
		if gid, err := strconv.Atoi(g.Gid); err == nil {
			if err := os.Chown(socketPath, -1, gid); err != nil {
				slog.Warn("failed to chgrp socket", "group", socketGroup, "error", err)
			}
		}
	} else {
		slog.Debug("socket group not found, socket accessible to owner only", "group", socketGroup)
	}

	return nil
}

// Shuts down the server and cleans up resources.
//
// Running builds are cancelled, and Stop returns only after every
// connection handler has finished, so each build environment has been
// destroyed by then. Safe to call more than once and from several
// goroutines.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}

		s.handlers.Wait()

		os.Remove(s.socketPath)
		os.Remove(s.pidFile)
		close(s.done)
	})
	return nil
}

// Blocks until the server stops.
func (s *Server) Wait() {
	<-s.done
}

// Returns a channel closed when the server stops.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Accepts connections in a loop until the server shuts down.
func (s *Server) accept() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			slog.Error("accept error", "error", err)
			continue
		}

		// Registration and Stop's cancellation share the lock, so Stop never
		// waits on a handler it cannot see.
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.handlers.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.handlers.Done()
			s.handle(conn)
		}()
	}
}

// Processes a single connection.
//
// Reads one newline-delimited JSON message, dispatches the command, and
// writes the response. The connection is closed after the exchange.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	// Unblocks a pending read once the server stops.
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	w := &responder{conn: conn}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		if s.ctx.Err() == nil {
			slog.Error("read error", "error", err)
		}
		return
	}

	env, payload, err := protocol.Decode(line)
	if err != nil {
		w.fail(err)
		return
	}

	slog.Info("command received", "command", env.Command)

	ctx, cancel := contextWithDisconnect(s.ctx, reader)
	defer cancel()

	s.dispatch(ctx, w, env.Command, payload)
}

// Routes a command to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, w *responder, cmd protocol.Command, payload json.RawMessage) {
	switch cmd {
	case protocol.CmdBuild:
		s.handleBuild(ctx, w, payload)
	case protocol.CmdStatus:
		s.handleStatus(w)
	case protocol.CmdShutdown:
		s.handleShutdown(w)
	default:
		w.fail(fmt.Errorf("unknown command: %s", cmd))
	}
}

// Writes envelopes to one connection.
//
// Progress events come from concurrent jobs, so writes are serialized.
type responder struct {
	mu   sync.Mutex
	conn net.Conn
}

// Writes a JSON envelope followed by a newline.
func (r *responder) send(cmd protocol.Command, payload any) {
	data, err := protocol.Encode(cmd, payload)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.conn.Write(data); err != nil {
		slog.Debug("write response failed", "command", cmd, "error", err)
	}
}

// Writes an error response.
func (r *responder) fail(err error) {
	r.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
}

// Writes the daemon PID to the PID file.
func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), paths.DefaultFileMode)
}

// Returns a context cancelled once the client hangs up.
//
// The request line has already been consumed, so the next read on r only
// returns when the peer closes the connection or sends stray data. Either
// ends the request. The cancel function must be called.
func contextWithDisconnect(parent context.Context, r io.Reader) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		buf := make([]byte, 1)
		r.Read(buf)
		cancel()
	}()

	return ctx, cancel
}
