package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
	"github.com/quininer/fi/internal/search"
	"github.com/quininer/fi/internal/show"
)

// Server owns the listening socket and the shared object view. Every
// accepted connection runs exactly one command on its own goroutine.
type Server struct {
	explorer *object.Explorer
	listener *net.UnixListener
	path     string
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewServer binds the session socket. A stale socket file at the path is
// replaced.
func NewServer(path string, explorer *object.Explorer) (*Server, error) {
	os.Remove(path)
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return &Server{
		explorer: explorer,
		listener: listener,
		path:     path,
		done:     make(chan struct{}),
	}, nil
}

// Listen accepts connections until the context is cancelled or Shutdown is
// called.
func (s *Server) Listen(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()

	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Shutdown closes the listener, removes the socket file and waits for
// in-flight connections.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.listener.Close()
		os.Remove(s.path)
	})
	s.wg.Wait()
}

// handle runs one connection: read the start frame, receive the stdio
// descriptors, race the command against client disconnect, send the exit
// frame.
func (s *Server) handle(ctx context.Context, conn *net.UnixConn) {
	defer conn.Close()

	var start Start
	if err := ReadFrame(conn, &start); err != nil {
		log.WithError(err).Warn("reading start frame")
		return
	}

	stdin, err := RecvFd(conn, "stdin")
	if err != nil {
		log.WithError(err).Warn("receiving stdin")
		return
	}
	stdout, err := RecvFd(conn, "stdout")
	if err != nil {
		stdin.Close()
		log.WithError(err).Warn("receiving stdout")
		return
	}
	stderr, err := RecvFd(conn, "stderr")
	if err != nil {
		stdin.Close()
		stdout.Close()
		log.WithError(err).Warn("receiving stderr")
		return
	}

	stdio := output.NewStdio(start.Colored, start.Hyperlink, stdin, stdout, stderr)
	defer stdio.Close()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Drain the socket into a sink; it returns when the client goes away
	// and aborts the command.
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	result := make(chan error, 1)
	go func() {
		result <- s.dispatch(cctx, &start, stdio)
	}()

	select {
	case err := <-result:
		code := ExitOk
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "fi: %v\n", err)
			code = ExitFailure
		}
		if err := WriteFrame(conn, &Exit{Code: code}); err != nil {
			log.WithError(err).Warn("writing exit frame")
		}
	case <-cctx.Done():
		log.Debug("client disconnected, command dropped")
	}
}

// dispatch runs the connection's command. Only search and show travel the
// wire; anything else is a protocol violation.
func (s *Server) dispatch(ctx context.Context, start *Start, stdio *output.Stdio) error {
	switch {
	case start.Search != nil && start.Show != nil:
		return fmt.Errorf("start frame carries more than one command")
	case start.Search != nil:
		return search.Run(ctx, s.explorer, start.Search, stdio)
	case start.Show != nil:
		return show.Run(ctx, s.explorer, start.Show, stdio)
	default:
		return fmt.Errorf("start frame carries no command")
	}
}
