package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"vawter.tech/stopper"

	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/registry"
)

// Server defaults.
const (
	DefaultReadTimeout = 10 * time.Second
	DefaultMaxRequest  = 64 << 10
	DefaultGrace       = 2 * time.Second
)

// Options tune a Server. Zero values select the defaults above.
type Options struct {
	ReadTimeout time.Duration
	MaxRequest  int64
	Grace       time.Duration
	Logger      *slog.Logger
}

// Server accepts control connections on a Unix socket.
type Server struct {
	path   string
	reg    Registry
	opts   Options
	logger *slog.Logger

	ln net.Listener
}

// NewServer returns a Server for the socket at path.
func NewServer(path string, reg Registry, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.MaxRequest <= 0 {
		opts.MaxRequest = DefaultMaxRequest
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{path: path, reg: reg, opts: opts, logger: opts.Logger}
}

// Listen binds the socket. The caller removes stale socket files first.
func (s *Server) Listen() error {
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	s.ln = ln
	return nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve accepts connections until daemon/stop is received or ctx is done.
// Each connection is handled on its own goroutine. Serve closes the
// listener before returning.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("control socket listening", "path", s.path)

	sctx := stopper.WithContext(ctx)
	var acceptErr error

	sctx.Go(func(sctx *stopper.Context) error {
		select {
		case <-ctx.Done():
			sctx.Stop(s.opts.Grace)
		case <-sctx.Stopping():
		}
		_ = s.ln.Close()
		return nil
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if !sctx.IsStopping() && !errors.Is(err, net.ErrClosed) {
					acceptErr = fmt.Errorf("accept: %w", err)
					sctx.Stop(s.opts.Grace)
				}
				return nil
			}
			sctx.Go(func(sctx *stopper.Context) error {
				if err := s.handle(conn); errors.Is(err, ErrShutdownRequested) {
					s.logger.Info("daemon stop requested over control socket")
					sctx.Stop(s.opts.Grace)
				}
				return nil
			})
		}
	})

	_ = sctx.Wait()
	s.logger.Info("control socket closed", "path", s.path)
	return acceptErr
}

// handle serves exactly one request on conn and closes it.
func (s *Server) handle(conn net.Conn) error {
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	payload, err := io.ReadAll(io.LimitReader(conn, s.opts.MaxRequest+1))
	if err != nil {
		s.logger.Warn("control read failed", "error", err)
		metrics.IncControlRequest("unknown", "read_error")
		return nil
	}

	resp, verb, result, derr := s.respond(payload)
	metrics.IncControlRequest(verb, result)
	s.logger.Debug("control request", "request", string(payload), "result", result)

	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.ReadTimeout))
	if _, err := io.WriteString(conn, resp); err != nil {
		s.logger.Warn("control write failed", "error", err)
	}
	return derr
}

func (s *Server) respond(payload []byte) (resp, verb, result string, err error) {
	if int64(len(payload)) > s.opts.MaxRequest {
		return InvalidParameter, "invalid", "too_large", nil
	}
	c, err := ParseCommand(string(payload))
	if err != nil {
		return InvalidParameter, "invalid", "invalid", nil
	}
	resp, err = Dispatch(s.reg, c)
	switch {
	case err == nil:
		result = "ok"
	case errors.Is(err, ErrShutdownRequested):
		result = "shutdown"
	case errors.Is(err, registry.ErrServiceNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	if !errors.Is(err, ErrShutdownRequested) {
		err = nil
	}
	return resp, string(c.Verb), result, err
}
