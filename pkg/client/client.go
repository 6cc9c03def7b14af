package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// ErrUsage is returned by RequestFromArgs for an unsupported argument count.
var ErrUsage = errors.New("usage: svcd [command] | svcd <verb> <service>")

// Client sends control requests to a running svcd daemon.
type Client struct {
	socket  string
	timeout time.Duration
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	Socket  string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		Socket:  "/tmp/daemon.sock",
		Timeout: 10 * time.Second,
	}
}

// New creates a new control client
func New(config Config) *Client {
	d := DefaultConfig()
	if config.Socket == "" {
		config.Socket = d.Socket
	}
	if config.Timeout == 0 {
		config.Timeout = d.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{socket: config.Socket, timeout: config.Timeout, logger: config.Logger}
}

// RequestFromArgs maps command-line arguments to a request: one argument X
// becomes "daemon/X", two arguments X Y become "X/Y".
func RequestFromArgs(args []string) (string, error) {
	switch len(args) {
	case 1:
		return "daemon/" + args[0], nil
	case 2:
		return args[0] + "/" + args[1], nil
	}
	return "", ErrUsage
}

// Send writes request, half-closes the connection and returns everything
// the daemon wrote back.
func (c *Client) Send(ctx context.Context, request string) (string, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", c.socket, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if _, err := io.WriteString(conn, request); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return "", fmt.Errorf("close write: %w", err)
		}
	}
	resp, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("control request sent", "request", request, "bytes", len(resp))
	return string(resp), nil
}

// Start asks the daemon to start name.
func (c *Client) Start(ctx context.Context, name string) (string, error) {
	return c.Send(ctx, "start/"+name)
}

// Stop asks the daemon to stop name.
func (c *Client) Stop(ctx context.Context, name string) (string, error) {
	return c.Send(ctx, "stop/"+name)
}

// Restart asks the daemon to restart name.
func (c *Client) Restart(ctx context.Context, name string) (string, error) {
	return c.Send(ctx, "restart/"+name)
}

// Status returns the status line of name.
func (c *Client) Status(ctx context.Context, name string) (string, error) {
	return c.Send(ctx, "status/"+name)
}

// DaemonStatus returns the status lines of every service.
func (c *Client) DaemonStatus(ctx context.Context) (string, error) {
	return c.Send(ctx, "daemon/status")
}

// DaemonStop shuts the daemon's control loop down.
func (c *Client) DaemonStop(ctx context.Context) (string, error) {
	return c.Send(ctx, "daemon/stop")
}
