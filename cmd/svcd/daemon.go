package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/svcd/internal/config"
	"github.com/loykin/svcd/internal/control"
	"github.com/loykin/svcd/internal/definition"
	"github.com/loykin/svcd/internal/history"
	"github.com/loykin/svcd/internal/history/factory"
	"github.com/loykin/svcd/internal/metrics"
	"github.com/loykin/svcd/internal/registry"
	"github.com/loykin/svcd/internal/server"
	tlsx "github.com/loykin/svcd/internal/tls"
)

const shutdownTimeout = 5 * time.Second

// runDaemon owns the control socket until daemon/stop, SIGINT or SIGTERM.
func runDaemon(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := cfg.Log.NewSlogger()
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o750); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", cfg.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another daemon holds %s", cfg.LockFile)
	}
	defer func() { _ = lock.Unlock() }()

	// The lock guarantees no live daemon owns a leftover socket.
	if err := os.Remove(cfg.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	if cfg.PIDFile != "" {
		if err := writePIDFile(cfg.PIDFile, os.Getpid()); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
		defer func() { _ = os.Remove(cfg.PIDFile) }()
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("metrics registration failed", "error", err)
	}

	recorder := openHistory(cfg.History.DSN, logger)
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("closing history sinks", "error", err)
		}
	}()

	src, err := definition.Open(cfg.Definitions)
	if err != nil {
		return fmt.Errorf("open definitions: %w", err)
	}
	reg := registry.New(src, registry.Options{
		MinUptime:   cfg.Restart.MinUptime,
		StopTimeout: cfg.Restart.StopTimeout,
		Log:         cfg.Log,
		Logger:      logger,
		History:     recorder,
	})

	autostart(reg, cfg.Autostart, logger)

	if cfg.WatchDefinitions {
		watchDefinitions(ctx, cfg.Definitions, logger)
	}

	httpSrv, err := startHTTP(cfg.HTTP, reg, logger)
	if err != nil {
		return err
	}

	ctl := control.NewServer(cfg.Socket, reg, control.Options{
		ReadTimeout: cfg.Control.ReadTimeout,
		Logger:      logger,
	})
	serveErr := ctl.Serve(ctx)
	_ = os.Remove(cfg.Socket)

	if httpSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = httpSrv.Shutdown(sctx)
		scancel()
	}
	if cfg.StopServicesOnExit {
		stopped := reg.StopAll()
		if !reg.Wait(cfg.Restart.StopTimeout + shutdownTimeout) {
			logger.Warn("services still running at exit", "stopped", len(stopped))
		}
	}
	logger.Info("daemon exiting")
	return serveErr
}

// startHTTP serves the status and metrics endpoint when configured.
func startHTTP(c config.HTTPConfig, reg *registry.Registry, logger *slog.Logger) (*http.Server, error) {
	if c.Listen == "" {
		return nil, nil
	}
	tlsCfg, err := tlsx.Setup(c.TLS)
	if err != nil {
		return nil, fmt.Errorf("http tls: %w", err)
	}
	srv := server.NewServer(c.Listen, c.BasePath, reg)
	srv.TLSConfig = tlsCfg
	go func() {
		logger.Info("http endpoint listening", "addr", c.Listen, "base_path", c.BasePath, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http endpoint failed", "error", err)
		}
	}()
	return srv, nil
}

func autostart(reg *registry.Registry, path string, logger *slog.Logger) {
	names, err := definition.ReadAutostart(path)
	if err != nil {
		logger.Warn("reading autostart list", "path", path, "error", err)
		return
	}
	for _, name := range names {
		if err := reg.Start(name); err != nil {
			logger.Warn("autostart failed", "service", name, "error", err)
			continue
		}
		logger.Info("autostarted", "service", name)
	}
}

func openHistory(dsns []string, logger *slog.Logger) *history.Recorder {
	if len(dsns) == 0 {
		return nil
	}
	var sinks []history.Sink
	for _, dsn := range dsns {
		s, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			logger.Warn("history sink disabled", "dsn", redact(dsn), "error", err)
			continue
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil
	}
	return history.NewRecorder(logger, sinks...)
}

func watchDefinitions(ctx context.Context, path string, logger *slog.Logger) {
	w, err := definition.NewWatcher(ctx, path, logger)
	if err != nil {
		logger.Warn("definition watch disabled", "path", path, "error", err)
		return
	}
	go func() {
		for ch := range w.Events {
			metrics.IncDefinitionChange(string(ch.Op))
			logger.Info("definition changed", "op", ch.Op, "file", ch.File)
		}
	}()
}

// redact drops credentials from a DSN before logging it.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

// detach re-executes the binary without --detach in a new session and
// returns once the child has started.
func detach(out io.Writer) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	// #nosec 204
	cmd := exec.Command(executable, detachArgs(os.Args[1:])...)
	configureDaemonAttrs(cmd)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}
	_, _ = fmt.Fprintf(out, "daemon started with PID %d\n", cmd.Process.Pid)
	return cmd.Process.Release()
}

func detachArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
