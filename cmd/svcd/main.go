package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/svcd/internal/config"
	"github.com/loykin/svcd/pkg/client"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootFlags holds flags that are not part of the daemon configuration.
type RootFlags struct {
	ConfigPath string
	Detach     bool
	Timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	flags := &RootFlags{}
	root := &cobra.Command{
		Use:   "svcd [command] | svcd <verb> <service>",
		Short: "Minimal service supervisor",
		Long: `svcd runs a small supervisor daemon when called without arguments and
otherwise sends one request to the running daemon over its control socket.

Examples:
  svcd                      # run the daemon
  svcd status               # daemon/status: list every service
  svcd stop                 # daemon/stop: shut the daemon down
  svcd start web            # start/web
  svcd status web           # status/web`,
		Args:          validateArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if len(args) == 0 {
				if flags.Detach {
					return detach(cmd.OutOrStdout())
				}
				return runDaemon(cmd.Context(), cfg)
			}
			return runClient(cmd.Context(), cmd.OutOrStdout(), cfg.Socket, flags.Timeout, args)
		},
	}

	f := root.Flags()
	f.StringVar(&flags.ConfigPath, "config", "", "path to config file (optional, TOML unless the extension says otherwise)")
	f.BoolVar(&flags.Detach, "detach", false, "run the daemon in the background")
	f.DurationVar(&flags.Timeout, "timeout", 10*time.Second, "control request timeout")
	f.String("socket", "", "control socket path")
	f.String("definitions", "", "service definitions directory or table file")
	f.String("autostart", "", "autostart list file")
	f.String("pidfile", "", "daemon pid file")
	f.String("log-level", "", "daemon log level (debug, info, warn, error)")
	f.String("log-format", "", "daemon log format (text, json)")
	f.String("log-file", "", "daemon log file (empty logs to stderr)")
	f.String("http-listen", "", "address for the HTTP status and metrics endpoint")
	return root
}

func validateArgs(_ *cobra.Command, args []string) error {
	if len(args) > 2 {
		return client.ErrUsage
	}
	return nil
}

func runClient(ctx context.Context, out io.Writer, socket string, timeout time.Duration, args []string) error {
	req, err := client.RequestFromArgs(args)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := client.New(client.Config{Socket: socket, Timeout: timeout})
	resp, err := c.Send(ctx, req)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("daemon not running at %s", socket)
		}
		return err
	}
	if resp != "" && !strings.HasSuffix(resp, "\n") {
		resp += "\n"
	}
	_, err = io.WriteString(out, resp)
	return err
}
