package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fidelity/internal/serve"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// ready is called with the server URL once listening (for testing).
	ready func(url string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <results-dir>",
		Short: "Browse a results tree",
		Long: `Serve a results tree over HTTP.

The index page shows, per scenario and golden, the candidate, boolean,
delta and golden images side by side. It is rebuilt from the tree's
config.json on every request, so rerunning into the same directory only
needs a page reload.

Example:
  fidelity serve ./test/fidelity/results --addr 127.0.0.1:9040`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:9030", "listen address")

	return cmd
}

func runServe(opts *ServeOptions, dir string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	info, err := os.Stat(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("results directory not found: %s", dir), err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	srv, err := serve.Start(opts.Addr, serve.Results(dir, logger), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start server", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", dir, srv.URL())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.ready != nil {
		opts.ready(srv.URL())
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Close(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped")
	return nil
}
