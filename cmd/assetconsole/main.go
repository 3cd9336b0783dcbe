package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"asset-console/internal/app"
	"asset-console/internal/config"
	"asset-console/internal/logger"
	"asset-console/internal/service"
)

type globalOptions struct {
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "assetconsole",
		Short: "Operator console for the asset hierarchy backend",
		Long: `assetconsole keeps a live projection of the backend asset hierarchy.

Run without a subcommand to serve the console API, or use the subcommands
for one-off operations against the backend.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level := cfg.SlogLevel()
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.cfg = cfg
			opts.logger = logger.New(cmd.ErrOrStderr(), level)
			slog.SetDefault(opts.logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newTreeCmd(opts),
		newMoveCmd(opts),
		newDeleteCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return root
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the console API and keep the projection live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer application.Logout()

	if err := application.Serve(ctx); err != nil {
		opts.logger.Error("application run failed", "error", err)
		return err
	}
	return nil
}

// openSession logs in and loads the hierarchy for a one-off command. The
// caller must Logout.
func openSession(ctx context.Context, opts *globalOptions) (*app.App, service.Snapshot, error) {
	application, err := app.New(opts.cfg, opts.logger)
	if err != nil {
		return nil, service.Snapshot{}, err
	}

	_, snap, err := application.Start(ctx)
	if err != nil {
		return nil, service.Snapshot{}, err
	}
	return application, snap, nil
}
