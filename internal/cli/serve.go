package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/subvote/internal/api"
	"github.com/roach88/subvote/internal/bot"
	"github.com/roach88/subvote/internal/decision"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sweeper, Telegram bot and HTTP API",
		Long: `Run every long-lived component until SIGINT or SIGTERM:

  - the deadline sweeper (every voting.sweep_interval)
  - the Telegram update loop, if telegram.bot_token is set
  - the HTTP API, if http.listen is set

Example:
  subvote serve --config /etc/subvote/subvote.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(opts, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			rt.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return decision.NewSweeper(rt.engine).Run(gctx)
	})

	if rt.telegram != nil {
		b := bot.New(rt.telegram, rt.engine, rt.store,
			bot.WithLogger(rt.logger),
			bot.WithReports(rt.reports),
			bot.WithPollTimeout(rt.cfg.Telegram.PollTimeout.Std()))
		g.Go(func() error { return b.Run(gctx) })
	} else {
		rt.logger.Warn("telegram.bot_token not set; votes can only arrive through the CLI")
	}

	if rt.cfg.HTTP.Listen != "" {
		srv := api.New(rt.submissions, rt.store, api.Options{
			APIToken:    rt.cfg.HTTP.APIToken,
			CORSOrigins: rt.cfg.HTTP.CORSOrigins,
			Reports:     rt.reports,
			Logger:      rt.logger,
		})
		g.Go(func() error { return srv.Serve(gctx, rt.cfg.HTTP.Listen) })
	}

	rt.logger.Info("subvote started",
		"parent_domain", rt.submissions.ParentDomain(),
		"dns_provider", rt.cfg.DNS.Provider,
		"quorum", rt.cfg.Voting.Quorum,
		"window", rt.cfg.Voting.Window)
	fmt.Fprintln(cmd.OutOrStdout(), "subvote started. Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, ErrCodeGeneric, "serve stopped with an error", err)
	}

	rt.logger.Info("subvote stopped gracefully")
	return nil
}
