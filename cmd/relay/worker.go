package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/worker"
)

func newWorkerCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "worker <role>",
		Short: "Run a worker until interrupted",
		Long:  "Runs one worker: polls its pending task directory and inbox, executes tasks and reports back to the manager.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, g, args[0])
		},
	}
}

func runWorker(cmd *cobra.Command, g *globalOpts, role string) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if !cfg.IsWorker(role) {
		return fmt.Errorf("unknown role %q (configured workers: %s)", role, strings.Join(cfg.Workers, ", "))
	}
	store, err := messaging.Open(cfg)
	if err != nil {
		return err
	}

	w, err := worker.New(worker.Opts{
		Config: cfg,
		Role:   role,
		Store:  store,
		Out:    cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s automation stopped by user\n", role)
	}
	return nil
}
