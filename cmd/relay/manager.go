package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/relay/internal/manager"
)

func newManagerCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "manager",
		Short: "Run the manager until interrupted",
		Long:  "Runs the manager: seeds sample tasks, handles worker reports, watches worker liveness and writes periodic status reports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManager(cmd, g)
		},
	}
}

func runManager(cmd *cobra.Command, g *globalOpts) error {
	cfg, store, err := openStore(g)
	if err != nil {
		return err
	}

	m, err := manager.New(manager.Opts{
		Config: cfg,
		Store:  store,
		Out:    cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "\nManager automation stopped by user")
	}
	return nil
}
