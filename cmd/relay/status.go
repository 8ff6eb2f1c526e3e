package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/relay/internal/report"
)

func newStatusCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print pending and completed task counts per worker",
		Long:  "Prints the manager's status report to stdout. No artifact is written.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			counts, err := report.Collect(cfg.Layout(), cfg.Workers)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatStatus(time.Now(), counts))
			return nil
		},
	}
}
