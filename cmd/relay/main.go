package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "File-based manager/worker task relay",
		Long: "relay runs a manager and a set of workers that coordinate through a shared " +
			"message store and per-worker task directories.",
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "relay.yaml", "path to relay config file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env", ".env", "path to env file with overrides")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newWorkerCmd(g))
	cmd.AddCommand(newManagerCmd(g))
	cmd.AddCommand(newMsgCmd(g))
	cmd.AddCommand(newDistributeCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newDashboardCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
