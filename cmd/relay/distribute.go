package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/relay/internal/manager"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/task"
)

func newDistributeCmd(g *globalOpts) *cobra.Command {
	var (
		name        string
		description string
		command     string
		scriptFile  string
	)

	cmd := &cobra.Command{
		Use:   "distribute <role>",
		Short: "Queue a task for a worker",
		Long: "Writes a task file into the worker's pending directory and notifies the worker. " +
			"Without --command or --script-file the task is generic.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec task.Record
			switch {
			case command != "":
				rec = task.CommandRecord(name, description, command)
			case scriptFile != "":
				data, err := os.ReadFile(scriptFile)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				rec = task.ScriptRecord(name, description, string(data))
			default:
				rec = task.GenericRecord(name, description)
			}
			return runDistribute(cmd, g, args[0], rec)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "task name (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&command, "command", "", "shell command to run")
	cmd.Flags().StringVar(&scriptFile, "script-file", "", "file whose contents are run as a script")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("command", "script-file")
	return cmd
}

func runDistribute(cmd *cobra.Command, g *globalOpts, role string, rec task.Record) error {
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if !cfg.IsWorker(role) {
		return fmt.Errorf("unknown worker %q", role)
	}
	store, err := messaging.Open(cfg)
	if err != nil {
		return err
	}

	m, err := manager.New(manager.Opts{Config: cfg, Store: store, Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	path, err := m.Distribute(role, rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", path)
	return nil
}
