package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zulandar/relay/internal/activity"
	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/models"
	"golang.org/x/term"
)

func newMsgCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "msg <role> <send|read|log> [args...]",
		Short: "Send, read or log as a participant",
		Long: `Acts as one participant from the command line.

  relay msg <role> send <to> <subject> <message> [priority]
  relay msg <role> read
  relay msg <role> log <activity> [progress]

Reading marks every message addressed to <role> as read.`,
		Args: validateMsgArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			role := args[0]
			if err := checkParticipant(cfg, role); err != nil {
				return err
			}

			if args[1] == "log" {
				return runMsgLog(cmd, cfg, role, args[2:])
			}

			store, err := messaging.Open(cfg)
			if err != nil {
				return err
			}
			mb := messaging.NewMailbox(store, role)
			if args[1] == "send" {
				return runMsgSend(cmd, mb, args[2:])
			}
			return runMsgRead(cmd, mb)
		},
	}
}

// validateMsgArgs checks the sub-command and its argument count before any
// state is touched.
func validateMsgArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("role is required")
	}
	if len(args) < 2 {
		return fmt.Errorf("no command specified (want send, read or log)")
	}
	rest := args[2:]
	switch args[1] {
	case "send":
		if len(rest) < 3 || len(rest) > 4 {
			return fmt.Errorf("send requires: <to> <subject> <message> [priority]")
		}
		if len(rest) == 4 && !models.ValidPriority(rest[3]) {
			return fmt.Errorf("invalid priority %q (want low, medium or high)", rest[3])
		}
	case "read":
		if len(rest) != 0 {
			return fmt.Errorf("read takes no arguments")
		}
	case "log":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("log requires: <activity> [progress]")
		}
		if len(rest) == 2 {
			if _, err := parseProgress(rest[1]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown command %q (want send, read or log)", args[1])
	}
	return nil
}

func parseProgress(s string) (int, error) {
	pct, err := strconv.Atoi(s)
	if err != nil || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("invalid progress %q (want an integer from 0 to 100)", s)
	}
	return pct, nil
}

func runMsgSend(cmd *cobra.Command, mb *messaging.Mailbox, args []string) error {
	priority := models.PriorityMedium
	if len(args) == 4 {
		priority = args[3]
	}
	to, subject := args[0], args[1]
	if _, err := mb.Send(to, subject, args[2], priority); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Message sent to %s: %s\n", to, subject)
	return nil
}

func runMsgRead(cmd *cobra.Command, mb *messaging.Mailbox) error {
	msgs, err := mb.Read()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, "No new messages")
		return nil
	}
	styled := isTerminal(out)
	for _, m := range msgs {
		printMessage(out, m, styled)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	highStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func printMessage(out io.Writer, m models.Message, styled bool) {
	header := fmt.Sprintf("--- Message from %s ---", m.From)
	priority := m.Priority
	if styled {
		header = headerStyle.Render(header)
		if m.IsHigh() {
			priority = highStyle.Render(priority)
		}
	}
	fmt.Fprintf(out, "\n%s\n", header)
	fmt.Fprintf(out, "Time: %s\n", m.Timestamp)
	fmt.Fprintf(out, "Subject: %s\n", m.Subject)
	fmt.Fprintf(out, "Priority: %s\n", priority)
	fmt.Fprintf(out, "Message: %s\n", m.Body)
	fmt.Fprintln(out, "---")
}

// isTerminal reports whether out is an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runMsgLog(cmd *cobra.Command, cfg *config.Config, role string, args []string) error {
	alog := activity.New(role, cfg.Layout().LogFile(role), cmd.OutOrStdout())
	if len(args) == 2 {
		pct, err := parseProgress(args[1])
		if err != nil {
			return err
		}
		return alog.Progress(args[0], pct)
	}
	return alog.Record(args[0])
}
