package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/models"
	"github.com/zulandar/relay/internal/pipeline"
	"github.com/zulandar/relay/internal/report"
)

// ReportKind classifies a message sent to the manager.
type ReportKind string

const (
	ReportCompletion ReportKind = "completion"
	ReportError      ReportKind = "error"
	ReportOther      ReportKind = "other"
)

// ClassifyReport decides how the manager handles msg. Subjects sent by
// workers are matched by their status prefix, so text after the prefix
// (a task name, a file name) never changes the kind. Other subjects fall
// back to a keyword match, completion winning when both appear.
func ClassifyReport(msg models.Message) ReportKind {
	switch {
	case pipeline.HasSubject(msg.Subject, pipeline.SubjectTaskStarted):
		return ReportOther
	case pipeline.HasSubject(msg.Subject, pipeline.SubjectTaskComplete),
		pipeline.HasSubject(msg.Subject, pipeline.SubjectReportComplete):
		return ReportCompletion
	case pipeline.HasSubject(msg.Subject, pipeline.SubjectTaskError):
		return ReportError
	}

	subject := strings.ToLower(msg.Subject)
	switch {
	case strings.Contains(subject, "complete"):
		return ReportCompletion
	case strings.Contains(subject, "error"):
		return ReportError
	default:
		return ReportOther
	}
}

// Retryable reports whether an error body looks transient enough to ask
// the worker to retry.
func Retryable(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "timeout") || strings.Contains(b, "connection")
}

// CheckMessages drains the manager inbox and handles each report.
func (m *Manager) CheckMessages(ctx context.Context) {
	msgs, err := m.Mailbox.Read()
	if err != nil {
		m.record(fmt.Sprintf("Error reading messages: %v", err))
	}
	for _, msg := range msgs {
		m.record(fmt.Sprintf("Received message from %s: %s", msg.From, msg.Subject))
		switch ClassifyReport(msg) {
		case ReportCompletion:
			m.handleCompletion(ctx, msg)
		case ReportError:
			m.handleError(ctx, msg)
		}
	}
}

func (m *Manager) handleCompletion(ctx context.Context, msg models.Message) {
	m.record("Processing completion report from " + msg.From)
	if msg.Subject != pipeline.SubjectReportComplete || msg.From != pipeline.FinalRole() {
		return
	}
	m.record("Final report received. Checking output folder...")
	arts, err := report.List(m.Layout.OutputDir())
	if err != nil {
		m.record(fmt.Sprintf("Error listing output folder: %v", err))
	} else if len(arts) > 0 {
		m.record(fmt.Sprintf("Found %d files in output folder:", len(arts)))
		for _, a := range arts {
			m.record("  - " + a.Name)
		}
	}
	messaging.NotifyMessage(ctx, m.Notifier, msg)
}

func (m *Manager) handleError(ctx context.Context, msg models.Message) {
	m.record(fmt.Sprintf("ERROR reported by %s: %s", msg.From, msg.Body))
	messaging.NotifyMessage(ctx, m.Notifier, msg)
	if Retryable(msg.Body) {
		m.record("Suggesting retry for " + msg.From)
		m.send(msg.From, pipeline.SubjectRetry,
			"An error was detected. Please run the task again.", models.PriorityHigh)
	}
}
