package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/relay/internal/models"
	"github.com/zulandar/relay/internal/pipeline"
)

// Action is what a worker does with an inbox message.
type Action string

const (
	ActionStop    Action = "stop"
	ActionRetry   Action = "retry"
	ActionRoutine Action = "routine"
	ActionNewTask Action = "new-task"
	ActionNote    Action = "note"
)

// Classify decides how a worker at stage handles msg. Stop wins over
// everything else; a routine needs the stage's exact trigger.
func Classify(stage pipeline.Stage, hasStage bool, msg models.Message) Action {
	subject := strings.ToLower(msg.Subject)
	switch {
	case strings.Contains(subject, pipeline.SubjectStop):
		return ActionStop
	case subject == pipeline.SubjectRetry:
		return ActionRetry
	case hasStage && stage.Triggers(msg):
		return ActionRoutine
	case subject == pipeline.SubjectNewTask:
		return ActionNewTask
	default:
		return ActionNote
	}
}

// CheckMessages drains the inbox and acts on each message in arrival order.
// A stop message ends processing of the batch.
func (w *Worker) CheckMessages(ctx context.Context) {
	msgs, err := w.Mailbox.Read()
	if err != nil {
		w.record(fmt.Sprintf("Error reading messages: %v", err))
	}
	for i, msg := range msgs {
		w.record(fmt.Sprintf("Received message from %s: %s", msg.From, msg.Subject))

		switch Classify(w.Stage, w.HasStage, msg) {
		case ActionStop:
			w.record("Received stop command from " + msg.From)
			if rest := len(msgs) - i - 1; rest > 0 {
				w.record(fmt.Sprintf("Ignoring %d remaining messages after stop", rest))
			}
			w.Stop()
			return
		case ActionRetry:
			w.record("Received retry command from " + msg.From)
			w.CheckTasks(ctx)
		case ActionRoutine:
			w.record("Processing high priority message: " + msg.Subject)
			w.RunRoutine(ctx)
		case ActionNewTask:
			w.record("New task notice: " + msg.Body)
		default:
			if msg.IsHigh() {
				w.record("Processing high priority message: " + msg.Subject)
			}
			w.record("Processing message: " + msg.Body)
		}
	}
}

// RunRoutine runs the stage's built-in routine with simulated progress,
// then hands off to the next stage. The last stage also writes the final
// report.
func (w *Worker) RunRoutine(ctx context.Context) {
	if !w.HasStage || w.Stage.Routine == nil {
		return
	}
	r := w.Stage.Routine

	w.progress(r.Label, 0)
	for _, pct := range pipeline.RoutineSteps(r.Step) {
		w.pause(ctx)
		w.progress(r.Progress, pct)
	}
	w.progress(r.Completed, 100)

	if w.Stage.FinalArtifact {
		w.writeFinalReport(fmt.Sprintf("%s routine", r.Label))
	}
	w.handoff(w.Stage.HandoffForRoutine())
}

// pause waits between routine steps. Cancellation shortens the wait but
// the routine still finishes.
func (w *Worker) pause(ctx context.Context) {
	if w.RoutinePause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(w.RoutinePause):
	}
}
