// Package pipeline describes the fixed worker1 → worker2 → worker3 → manager
// relay: which stage follows which, what a stage sends when it finishes, and
// which upstream message starts a stage's built-in routine.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/models"
)

// Hand-off subjects.
const (
	SubjectDataReady          = "data-ready"
	SubjectProcessingComplete = "processing-complete"
	SubjectReportComplete     = "report-complete"
)

// Control subjects sent by the manager.
const (
	SubjectNewTask = "new-task"
	SubjectRetry   = "retry"
	SubjectStop    = "stop"
)

// Worker-to-manager status subjects.
const (
	SubjectTaskStarted  = "task-started"
	SubjectTaskComplete = "task-complete"
	SubjectTaskError    = "task-error"
)

// Routine is a stage's built-in processing run when its trigger arrives.
type Routine struct {
	Label     string
	Progress  string
	Completed string
	Step      int
	// Body is the hand-off message body sent after the routine.
	Body string
}

// Trigger is the upstream message that starts a stage's routine.
type Trigger struct {
	From    string
	Subject string
}

// Stage is one worker's position in the relay.
type Stage struct {
	Role    string
	Next    string
	Subject string
	// FinalArtifact is set on the last stage, which writes a report into the
	// shared output directory when it hands off.
	FinalArtifact bool
	Trigger       *Trigger
	Routine       *Routine
}

var stages = map[string]Stage{
	"worker1": {
		Role:    "worker1",
		Next:    "worker2",
		Subject: SubjectDataReady,
	},
	"worker2": {
		Role:    "worker2",
		Next:    "worker3",
		Subject: SubjectProcessingComplete,
		Trigger: &Trigger{From: "worker1", Subject: SubjectDataReady},
		Routine: &Routine{
			Label:     "Processing data from worker1",
			Progress:  "Data processing progress",
			Completed: "Data processing completed",
			Step:      25,
			Body:      "Data processing completed. Ready for report generation.",
		},
	},
	"worker3": {
		Role:          "worker3",
		Next:          config.ManagerRole,
		Subject:       SubjectReportComplete,
		FinalArtifact: true,
		Trigger:       &Trigger{From: "worker2", Subject: SubjectProcessingComplete},
		Routine: &Routine{
			Label:     "Generating report from worker2 results",
			Progress:  "Report generation progress",
			Completed: "Report generation completed",
			Step:      33,
			Body:      "Final report has been generated and saved to output folder.",
		},
	},
}

var handoffBodies = map[string]string{
	SubjectDataReady:          "Task '%s' completed. Data ready for processing.",
	SubjectProcessingComplete: "Task '%s' completed. Results ready for reporting.",
	SubjectReportComplete:     "Task '%s' completed. Report saved to output folder.",
}

// StageFor returns role's stage. Roles outside the relay have no stage.
func StageFor(role string) (Stage, bool) {
	s, ok := stages[role]
	return s, ok
}

// Roles returns the relay's worker roles in order.
func Roles() []string {
	return []string{"worker1", "worker2", "worker3"}
}

// FinalRole returns the role of the stage that writes the final report.
func FinalRole() string {
	for _, r := range Roles() {
		if stages[r].FinalArtifact {
			return r
		}
	}
	return ""
}

// HasSubject reports whether subject is s itself or s followed by ": detail",
// the form status messages use.
func HasSubject(subject, s string) bool {
	return subject == s || strings.HasPrefix(subject, s+":")
}

// Triggers reports whether msg starts this stage's routine: a high priority
// message from the expected upstream role with the expected subject.
func (s Stage) Triggers(msg models.Message) bool {
	if s.Trigger == nil || s.Routine == nil {
		return false
	}
	return msg.IsHigh() && msg.From == s.Trigger.From && msg.Subject == s.Trigger.Subject
}

// Handoff is the message a stage sends after finishing work.
type Handoff struct {
	To       string
	Subject  string
	Body     string
	Priority string
}

// HandoffForTask builds the hand-off sent after completing taskName.
func (s Stage) HandoffForTask(taskName string) Handoff {
	return Handoff{
		To:       s.Next,
		Subject:  s.Subject,
		Body:     fmt.Sprintf(handoffBodies[s.Subject], taskName),
		Priority: models.PriorityHigh,
	}
}

// HandoffForRoutine builds the hand-off sent after the stage's routine.
func (s Stage) HandoffForRoutine() Handoff {
	body := ""
	if s.Routine != nil {
		body = s.Routine.Body
	}
	return Handoff{To: s.Next, Subject: s.Subject, Body: body, Priority: models.PriorityHigh}
}

// RoutineSteps returns the progress values a routine logs: 0, step, 2*step
// and so on, never above 100.
func RoutineSteps(step int) []int {
	if step < 1 {
		step = 1
	}
	var steps []int
	for p := 0; p <= 100; p += step {
		steps = append(steps, p)
	}
	return steps
}
