// Package manager runs the manager participant: it distributes tasks,
// reads worker reports, watches worker liveness and writes periodic status
// reports into the shared output directory.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zulandar/relay/internal/activity"
	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/models"
	"github.com/zulandar/relay/internal/pipeline"
	"github.com/zulandar/relay/internal/report"
	"github.com/zulandar/relay/internal/scheduler"
	"github.com/zulandar/relay/internal/task"
)

// Opts holds parameters for building the manager.
type Opts struct {
	Config   *config.Config
	Store    messaging.Store
	Notifier messaging.Notifier
	Out      io.Writer
}

// Manager is the manager participant.
type Manager struct {
	Config   *config.Config
	Layout   config.Layout
	Mailbox  *messaging.Mailbox
	Notifier messaging.Notifier
	Log      *activity.Log
	Out      io.Writer
	Now      func() time.Time

	loop    *scheduler.Loop
	stopped atomic.Bool
}

// New validates opts and builds the manager. Nothing is written to disk.
func New(opts Opts) (*Manager, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("manager: config is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("manager: store is required")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = messaging.NewNotifier(opts.Config.Notify.SlackWebhookURL)
	}

	layout := opts.Config.Layout()
	m := &Manager{
		Config:   opts.Config,
		Layout:   layout,
		Mailbox:  messaging.NewMailbox(opts.Store, config.ManagerRole),
		Notifier: notifier,
		Log:      activity.New(config.ManagerRole, layout.LogFile(config.ManagerRole), out),
		Out:      out,
		Now:      time.Now,
	}

	activities, err := m.activities()
	if err != nil {
		return nil, err
	}
	m.loop = scheduler.New(opts.Config.Manager.Tick, activities...)
	return m, nil
}

func (m *Manager) activities() ([]*scheduler.Activity, error) {
	var acts []*scheduler.Activity
	if m.Config.Manager.ShouldSeed() {
		acts = append(acts, &scheduler.Activity{
			Name:     "seed",
			Schedule: scheduler.Once(),
			Run:      func(context.Context) { m.SeedSampleTasks() },
		})
	}

	specs := []struct {
		name string
		expr string
		run  func(ctx context.Context)
	}{
		{"messages", m.Config.Manager.MessageCheck, m.CheckMessages},
		{"liveness", m.Config.Manager.LivenessCheck, func(context.Context) { m.CheckLiveness() }},
		{"status", m.Config.Manager.StatusReport, func(context.Context) { m.StatusReport() }},
	}
	for _, s := range specs {
		sched, err := scheduler.ParseSchedule(s.expr)
		if err != nil {
			return nil, fmt.Errorf("manager: %s schedule: %w", s.name, err)
		}
		acts = append(acts, &scheduler.Activity{Name: s.name, Schedule: sched, Run: s.run})
	}
	return acts, nil
}

// Start prepares every worker's directories, logs startup and shows the
// manager instructions. Missing instructions are only a warning.
func (m *Manager) Start() error {
	roles := append([]string{config.ManagerRole}, m.Config.Workers...)
	if err := m.Layout.Ensure(roles...); err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	m.record("Manager automation started")

	text, err := config.ReadInstructions(m.Layout.InstructionsFile(config.ManagerRole), config.InstructionsPreview)
	if err != nil {
		m.record(fmt.Sprintf("Warning: no instructions loaded: %v", err))
		return nil
	}
	m.record("Manager instructions loaded successfully")
	fmt.Fprintf(m.Out, "\n=== Manager Instructions ===\n%s\n%s\n\n", text, strings.Repeat("=", 40))
	return nil
}

// Run starts the manager and polls until ctx is cancelled or Stop is called.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}
	m.record("Manager is now running autonomously")
	m.loop.Run(ctx)
	m.record("Manager automation stopped")
	return nil
}

// Stop asks the loop to exit at the next tick boundary.
func (m *Manager) Stop() {
	m.stopped.Store(true)
	m.loop.Stop()
}

// Stopped reports whether Stop has been called.
func (m *Manager) Stopped() bool {
	return m.stopped.Load()
}

// Distribute writes rec into role's pending directory and tells the worker
// with a high priority new-task message.
func (m *Manager) Distribute(role string, rec task.Record) (string, error) {
	if !m.Config.IsWorker(role) {
		return "", fmt.Errorf("manager: unknown worker %q", role)
	}
	path, err := task.NewQueue(m.Layout, role).Distribute(rec)
	if err != nil {
		return "", fmt.Errorf("manager: distribute to %s: %w", role, err)
	}
	m.record(fmt.Sprintf("Task '%s' distributed to %s", rec.Name, role))
	m.send(role, pipeline.SubjectNewTask, "New task available: "+rec.Name, models.PriorityHigh)
	return path, nil
}

// SampleTask pairs a task record with the worker it goes to.
type SampleTask struct {
	Role   string
	Record task.Record
}

// SampleTasks are distributed once at startup when seeding is enabled.
func SampleTasks() []SampleTask {
	return []SampleTask{
		{"worker1", task.CommandRecord("data_collection", "Prepare the collected data",
			"echo 'Collecting data...' && ls -la")},
		{"worker2", task.ScriptRecord("data_processing", "Process the data",
			"print('Processing data...')\nfor i in range(5):\n    print(f'Step {i+1}/5')\n")},
		{"worker3", task.CommandRecord("report_generation", "Generate the report",
			"echo 'Generating report...'")},
	}
}

// SeedSampleTasks distributes the sample tasks to the configured workers
// that should receive them.
func (m *Manager) SeedSampleTasks() {
	for _, st := range SampleTasks() {
		if !m.Config.IsWorker(st.Role) {
			continue
		}
		if _, err := m.Distribute(st.Role, st.Record); err != nil {
			m.record(fmt.Sprintf("Error distributing %s: %v", st.Record.Name, err))
			log.Printf("%v", err)
		}
	}
}

// CheckLiveness warns about every worker whose log has not changed for
// longer than the configured threshold and returns their names. Workers
// that never wrote a log are skipped.
func (m *Manager) CheckLiveness() []string {
	now := m.now()
	var stale []string
	for _, w := range m.Config.Workers {
		info, err := os.Stat(m.Layout.LogFile(w))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Printf("manager: liveness %s: %v", w, err)
			}
			continue
		}
		age := now.Sub(info.ModTime())
		if age > m.Config.Manager.StaleAfter {
			stale = append(stale, w)
			m.record(fmt.Sprintf("WARNING: %s has not updated for %d minutes", w, int(age.Minutes())))
		}
	}
	return stale
}

// StatusReport counts pending and completed task files per worker, logs the
// result and writes it to the output directory. It returns the artifact path.
func (m *Manager) StatusReport() (string, error) {
	counts, err := report.Collect(m.Layout, m.Config.Workers)
	if err != nil {
		log.Printf("manager: %v", err)
	}
	now := m.now()
	text := report.FormatStatus(now, counts)

	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s: Pending=%d, Completed=%d", c.Role, c.Pending, c.Completed)
	}
	m.record("Status Report: " + strings.Join(parts, "; "))

	path, err := report.Write(m.Layout.OutputDir(), report.PrefixStatus, now, text)
	if err != nil {
		m.record(fmt.Sprintf("Error saving status report: %v", err))
		return "", fmt.Errorf("manager: %w", err)
	}
	return path, nil
}

func (m *Manager) send(to, subject, body, priority string) {
	if _, err := m.Mailbox.Send(to, subject, body, priority); err != nil {
		m.record(fmt.Sprintf("Error sending %q to %s: %v", subject, to, err))
		log.Printf("manager: send: %v", err)
		return
	}
	fmt.Fprintf(m.Out, "[manager] Message sent to %s: %s\n", to, subject)
}

func (m *Manager) record(text string) {
	if err := m.Log.Record(text); err != nil {
		log.Printf("manager: %v", err)
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
