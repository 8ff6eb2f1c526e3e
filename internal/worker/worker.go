// Package worker runs a worker participant: it polls its pending task
// directory, executes tasks, reads its inbox, and hands work on to the next
// pipeline stage.
package worker

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
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

// Opts holds parameters for building a worker.
type Opts struct {
	Config *config.Config
	Role   string
	Store  messaging.Store
	Out    io.Writer
}

// Worker is one worker participant.
type Worker struct {
	Role     string
	Config   *config.Config
	Layout   config.Layout
	Mailbox  *messaging.Mailbox
	Queue    *task.Queue
	Executor *task.Executor
	Log      *activity.Log
	Out      io.Writer

	// Stage is the worker's place in the relay; HasStage is false for
	// configured workers outside it.
	Stage    pipeline.Stage
	HasStage bool

	// RoutinePause is the pause between simulated routine steps.
	RoutinePause time.Duration
	Now          func() time.Time

	loop    *scheduler.Loop
	stopped atomic.Bool
}

// New validates opts and builds the worker. Nothing is written to disk.
func New(opts Opts) (*Worker, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("worker: config is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("worker: store is required")
	}
	if opts.Role == "" {
		return nil, fmt.Errorf("worker: role is required")
	}
	if !opts.Config.IsWorker(opts.Role) {
		return nil, fmt.Errorf("worker: unknown role %q (configured workers: %s)",
			opts.Role, strings.Join(opts.Config.Workers, ", "))
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	cfg := opts.Config
	layout := cfg.Layout()
	alog := activity.New(opts.Role, layout.LogFile(opts.Role), out)
	stage, hasStage := pipeline.StageFor(opts.Role)

	w := &Worker{
		Role:         opts.Role,
		Config:       cfg,
		Layout:       layout,
		Mailbox:      messaging.NewMailbox(opts.Store, opts.Role),
		Queue:        task.NewQueue(layout, opts.Role),
		Executor:     task.NewExecutor(cfg, opts.Role, alog),
		Log:          alog,
		Out:          out,
		Stage:        stage,
		HasStage:     hasStage,
		RoutinePause: cfg.Worker.RoutinePause,
		Now:          time.Now,
	}

	activities, err := w.activities()
	if err != nil {
		return nil, err
	}
	w.loop = scheduler.New(cfg.Worker.Tick, activities...)
	return w, nil
}

func (w *Worker) activities() ([]*scheduler.Activity, error) {
	specs := []struct {
		name string
		expr string
		run  func(ctx context.Context)
	}{
		{"messages", w.Config.Worker.MessageCheck, w.CheckMessages},
		{"tasks", w.Config.Worker.TaskCheck, w.CheckTasks},
		{"heartbeat", w.Config.Worker.Heartbeat, func(context.Context) { w.Heartbeat() }},
	}
	var acts []*scheduler.Activity
	for _, s := range specs {
		sched, err := scheduler.ParseSchedule(s.expr)
		if err != nil {
			return nil, fmt.Errorf("worker: %s schedule: %w", s.name, err)
		}
		acts = append(acts, &scheduler.Activity{Name: s.name, Schedule: sched, Run: s.run})
	}
	return acts, nil
}

// Start prepares the worker's directories, logs startup and shows the
// instructions file. A missing instructions file is only a warning.
func (w *Worker) Start() error {
	if err := w.Layout.Ensure(w.Role); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	w.record(w.Role + " automation started")
	w.showInstructions()
	return nil
}

// Run starts the worker and polls until ctx is cancelled or a stop message
// arrives.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	w.record(w.Role + " is now running autonomously")
	w.loop.Run(ctx)
	w.record(w.Role + " automation stopped")
	return nil
}

// Stop asks the loop to exit at the next tick boundary.
func (w *Worker) Stop() {
	w.stopped.Store(true)
	w.loop.Stop()
}

// Stopped reports whether Stop has been called.
func (w *Worker) Stopped() bool {
	return w.stopped.Load()
}

// Heartbeat records that the worker is alive. The manager's liveness check
// reads the log's modification time.
func (w *Worker) Heartbeat() {
	w.record(w.Role + " is alive and monitoring")
}

// CheckTasks executes every pending task file in name order.
func (w *Worker) CheckTasks(ctx context.Context) {
	files, err := w.Queue.List()
	if err != nil {
		w.record(fmt.Sprintf("Error checking tasks: %v", err))
		log.Printf("worker %s: %v", w.Role, err)
		return
	}
	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		w.processTask(ctx, path)
	}
}

// processTask runs one pending file through load, execute, complete and
// hand-off. On any failure the file stays pending and the manager gets a
// high priority task-error message.
func (w *Worker) processTask(ctx context.Context, path string) {
	file := filepath.Base(path)
	w.record("Found pending task: " + file)

	t, err := task.Load(path)
	if err != nil {
		w.reportError(file, err)
		return
	}
	name := t.Info().Name

	w.progress("Executing task: "+name, 0)
	w.send(config.ManagerRole, pipeline.SubjectTaskStarted+": "+name,
		fmt.Sprintf("Started task '%s' (%s, %s).", name, t.Kind(), file), models.PriorityMedium)

	res, err := w.Executor.Execute(t)
	if err != nil {
		w.reportError(file, err)
		return
	}
	if _, err := w.Queue.Complete(path); err != nil {
		w.reportError(file, err)
		return
	}
	w.progress("Task completed: "+name, 100)

	body := fmt.Sprintf("Task '%s' completed.", name)
	if res.OutputPath != "" {
		body += " Output: " + res.OutputPath
	}
	w.send(config.ManagerRole, pipeline.SubjectTaskComplete+": "+name, body, models.PriorityMedium)

	if w.HasStage {
		if w.Stage.FinalArtifact {
			w.writeFinalReport(fmt.Sprintf("task '%s'", name))
		}
		w.handoff(w.Stage.HandoffForTask(name))
	}
}

func (w *Worker) reportError(file string, err error) {
	w.record(fmt.Sprintf("Error executing task %s: %v", file, err))
	log.Printf("worker %s: task %s: %v", w.Role, file, err)
	w.send(config.ManagerRole, pipeline.SubjectTaskError+": "+file, err.Error(), models.PriorityHigh)
}

func (w *Worker) handoff(h pipeline.Handoff) {
	w.send(h.To, h.Subject, h.Body, h.Priority)
}

// writeFinalReport deposits the pipeline's final artifact in the shared
// output directory.
func (w *Worker) writeFinalReport(source string) {
	counts, err := report.Collect(w.Layout, w.Config.Workers)
	if err != nil {
		log.Printf("worker %s: %v", w.Role, err)
	}
	now := w.now()
	path, err := report.Write(w.Layout.OutputDir(), report.PrefixFinal, now,
		report.FormatFinal(w.Role, source, now, counts))
	if err != nil {
		w.record(fmt.Sprintf("Error saving to output: %v", err))
		return
	}
	w.record("Report saved to " + path)
}

func (w *Worker) showInstructions() {
	path := w.Layout.InstructionsFile(w.Role)
	text, err := config.ReadInstructions(path, config.InstructionsPreview)
	if err != nil {
		w.record(fmt.Sprintf("Warning: no instructions loaded: %v", err))
		return
	}
	w.record("Instructions loaded successfully")
	fmt.Fprintf(w.Out, "\n=== %s Instructions ===\n%s\n%s\n\n", w.Role, text, strings.Repeat("=", 40))
}

func (w *Worker) send(to, subject, body, priority string) {
	if _, err := w.Mailbox.Send(to, subject, body, priority); err != nil {
		w.record(fmt.Sprintf("Error sending %q to %s: %v", subject, to, err))
		log.Printf("worker %s: send: %v", w.Role, err)
		return
	}
	fmt.Fprintf(w.Out, "[%s] Message sent to %s: %s\n", w.Role, to, subject)
}

func (w *Worker) record(text string) {
	if err := w.Log.Record(text); err != nil {
		log.Printf("worker %s: %v", w.Role, err)
	}
}

func (w *Worker) progress(text string, pct int) {
	if err := w.Log.Progress(text, pct); err != nil {
		log.Printf("worker %s: %v", w.Role, err)
	}
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
