package manager

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/relay/internal/config"
	"github.com/zulandar/relay/internal/messaging"
	"github.com/zulandar/relay/internal/models"
	"github.com/zulandar/relay/internal/pipeline"
	"github.com/zulandar/relay/internal/report"
	"github.com/zulandar/relay/internal/task"
)

// recordingNotifier remembers every notice it was asked to send.
type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

type testEnv struct {
	cfg      *config.Config
	store    *messaging.FileStore
	notifier *recordingNotifier
	out      *bytes.Buffer
	mgr      *Manager
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Manager.Tick = 10 * time.Millisecond

	store, err := messaging.NewFileStore(cfg.Layout().MessagesFile())
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{cfg: cfg, store: store, notifier: &recordingNotifier{}, out: &bytes.Buffer{}}
	env.mgr, err = New(Opts{Config: cfg, Store: store, Notifier: env.notifier, Out: env.out})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := env.mgr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return env
}

func (e *testEnv) messagesTo(t *testing.T, role string) []models.Message {
	t.Helper()
	all, _ := e.store.All()
	var out []models.Message
	for _, m := range all {
		if m.To == role {
			out = append(out, m)
		}
	}
	return out
}

func (e *testEnv) logText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.cfg.Layout().LogFile(config.ManagerRole))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil || !strings.Contains(err.Error(), "config is required") {
		t.Errorf("New(nil config) = %v", err)
	}
	if _, err := New(Opts{Config: config.Default()}); err == nil || !strings.Contains(err.Error(), "store is required") {
		t.Errorf("New(nil store) = %v", err)
	}
}

func TestStart_CreatesWorkerDirs(t *testing.T) {
	env := newEnv(t)
	layout := env.cfg.Layout()
	for _, w := range env.cfg.Workers {
		for _, dir := range []string{layout.PendingDir(w), layout.CompletedDir(w)} {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("%s not created", dir)
			}
		}
	}
	if !strings.Contains(env.logText(t), "Warning: no instructions loaded") {
		t.Error("missing manager instructions should log a warning")
	}
}

func TestDistribute(t *testing.T) {
	env := newEnv(t)
	path, err := env.mgr.Distribute("worker2", task.GenericRecord("g1", "ack"))
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if filepath.Dir(path) != env.cfg.Layout().PendingDir("worker2") {
		t.Errorf("path = %s", path)
	}
	msgs := env.messagesTo(t, "worker2")
	if len(msgs) != 1 || msgs[0].Subject != pipeline.SubjectNewTask || !msgs[0].IsHigh() {
		t.Errorf("messages to worker2 = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Body, "g1") {
		t.Errorf("body = %q", msgs[0].Body)
	}

	if _, err := env.mgr.Distribute("manager", task.GenericRecord("x", "")); err == nil {
		t.Error("distributing to the manager should fail")
	}
	if _, err := env.mgr.Distribute("worker9", task.GenericRecord("x", "")); err == nil {
		t.Error("distributing to an unknown worker should fail")
	}
}

func TestSeedSampleTasks(t *testing.T) {
	env := newEnv(t)
	env.mgr.SeedSampleTasks()

	wantKinds := map[string]task.Kind{
		"worker1": task.KindCommand,
		"worker2": task.KindScript,
		"worker3": task.KindCommand,
	}
	for role, kind := range wantKinds {
		files, err := task.NewQueue(env.cfg.Layout(), role).List()
		if err != nil || len(files) != 1 {
			t.Fatalf("%s pending = %v, %v", role, files, err)
		}
		tk, err := task.Load(files[0])
		if err != nil {
			t.Fatal(err)
		}
		if tk.Kind() != kind {
			t.Errorf("%s task kind = %s, want %s", role, tk.Kind(), kind)
		}
		if len(env.messagesTo(t, role)) != 1 {
			t.Errorf("%s should get one new-task message", role)
		}
	}
}

// After N tasks distributed and M completed for a worker the report shows
// Pending=N-M, Completed=M.
func TestStatusReport_Counts(t *testing.T) {
	env := newEnv(t)
	const n, m = 4, 3
	q := task.NewQueue(env.cfg.Layout(), "worker1")
	var paths []string
	for i := 0; i < n; i++ {
		p, err := env.mgr.Distribute("worker1", task.GenericRecord("job", ""))
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	for _, p := range paths[:m] {
		if _, err := q.Complete(p); err != nil {
			t.Fatal(err)
		}
	}

	path, err := env.mgr.StatusReport()
	if err != nil {
		t.Fatalf("StatusReport: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "status_report_") || filepath.Dir(path) != env.cfg.Layout().OutputDir() {
		t.Errorf("path = %s", path)
	}
	data, _ := os.ReadFile(path)
	text := string(data)
	if !strings.HasPrefix(text, "=== Manager Status Report ===\nTime: ") {
		t.Errorf("report header:\n%s", text)
	}
	if !strings.Contains(text, "worker1: Pending=1, Completed=3") {
		t.Errorf("report:\n%s", text)
	}
	if !strings.Contains(text, "worker3: Pending=0, Completed=0") {
		t.Errorf("report:\n%s", text)
	}
	if !strings.Contains(env.logText(t), "Status Report: worker1: Pending=1, Completed=3") {
		t.Error("status report not logged")
	}
}

func TestCheckLiveness(t *testing.T) {
	env := newEnv(t)
	layout := env.cfg.Layout()
	now := time.Now()
	env.mgr.Now = func() time.Time { return now }

	fresh := layout.LogFile("worker1")
	stale := layout.LogFile("worker2")
	os.WriteFile(fresh, []byte("x\n"), 0o644)
	os.WriteFile(stale, []byte("x\n"), 0o644)
	old := now.Add(-12 * time.Minute)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	got := env.mgr.CheckLiveness()
	if len(got) != 1 || got[0] != "worker2" {
		t.Errorf("stale = %v, want [worker2]", got)
	}
	if !strings.Contains(env.logText(t), "WARNING: worker2 has not updated for 12 minutes") {
		t.Errorf("log:\n%s", env.logText(t))
	}
}

func TestClassifyReport(t *testing.T) {
	tests := []struct {
		subject string
		want    ReportKind
	}{
		{"report-complete", ReportCompletion},
		{"task-complete: t1", ReportCompletion},
		{"task-error: task_x.json", ReportError},
		{"Disk ERROR", ReportError},
		{"task-started: t1", ReportOther},
		{"task-started: connection_error_check", ReportOther},
		{"task-complete: error_scan", ReportCompletion},
		{"task-error: task_complete_me.json", ReportError},
		{"Processing-Complete", ReportCompletion},
		{"status update", ReportOther},
	}
	for _, tt := range tests {
		if got := ClassifyReport(models.Message{Subject: tt.subject}); got != tt.want {
			t.Errorf("ClassifyReport(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	for body, want := range map[string]bool{
		"dial tcp: connection refused": true,
		"read TIMEOUT after 30s":       true,
		"exit status 1":               false,
		"":                            false,
	} {
		if got := Retryable(body); got != want {
			t.Errorf("Retryable(%q) = %v, want %v", body, got, want)
		}
	}
}

func TestCheckMessages_ErrorWithRetry(t *testing.T) {
	env := newEnv(t)
	env.store.Send("worker1", "manager", "task-error: task_a.json", "connection reset by peer", models.PriorityHigh)
	env.store.Send("worker2", "manager", "task-error: task_b.json", "syntax error", models.PriorityHigh)

	env.mgr.CheckMessages(context.Background())

	logText := env.logText(t)
	if !strings.Contains(logText, "ERROR reported by worker1: connection reset by peer") {
		t.Errorf("log:\n%s", logText)
	}
	w1 := env.messagesTo(t, "worker1")
	if len(w1) != 1 || w1[0].Subject != pipeline.SubjectRetry || !w1[0].IsHigh() {
		t.Errorf("worker1 messages = %+v, want one high retry", w1)
	}
	if len(env.messagesTo(t, "worker2")) != 0 {
		t.Error("non-transient error must not trigger a retry")
	}
	if env.notifier.count() != 2 {
		t.Errorf("notifications = %d, want 2", env.notifier.count())
	}
}

func TestCheckMessages_FinalReport(t *testing.T) {
	env := newEnv(t)
	if _, err := report.Write(env.cfg.Layout().OutputDir(), report.PrefixFinal, time.Now(), "final"); err != nil {
		t.Fatal(err)
	}
	env.store.Send("worker3", "manager", pipeline.SubjectReportComplete, "Final report saved.", models.PriorityHigh)
	env.store.Send("worker1", "manager", "task-complete: t1", "done", models.PriorityMedium)

	env.mgr.CheckMessages(context.Background())

	logText := env.logText(t)
	for _, want := range []string{
		"Processing completion report from worker3",
		"Final report received. Checking output folder...",
		"Found 1 files in output folder:",
		"  - report_",
		"Processing completion report from worker1",
	} {
		if !strings.Contains(logText, want) {
			t.Errorf("log missing %q:\n%s", want, logText)
		}
	}
	if env.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1 (final report only)", env.notifier.count())
	}
}

func TestCheckMessages_TaskNameDoesNotChangeKind(t *testing.T) {
	env := newEnv(t)
	env.store.Send("worker1", "manager", "task-started: connection_error_check", "Started task", models.PriorityMedium)
	env.store.Send("worker1", "manager", "task-complete: connection_error_check", "Output: x", models.PriorityMedium)

	env.mgr.CheckMessages(context.Background())

	if msgs := env.messagesTo(t, "worker1"); len(msgs) != 0 {
		t.Errorf("worker1 messages = %+v, want none", msgs)
	}
	if env.notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0", env.notifier.count())
	}
	if logText := env.logText(t); strings.Contains(logText, "ERROR reported") {
		t.Errorf("status notice treated as error:\n%s", logText)
	}
}

func TestCheckMessages_FinalReportOnlyFromLastStage(t *testing.T) {
	env := newEnv(t)
	env.store.Send("worker1", "manager", pipeline.SubjectReportComplete, "not mine to send", models.PriorityHigh)

	env.mgr.CheckMessages(context.Background())

	logText := env.logText(t)
	if !strings.Contains(logText, "Processing completion report from worker1") {
		t.Errorf("log:\n%s", logText)
	}
	if strings.Contains(logText, "Final report received") {
		t.Errorf("final report accepted from worker1:\n%s", logText)
	}
	if env.notifier.count() != 0 {
		t.Errorf("notifications = %d, want 0", env.notifier.count())
	}
}

func TestRun_SeedsOnceAndStops(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.mgr.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	env.mgr.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Run did not return after Stop")
	}
	cancel()

	for _, role := range []string{"worker1", "worker2", "worker3"} {
		files, _ := task.NewQueue(env.cfg.Layout(), role).List()
		if len(files) != 1 {
			t.Errorf("%s pending = %d files, want exactly 1 seeded task", role, len(files))
		}
	}
	arts, _ := report.List(env.cfg.Layout().OutputDir())
	if len(arts) != 1 {
		t.Errorf("output = %+v, want one status report from the first tick", arts)
	}
	if !strings.Contains(env.logText(t), "Manager automation stopped") {
		t.Error("stop not logged")
	}
}

func TestRun_NoSeed(t *testing.T) {
	env := newEnv(t)
	off := false
	env.cfg.Manager.SeedSampleTasks = &off
	mgr, err := New(Opts{Config: env.cfg, Store: env.store, Notifier: env.notifier})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	mgr.Run(ctx)

	files, _ := task.NewQueue(env.cfg.Layout(), "worker1").List()
	if len(files) != 0 {
		t.Errorf("seeding disabled but worker1 has %d pending", len(files))
	}
}
