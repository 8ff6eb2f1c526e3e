package scheduler

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

// --- ParseSchedule tests ---

func TestParseSchedule_Duration(t *testing.T) {
	sched, err := ParseSchedule("10s")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 500, time.UTC)
	if got := sched.Next(base); !got.Equal(base.Add(10 * time.Second)) {
		t.Errorf("Next = %v, want %v", got, base.Add(10*time.Second))
	}
}

func TestParseSchedule_EveryDescriptor(t *testing.T) {
	sched, err := ParseSchedule("@every 3m")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := sched.Next(base); !got.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("Next = %v, want %v", got, base.Add(3*time.Minute))
	}
}

func TestParseSchedule_CronExpression(t *testing.T) {
	sched, err := ParseSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	base := time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC)
	want := time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)
	if got := sched.Next(base); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr string
	}{
		{"", "empty schedule"},
		{"   ", "empty schedule"},
		{"-5s", "must be positive"},
		{"0s", "must be positive"},
		{"not a schedule", "parse"},
	}
	for _, tt := range tests {
		_, err := ParseSchedule(tt.expr)
		if err == nil {
			t.Errorf("ParseSchedule(%q): expected error", tt.expr)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("ParseSchedule(%q) error = %q, want to contain %q", tt.expr, err, tt.wantErr)
		}
	}
}

// --- RunDue tests ---

func TestRunDue_AllDueOnFirstTick(t *testing.T) {
	clock := newFakeClock()
	var calls []string
	loop := New(time.Second,
		&Activity{Name: "tasks", Schedule: Every(10 * time.Second), Run: func(context.Context) { calls = append(calls, "tasks") }},
		&Activity{Name: "messages", Schedule: Every(30 * time.Second), Run: func(context.Context) { calls = append(calls, "messages") }},
	)
	loop.Now = clock.Now

	ran := loop.RunDue(context.Background())
	want := []string{"tasks", "messages"}
	if !reflect.DeepEqual(ran, want) {
		t.Errorf("ran = %v, want %v", ran, want)
	}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestRunDue_RespectsIntervals(t *testing.T) {
	clock := newFakeClock()
	counts := map[string]int{}
	loop := New(time.Second,
		&Activity{Name: "tasks", Schedule: Every(10 * time.Second), Run: func(context.Context) { counts["tasks"]++ }},
		&Activity{Name: "messages", Schedule: Every(30 * time.Second), Run: func(context.Context) { counts["messages"]++ }},
	)
	loop.Now = clock.Now

	// 61 ticks of one second cover t=0..60.
	for i := 0; i < 61; i++ {
		loop.RunDue(context.Background())
		clock.Advance(time.Second)
	}

	if counts["tasks"] != 7 {
		t.Errorf("tasks ran %d times, want 7", counts["tasks"])
	}
	if counts["messages"] != 3 {
		t.Errorf("messages ran %d times, want 3", counts["messages"])
	}
}

func TestRunDue_SlowActivityDelaysNext(t *testing.T) {
	clock := newFakeClock()
	loop := New(time.Second,
		&Activity{Name: "slow", Schedule: Every(10 * time.Second), Run: func(context.Context) { clock.Advance(25 * time.Second) }},
	)
	loop.Now = clock.Now

	loop.RunDue(context.Background())
	// The next run is measured from when the slow run finished.
	clock.Advance(9 * time.Second)
	if ran := loop.RunDue(context.Background()); len(ran) != 0 {
		t.Errorf("ran = %v, want nothing before interval elapsed", ran)
	}
	clock.Advance(time.Second)
	if ran := loop.RunDue(context.Background()); len(ran) != 1 {
		t.Errorf("ran = %v, want slow to run", ran)
	}
}

func TestRunDue_Once(t *testing.T) {
	clock := newFakeClock()
	n := 0
	loop := New(time.Second, &Activity{Name: "seed", Schedule: Once(), Run: func(context.Context) { n++ }})
	loop.Now = clock.Now

	for i := 0; i < 5; i++ {
		loop.RunDue(context.Background())
		clock.Advance(time.Hour)
	}
	if n != 1 {
		t.Errorf("once activity ran %d times, want 1", n)
	}
}

// --- Run tests ---

func TestRun_StopFromActivity(t *testing.T) {
	var loop *Loop
	var after int
	loop = New(time.Millisecond,
		&Activity{Name: "stopper", Schedule: Every(time.Millisecond), Run: func(context.Context) { loop.Stop() }},
		&Activity{Name: "after", Schedule: Every(time.Millisecond), Run: func(context.Context) { after++ }},
	)

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if after != 0 {
		t.Errorf("activity after Stop ran %d times, want 0", after)
	}
	if loop.Running() {
		t.Error("Running() = true after stop")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan struct{}, 100)
	loop := New(5*time.Millisecond,
		&Activity{Name: "tick", Schedule: Every(time.Millisecond), Run: func(context.Context) {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}},
	)

	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	<-ticks
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSleepWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleepWithContext(ctx, 10*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("sleepWithContext should return immediately on cancelled ctx, took %v", elapsed)
	}
}
