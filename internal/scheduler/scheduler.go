// Package scheduler implements the cooperative poll-tick loop every
// participant runs: one tick per interval, with each due activity run
// synchronously to completion before the next.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTick is the default interval between loop iterations.
const DefaultTick = time.Second

// cronParser accepts standard 5-field expressions plus descriptors such as
// "@every 30s" and "@hourly".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a plain duration ("10s"), a cron descriptor
// ("@every 10s") or a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("scheduler: empty schedule")
	}
	if d, err := time.ParseDuration(expr); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("scheduler: schedule %q must be positive", expr)
		}
		return Every(d), nil
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse %q: %w", expr, err)
	}
	return sched, nil
}

// every is a fixed-interval schedule. Unlike cron.Every it keeps
// sub-second precision.
type every time.Duration

// Every returns a schedule that fires d after the previous run.
func Every(d time.Duration) cron.Schedule { return every(d) }

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// Once returns a schedule that never fires again after its first run.
func Once() cron.Schedule { return once{} }

type once struct{}

func (once) Next(time.Time) time.Time { return time.Time{} }

// Activity is one periodic piece of work in a participant loop.
type Activity struct {
	Name     string
	Schedule cron.Schedule
	Run      func(ctx context.Context)

	next time.Time
	done bool
}

// Loop runs activities on a fixed tick.
type Loop struct {
	Tick       time.Duration
	Activities []*Activity
	Now        func() time.Time

	running atomic.Bool
	started bool
}

// New creates a loop with the given tick and activities.
func New(tick time.Duration, activities ...*Activity) *Loop {
	return &Loop{Tick: tick, Activities: activities}
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// RunDue runs every activity whose time has come, in order, and returns the
// names of the activities that ran. Every activity is due on its first call.
// Activities after a Stop() call within the same tick are skipped.
func (l *Loop) RunDue(ctx context.Context) []string {
	var ran []string
	for _, a := range l.Activities {
		if l.started && !l.running.Load() {
			break
		}
		if a.done {
			continue
		}
		now := l.now()
		if !a.next.IsZero() && now.Before(a.next) {
			continue
		}
		a.Run(ctx)
		ran = append(ran, a.Name)

		next := a.Schedule.Next(l.now())
		if next.IsZero() {
			a.done = true
			continue
		}
		a.next = next
	}
	return ran
}

// Run ticks until ctx is cancelled or Stop is called. Both take effect at
// the next tick boundary; a running activity is never interrupted.
func (l *Loop) Run(ctx context.Context) {
	tick := l.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	l.running.Store(true)
	l.started = true

	for l.running.Load() {
		if ctx.Err() != nil {
			l.running.Store(false)
			return
		}
		l.RunDue(ctx)
		if !l.running.Load() {
			return
		}
		sleepWithContext(ctx, tick)
	}
}

// Stop clears the running flag.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Running reports whether the loop is still running.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
