package pipeline

import (
	"strings"
	"testing"

	"github.com/zulandar/relay/internal/models"
)

func TestStageFor(t *testing.T) {
	tests := []struct {
		role      string
		next      string
		subject   string
		final     bool
		hasRoutes bool
	}{
		{"worker1", "worker2", SubjectDataReady, false, false},
		{"worker2", "worker3", SubjectProcessingComplete, false, true},
		{"worker3", "manager", SubjectReportComplete, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			s, ok := StageFor(tt.role)
			if !ok {
				t.Fatalf("StageFor(%s) not found", tt.role)
			}
			if s.Next != tt.next || s.Subject != tt.subject || s.FinalArtifact != tt.final {
				t.Errorf("stage = %+v", s)
			}
			if (s.Routine != nil) != tt.hasRoutes {
				t.Errorf("routine present = %v, want %v", s.Routine != nil, tt.hasRoutes)
			}
		})
	}

	if _, ok := StageFor("manager"); ok {
		t.Error("manager should have no stage")
	}
	if _, ok := StageFor("worker9"); ok {
		t.Error("unknown role should have no stage")
	}
}

func TestStagesChain(t *testing.T) {
	roles := Roles()
	for i, r := range roles {
		s, _ := StageFor(r)
		want := "manager"
		if i+1 < len(roles) {
			want = roles[i+1]
		}
		if s.Next != want {
			t.Errorf("%s.Next = %s, want %s", r, s.Next, want)
		}
		// Each downstream stage is triggered by exactly the upstream hand-off.
		if i+1 < len(roles) {
			next, _ := StageFor(roles[i+1])
			if next.Trigger.From != r || next.Trigger.Subject != s.Subject {
				t.Errorf("%s trigger = %+v, want from %s subject %s", roles[i+1], next.Trigger, r, s.Subject)
			}
		}
	}
}

func TestTriggers(t *testing.T) {
	w2, _ := StageFor("worker2")
	w1, _ := StageFor("worker1")
	tests := []struct {
		name  string
		stage Stage
		msg   models.Message
		want  bool
	}{
		{"match", w2, models.Message{From: "worker1", Subject: SubjectDataReady, Priority: "high"}, true},
		{"not high", w2, models.Message{From: "worker1", Subject: SubjectDataReady, Priority: "medium"}, false},
		{"wrong sender", w2, models.Message{From: "manager", Subject: SubjectDataReady, Priority: "high"}, false},
		{"wrong subject", w2, models.Message{From: "worker1", Subject: SubjectNewTask, Priority: "high"}, false},
		{"no trigger stage", w1, models.Message{From: "manager", Subject: SubjectDataReady, Priority: "high"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stage.Triggers(tt.msg); got != tt.want {
				t.Errorf("Triggers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandoffForTask(t *testing.T) {
	s, _ := StageFor("worker1")
	h := s.HandoffForTask("t1")
	if h.To != "worker2" || h.Subject != SubjectDataReady || h.Priority != models.PriorityHigh {
		t.Errorf("handoff = %+v", h)
	}
	if !strings.Contains(h.Body, "'t1'") {
		t.Errorf("Body = %q, want task name", h.Body)
	}
}

func TestHandoffForRoutine(t *testing.T) {
	s, _ := StageFor("worker3")
	h := s.HandoffForRoutine()
	if h.To != "manager" || h.Subject != SubjectReportComplete || h.Body == "" {
		t.Errorf("handoff = %+v", h)
	}
}

func TestRoutineSteps(t *testing.T) {
	tests := []struct {
		step int
		want []int
	}{
		{25, []int{0, 25, 50, 75, 100}},
		{33, []int{0, 33, 66, 99}},
		{100, []int{0, 100}},
	}
	for _, tt := range tests {
		got := RoutineSteps(tt.step)
		if len(got) != len(tt.want) {
			t.Errorf("RoutineSteps(%d) = %v, want %v", tt.step, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("RoutineSteps(%d) = %v, want %v", tt.step, got, tt.want)
				break
			}
		}
	}
	if n := len(RoutineSteps(0)); n != 101 {
		t.Errorf("RoutineSteps(0) has %d steps, want 101", n)
	}
}

func TestFinalRole(t *testing.T) {
	if got := FinalRole(); got != "worker3" {
		t.Errorf("FinalRole() = %q, want worker3", got)
	}
}

func TestHasSubject(t *testing.T) {
	tests := []struct {
		subject, s string
		want       bool
	}{
		{"task-error", SubjectTaskError, true},
		{"task-error: task_x.json", SubjectTaskError, true},
		{"task-started: task-error", SubjectTaskError, false},
		{"task-errors", SubjectTaskError, false},
		{"", SubjectTaskError, false},
	}
	for _, tt := range tests {
		if got := HasSubject(tt.subject, tt.s); got != tt.want {
			t.Errorf("HasSubject(%q, %q) = %v, want %v", tt.subject, tt.s, got, tt.want)
		}
	}
}
