package a2a

import (
	"testing"
	"time"
)

func TestTaskStateTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskState
		ok       bool
	}{
		{TaskStateSubmitted, TaskStateWorking, true},
		{TaskStateSubmitted, TaskStateCanceled, true},
		{TaskStateSubmitted, TaskStateCompleted, false},
		{TaskStateSubmitted, TaskStateFailed, false},
		{TaskStateWorking, TaskStateCompleted, true},
		{TaskStateWorking, TaskStateFailed, true},
		{TaskStateWorking, TaskStateCanceled, true},
		{TaskStateWorking, TaskStateSubmitted, false},
		{TaskStateCompleted, TaskStateWorking, false},
		{TaskStateCompleted, TaskStateCanceled, false},
		{TaskStateFailed, TaskStateWorking, false},
		{TaskStateCanceled, TaskStateWorking, false},
		{TaskStateUnknown, TaskStateWorking, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCanceled}
	for _, state := range terminal {
		if !state.Terminal() {
			t.Errorf("%s should be terminal", state)
		}
	}

	for _, state := range []TaskState{TaskStateSubmitted, TaskStateWorking, TaskStateUnknown} {
		if state.Terminal() {
			t.Errorf("%s should not be terminal", state)
		}
	}
}

func TestStatusUpdateEventFinalDerivedFromState(t *testing.T) {
	task := NewTask("")

	event := NewStatusUpdateEvent(task)
	if event.Final {
		t.Fatal("submitted task must not produce a final event")
	}

	task.Status = TaskStatus{State: TaskStateCompleted, Timestamp: time.Now()}
	event = NewStatusUpdateEvent(task)
	if !event.Final {
		t.Fatal("completed task must produce a final event")
	}
	if !event.Terminal() {
		t.Fatal("final status event must be terminal")
	}
}

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask("")

	if task.ID == "" {
		t.Fatal("task must have an id")
	}
	if task.ContextID == "" {
		t.Fatal("empty context id must be replaced with a fresh one")
	}
	if task.Kind != KindTask {
		t.Fatalf("task kind = %q, want %q", task.Kind, KindTask)
	}
	if task.Status.State != TaskStateSubmitted {
		t.Fatalf("new task state = %s, want %s", task.Status.State, TaskStateSubmitted)
	}

	other := NewTask("ctx-1")
	if other.ContextID != "ctx-1" {
		t.Fatalf("context id = %q, want ctx-1", other.ContextID)
	}
}

func TestMessageText(t *testing.T) {
	message := NewTextMessage(RoleUser, "hello")
	message.Parts = append(message.Parts, NewDataPart(map[string]any{"k": "v"}))
	message.Parts = append(message.Parts, NewTextPart(" world"))

	if got := message.Text(); got != "hello world" {
		t.Fatalf("Text() = %q, want %q", got, "hello world")
	}
}
