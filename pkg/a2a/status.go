package a2a

import "time"

/*
TaskState enumerates the mutually‑exclusive states a task may be in.  The
zero value is "unknown".
*/
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateFailed    TaskState = "failed"
	TaskStateUnknown   TaskState = "unknown"
)

// transitions is the full edge set of the task state machine.  Terminal
// states have no outgoing edges and are immutable once reached.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted: {TaskStateWorking, TaskStateCanceled},
	TaskStateWorking:   {TaskStateCompleted, TaskStateFailed, TaskStateCanceled},
}

// Terminal reports whether the state ends the task's lifecycle.
func (state TaskState) Terminal() bool {
	switch state {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from the
// receiver to the target state.
func (state TaskState) CanTransition(to TaskState) bool {
	for _, next := range transitions[state] {
		if next == to {
			return true
		}
	}
	return false
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
