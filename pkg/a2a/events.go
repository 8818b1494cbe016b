package a2a

/*
Event is the union of everything the event bus delivers to a subscriber:
a full Task snapshot (emitted once, at creation), a status transition, or
a new artifact.  Terminal reports whether the event ends the stream; only
the final status update of a task is terminal.
*/
type Event interface {
	EventID() string
	Terminal() bool
}

// Wire discriminators, carried in the kind field of every event so
// consumers can decode frames without guessing at their shape.
const (
	KindTask           = "task"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

/*
TaskStatusUpdateEvent is sent when the agent wishes to inform the client of
a status transition.
*/
type TaskStatusUpdateEvent struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId,omitempty"`
	Kind      string         `json:"kind"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (event TaskStatusUpdateEvent) EventID() string { return event.ID }
func (event TaskStatusUpdateEvent) Terminal() bool  { return event.Final }

/*
TaskArtifactUpdateEvent is emitted when a new artefact is available for a
task.
*/
type TaskArtifactUpdateEvent struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId,omitempty"`
	Kind      string         `json:"kind"`
	Artifact  Artifact       `json:"artifact"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (event TaskArtifactUpdateEvent) EventID() string { return event.ID }
func (event TaskArtifactUpdateEvent) Terminal() bool  { return false }

// A *Task doubles as its own snapshot event.
func (task *Task) EventID() string { return task.ID }
func (task *Task) Terminal() bool  { return false }

/*
NewStatusUpdateEvent builds the status event for a task's current status.
Final is derived from the state, never set independently, which keeps the
"final iff terminal" invariant in one place.
*/
func NewStatusUpdateEvent(task *Task) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{
		ID:        task.ID,
		ContextID: task.ContextID,
		Kind:      KindStatusUpdate,
		Status:    task.Status,
		Final:     task.Status.State.Terminal(),
	}
}

func NewArtifactUpdateEvent(task *Task, artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{
		ID:        task.ID,
		ContextID: task.ContextID,
		Kind:      KindArtifactUpdate,
		Artifact:  artifact,
	}
}
