package stores

// TaskStore is the authoritative snapshot of every task's latest state.
// The built‑in implementation is an in‑memory map safe for concurrent use;
// its lifetime equals the process lifetime (persistence across restarts is
// out of scope).  Per-task mutation is serialized by the store, unrelated
// tasks proceed fully in parallel, and reads never block on writers beyond
// the map lock itself.

import (
	"sync"
	"time"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/errors"
	"github.com/charmbracelet/log"
)

type TaskStore interface {
	Create(contextID string, taskID string, seed *a2a.Message) (*a2a.Task, *errors.RpcError)
	Get(taskID string) (*a2a.Task, *errors.RpcError)
	ApplyStatus(taskID string, status a2a.TaskStatus) (*a2a.Task, *errors.RpcError)
	AppendArtifact(taskID string, artifact a2a.Artifact) (*a2a.Task, *errors.RpcError)
}

// InMemoryTaskStore is the default TaskStore implementation.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks: make(map[string]*a2a.Task),
	}
}

/*
Create resolves the task a message belongs to.  An empty taskID allocates
a fresh task in the submitted state; a known taskID returns the existing
task (idempotent continuation); an unknown taskID is a structural error,
never an implicit creation.  Continuing a task that cannot accept new
work (terminal, or already working) is rejected without touching it.
The seed message, when present, is appended to the task history.
*/
func (store *InMemoryTaskStore) Create(contextID string, taskID string, seed *a2a.Message) (*a2a.Task, *errors.RpcError) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if taskID != "" {
		task, ok := store.tasks[taskID]
		if !ok {
			return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID)
		}
		if !task.Status.State.CanTransition(a2a.TaskStateWorking) {
			return nil, errors.ErrInvalidTransition.WithMessagef(
				"cannot continue task %s in state %s", taskID, task.Status.State,
			)
		}
		if seed != nil {
			task.AddMessage(*seed)
		}
		return snapshot(task), nil
	}

	task := a2a.NewTask(contextID)
	if seed != nil {
		task.AddMessage(*seed)
	}
	store.tasks[task.ID] = task

	log.Info("task created", "task_id", task.ID, "context_id", task.ContextID)
	return snapshot(task), nil
}

/*
Get returns a copy of the task's latest snapshot.
*/
func (store *InMemoryTaskStore) Get(taskID string) (*a2a.Task, *errors.RpcError) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	task, ok := store.tasks[taskID]
	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID)
	}

	return snapshot(task), nil
}

/*
ApplyStatus overwrites the task's status after validating the transition
against the state machine, and appends the status message (if any) to the
history.  An illegal transition mutates nothing.
*/
func (store *InMemoryTaskStore) ApplyStatus(taskID string, status a2a.TaskStatus) (*a2a.Task, *errors.RpcError) {
	store.mu.Lock()
	defer store.mu.Unlock()

	task, ok := store.tasks[taskID]
	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID)
	}

	if !task.Status.State.CanTransition(status.State) {
		return nil, errors.ErrInvalidTransition.WithMessagef(
			"cannot transition task %s from %s to %s", taskID, task.Status.State, status.State,
		)
	}

	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	task.Status = status
	if status.Message != nil {
		task.AddMessage(*status.Message)
	}

	log.Info("task status update", "task_id", taskID, "status", status.State)
	return snapshot(task), nil
}

/*
AppendArtifact appends an artifact to the task.  Ordering relative to
status updates is publish order only.
*/
func (store *InMemoryTaskStore) AppendArtifact(taskID string, artifact a2a.Artifact) (*a2a.Task, *errors.RpcError) {
	store.mu.Lock()
	defer store.mu.Unlock()

	task, ok := store.tasks[taskID]
	if !ok {
		return nil, errors.ErrTaskNotFound.WithMessagef("task %s not found", taskID)
	}

	task.AddArtifact(artifact)
	return snapshot(task), nil
}

// snapshot copies a task so callers can never mutate the stored value
// behind the store's back.  Slices are copied one level deep, which is
// enough because messages, parts and artifacts are treated as immutable.
func snapshot(task *a2a.Task) *a2a.Task {
	out := *task
	out.History = append([]a2a.Message(nil), task.History...)
	out.Artifacts = append([]a2a.Artifact(nil), task.Artifacts...)
	return &out
}
