package service

// RequestHandler is the single orchestration point every transport adapter
// calls into.  It owns the task lifecycle end to end: resolve or create
// the task, drive the state machine, invoke the capability provider,
// publish events, and keep the task store authoritative.  The three wire
// bindings are thin translations over this contract; none of them carries
// task logic of its own.

import (
	"context"
	"strings"
	"sync"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/bus"
	"github.com/alohalabs/aloha/pkg/errors"
	"github.com/alohalabs/aloha/pkg/provider"
	"github.com/alohalabs/aloha/pkg/stores"
	"github.com/charmbracelet/log"
)

// TaskManager is the transport-agnostic contract the wire bindings consume.
// Each method does its own validation and returns an *errors.RpcError when
// the request is structurally invalid or cannot be fulfilled; a task that
// ran and failed is a successful call.
type TaskManager interface {
	Submit(ctx context.Context, message *a2a.Message) (*a2a.Task, *errors.RpcError)
	SubmitStream(ctx context.Context, message *a2a.Message) (*bus.Subscription, *errors.RpcError)
	Cancel(ctx context.Context, taskID string) (*a2a.Task, *errors.RpcError)
	GetTask(ctx context.Context, taskID string) (*a2a.Task, *errors.RpcError)
}

type RequestHandler struct {
	store stores.TaskStore
	bus   *bus.EventBus
	brain provider.Interface

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRequestHandler(store stores.TaskStore, eventBus *bus.EventBus, brain provider.Interface) *RequestHandler {
	return &RequestHandler{
		store:   store,
		bus:     eventBus,
		brain:   brain,
		locks:   make(map[string]*sync.Mutex),
		cancels: make(map[string]context.CancelFunc),
	}
}

// taskLock returns the mutex serializing every mutating operation on one
// task.  Unrelated tasks proceed fully in parallel.
func (handler *RequestHandler) taskLock(taskID string) *sync.Mutex {
	handler.mu.Lock()
	defer handler.mu.Unlock()

	lock, ok := handler.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		handler.locks[taskID] = lock
	}

	return lock
}

func (handler *RequestHandler) setCancel(taskID string, cancel context.CancelFunc) {
	handler.mu.Lock()
	defer handler.mu.Unlock()
	handler.cancels[taskID] = cancel
}

func (handler *RequestHandler) takeCancel(taskID string) context.CancelFunc {
	handler.mu.Lock()
	defer handler.mu.Unlock()

	cancel := handler.cancels[taskID]
	delete(handler.cancels, taskID)
	return cancel
}

/*
Submit runs a message to its terminal state and returns the final task.
The caller blocks for the whole capability provider invocation.  Provider
failure and empty input are encoded in the returned task's state, never as
a call-level error; only a structurally invalid message or an illegal
continuation produces an RpcError.
*/
func (handler *RequestHandler) Submit(ctx context.Context, message *a2a.Message) (*a2a.Task, *errors.RpcError) {
	task, created, rpcErr := handler.resolve(message)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr = handler.begin(task, created); rpcErr != nil {
		return nil, rpcErr
	}

	return handler.run(ctx, task.ID, message.Text()), nil
}

/*
SubmitStream starts the same orchestration but returns the live event
subscription instead of blocking for the terminal event.  The subscriber
observes the task snapshot, zero or more status/artifact updates, and the
terminal status update, after which the stream ends.  Structural errors
surface here, before any event is published.
*/
func (handler *RequestHandler) SubmitStream(ctx context.Context, message *a2a.Message) (*bus.Subscription, *errors.RpcError) {
	task, created, rpcErr := handler.resolve(message)
	if rpcErr != nil {
		return nil, rpcErr
	}

	sub := handler.bus.Subscribe(task.ID)

	if rpcErr = handler.begin(task, created); rpcErr != nil {
		sub.Close()
		return nil, rpcErr
	}

	// The execution outlives the request that started it; only explicit
	// cancellation stops it.
	go handler.run(context.WithoutCancel(ctx), task.ID, message.Text())

	return sub, nil
}

/*
Cancel transitions a non-terminal task to canceled, publishes the terminal
event, and signals the in-flight provider invocation to stop.  Cancellation
is cooperative: no further events are published once it takes effect, but
the provider call may take a moment to return.
*/
func (handler *RequestHandler) Cancel(ctx context.Context, taskID string) (*a2a.Task, *errors.RpcError) {
	lock := handler.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, rpcErr := handler.store.Get(taskID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if task.Status.State.Terminal() {
		return nil, errors.ErrTaskNotCancelable.WithMessagef(
			"task %s is already %s", taskID, task.Status.State,
		)
	}

	task, rpcErr = handler.store.ApplyStatus(taskID, a2a.TaskStatus{State: a2a.TaskStateCanceled})
	if rpcErr != nil {
		return nil, rpcErr
	}
	handler.bus.Publish(taskID, a2a.NewStatusUpdateEvent(task))

	if cancel := handler.takeCancel(taskID); cancel != nil {
		cancel()
	}

	log.Info("task canceled", "task_id", taskID)
	return task, nil
}

/*
GetTask is a pure read; it never blocks on writers.
*/
func (handler *RequestHandler) GetTask(ctx context.Context, taskID string) (*a2a.Task, *errors.RpcError) {
	return handler.store.Get(taskID)
}

// resolve validates the inbound message and maps it to its task: no task
// id creates a fresh task, a known id continues it, an unknown id is
// ErrTaskNotFound.  A message with no parts at all is the one case where
// no task can be created.
func (handler *RequestHandler) resolve(message *a2a.Message) (*a2a.Task, bool, *errors.RpcError) {
	if message == nil || len(message.Parts) == 0 {
		return nil, false, errors.ErrInvalidRequest.WithMessagef("message has no parts")
	}

	seed := *message
	if seed.Role == "" {
		seed.Role = a2a.RoleUser
	}

	task, rpcErr := handler.store.Create(message.ContextID, message.TaskID, &seed)
	if rpcErr != nil {
		return nil, false, rpcErr
	}

	return task, message.TaskID == "", nil
}

// begin publishes the creation snapshot and commits the transition to
// working.  An illegal transition (continuing a terminal task, or a second
// producer racing on the same task) is a structural error and leaves both
// store and bus untouched.
func (handler *RequestHandler) begin(task *a2a.Task, created bool) *errors.RpcError {
	lock := handler.taskLock(task.ID)
	lock.Lock()
	defer lock.Unlock()

	if created {
		handler.bus.Publish(task.ID, task)
	}

	task, rpcErr := handler.store.ApplyStatus(task.ID, a2a.TaskStatus{State: a2a.TaskStateWorking})
	if rpcErr != nil {
		return rpcErr
	}
	handler.bus.Publish(task.ID, a2a.NewStatusUpdateEvent(task))

	return nil
}

// run drives a working task to its terminal state: invoke the provider,
// then commit exactly one terminal transition.  If cancellation won the
// race the task is already terminal and nothing further is published.
func (handler *RequestHandler) run(ctx context.Context, taskID string, text string) *a2a.Task {
	lock := handler.taskLock(taskID)

	lock.Lock()
	task := handler.mustGet(taskID)
	if task.Status.State.Terminal() {
		lock.Unlock()
		return task
	}

	if strings.TrimSpace(text) == "" {
		task = handler.fail(task, "Error: Empty message received. Please provide a message.")
		lock.Unlock()
		return task
	}

	invokeCtx, cancel := context.WithCancel(ctx)
	handler.setCancel(taskID, cancel)
	lock.Unlock()

	result, err := handler.brain.Invoke(invokeCtx, text)

	lock.Lock()
	defer lock.Unlock()

	if stale := handler.takeCancel(taskID); stale != nil {
		stale()
	}

	task = handler.mustGet(taskID)
	if task.Status.State.Terminal() {
		// Canceled while the provider was running; cancellation
		// guarantees silence from here on.
		return task
	}

	if err != nil {
		log.Error("capability provider failed", "task_id", taskID, "error", err)
		return handler.fail(task, "Error processing your request: "+err.Error())
	}

	artifact := a2a.NewTextArtifact("response", result)
	task = handler.mustAppendArtifact(taskID, artifact)
	handler.bus.Publish(taskID, a2a.NewArtifactUpdateEvent(task, artifact))

	reply := a2a.NewTextMessage(a2a.RoleAgent, result)
	reply.TaskID = task.ID
	reply.ContextID = task.ContextID

	task = handler.mustApplyStatus(taskID, a2a.TaskStatus{
		State:   a2a.TaskStateCompleted,
		Message: reply,
	})
	handler.bus.Publish(taskID, a2a.NewStatusUpdateEvent(task))

	return task
}

// fail commits the failed transition with a human-readable status message
// and publishes the terminal event.  Caller holds the task lock.
func (handler *RequestHandler) fail(task *a2a.Task, reason string) *a2a.Task {
	message := a2a.NewTextMessage(a2a.RoleAgent, reason)
	message.TaskID = task.ID
	message.ContextID = task.ContextID

	task = handler.mustApplyStatus(task.ID, a2a.TaskStatus{
		State:   a2a.TaskStateFailed,
		Message: message,
	})
	handler.bus.Publish(task.ID, a2a.NewStatusUpdateEvent(task))

	return task
}

// The must* helpers wrap store calls that cannot fail unless the engine
// itself is broken: the caller holds the task lock and has already proven
// the task exists and is non-terminal.  A failure here is a bug, not a
// runtime condition, so it aborts loudly.

func (handler *RequestHandler) mustGet(taskID string) *a2a.Task {
	task, rpcErr := handler.store.Get(taskID)
	if rpcErr != nil {
		panic("request handler: " + rpcErr.Error())
	}
	return task
}

func (handler *RequestHandler) mustApplyStatus(taskID string, status a2a.TaskStatus) *a2a.Task {
	task, rpcErr := handler.store.ApplyStatus(taskID, status)
	if rpcErr != nil {
		panic("request handler: " + rpcErr.Error())
	}
	return task
}

func (handler *RequestHandler) mustAppendArtifact(taskID string, artifact a2a.Artifact) *a2a.Task {
	task, rpcErr := handler.store.AppendArtifact(taskID, artifact)
	if rpcErr != nil {
		panic("request handler: " + rpcErr.Error())
	}
	return task
}
