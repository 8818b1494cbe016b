package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/bus"
	rpcerrors "github.com/alohalabs/aloha/pkg/errors"
	"github.com/alohalabs/aloha/pkg/provider"
	"github.com/alohalabs/aloha/pkg/stores"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a scriptable capability provider for tests.
type stubProvider struct {
	invoked atomic.Int64
	invoke  func(ctx context.Context, text string) (string, error)
}

func (stub *stubProvider) Name() string { return "stub" }

func (stub *stubProvider) Invoke(ctx context.Context, text string) (string, error) {
	stub.invoked.Add(1)
	return stub.invoke(ctx, text)
}

func echoStub() *stubProvider {
	return &stubProvider{invoke: func(ctx context.Context, text string) (string, error) {
		return text, nil
	}}
}

func newHandler(brain provider.Interface) *RequestHandler {
	return NewRequestHandler(stores.NewInMemoryTaskStore(), bus.New(), brain)
}

func TestSubmitEchoRoundTrip(t *testing.T) {
	handler := newHandler(echoStub())

	task, rpcErr := handler.Submit(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "hello"),
	)
	require.Nil(t, rpcErr)

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "hello", task.Artifacts[0].Text())

	// history holds exactly the user message and the agent reply
	require.Len(t, task.History, 2)
	assert.Equal(t, a2a.RoleUser, task.History[0].Role)
	assert.Equal(t, a2a.RoleAgent, task.History[1].Role)
	assert.Equal(t, "hello", task.History[1].Text())
}

func TestSubmitWithDiceProvider(t *testing.T) {
	handler := newHandler(provider.NewDiceProvider())

	task, rpcErr := handler.Submit(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "Roll a 6-sided dice"),
	)
	require.Nil(t, rpcErr)

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	require.Len(t, task.Artifacts, 1)
	assert.Contains(t, task.Artifacts[0].Text(), "6-sided dice")
	assert.Len(t, task.History, 2)
}

func TestSubmitProviderFailureYieldsFailedTask(t *testing.T) {
	handler := newHandler(&stubProvider{
		invoke: func(ctx context.Context, text string) (string, error) {
			return "", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
		},
	})

	task, rpcErr := handler.Submit(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "roll a dice"),
	)

	// a failed unit of work is a successful call
	require.Nil(t, rpcErr)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Contains(t, task.Status.Message.Text(), "connection refused")
	assert.Empty(t, task.Artifacts)
}

func TestSubmitEmptyTextFailsWithoutProvider(t *testing.T) {
	stub := echoStub()
	handler := newHandler(stub)

	task, rpcErr := handler.Submit(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "   "),
	)
	require.Nil(t, rpcErr)

	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Contains(t, task.Status.Message.Text(), "Empty message")
	assert.Zero(t, stub.invoked.Load(), "provider must not run for empty input")
}

func TestSubmitMessageWithoutParts(t *testing.T) {
	handler := newHandler(echoStub())

	task, rpcErr := handler.Submit(context.Background(), &a2a.Message{Role: a2a.RoleUser})
	assert.Nil(t, task)
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrInvalidRequest.Code, rpcErr.Code)
}

func TestContinueTerminalTaskRejected(t *testing.T) {
	handler := newHandler(echoStub())

	task, rpcErr := handler.Submit(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "hello"),
	)
	require.Nil(t, rpcErr)

	followup := a2a.NewTextMessage(a2a.RoleUser, "again")
	followup.TaskID = task.ID

	again, rpcErr := handler.Submit(context.Background(), followup)
	assert.Nil(t, again)
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrInvalidTransition.Code, rpcErr.Code)
}

func TestContinueBusyTaskLeavesHistoryUntouched(t *testing.T) {
	release := make(chan struct{})
	handler := newHandler(&stubProvider{
		invoke: func(ctx context.Context, text string) (string, error) {
			select {
			case <-release:
				return "done", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})

	sub, rpcErr := handler.SubmitStream(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "slow work"),
	)
	require.Nil(t, rpcErr)
	defer close(release)

	snapshot := (<-sub.Events()).(*a2a.Task)
	working := <-sub.Events()
	require.False(t, working.Terminal())

	followup := a2a.NewTextMessage(a2a.RoleUser, "impatient follow-up")
	followup.TaskID = snapshot.ID

	again, rpcErr := handler.Submit(context.Background(), followup)
	assert.Nil(t, again)
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrInvalidTransition.Code, rpcErr.Code)

	// the rejected message must not appear in the task's history
	current, rpcErr := handler.GetTask(context.Background(), snapshot.ID)
	require.Nil(t, rpcErr)
	require.Len(t, current.History, 1)
	assert.Equal(t, "slow work", current.History[0].Text())
}

func TestGetTask(t *testing.T) {
	handler := newHandler(echoStub())

	task, _ := handler.Submit(context.Background(), a2a.NewTextMessage(a2a.RoleUser, "hi"))

	got, rpcErr := handler.GetTask(context.Background(), task.ID)
	require.Nil(t, rpcErr)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)

	_, rpcErr = handler.GetTask(context.Background(), "missing")
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrTaskNotFound.Code, rpcErr.Code)
}

func TestSubmitStreamEventOrder(t *testing.T) {
	handler := newHandler(echoStub())

	sub, rpcErr := handler.SubmitStream(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "stream me"),
	)
	require.Nil(t, rpcErr)

	var events []a2a.Event
	for event := range sub.Events() {
		events = append(events, event)
	}

	require.Len(t, events, 4)

	snapshot, ok := events[0].(*a2a.Task)
	require.True(t, ok, "first event must be the task snapshot")
	assert.Equal(t, a2a.TaskStateSubmitted, snapshot.Status.State)

	working, ok := events[1].(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateWorking, working.Status.State)
	assert.False(t, working.Final)

	artifact, ok := events[2].(a2a.TaskArtifactUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "stream me", artifact.Artifact.Text())

	completed, ok := events[3].(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, completed.Status.State)
	assert.True(t, completed.Final, "terminal event must carry final")
}

func TestStreamThenCancel(t *testing.T) {
	release := make(chan struct{})
	providerCtxDone := make(chan struct{})

	handler := newHandler(&stubProvider{
		invoke: func(ctx context.Context, text string) (string, error) {
			close(release)
			<-ctx.Done()
			close(providerCtxDone)
			return "", ctx.Err()
		},
	})

	sub, rpcErr := handler.SubmitStream(
		context.Background(), a2a.NewTextMessage(a2a.RoleUser, "slow work"),
	)
	require.Nil(t, rpcErr)

	snapshot := (<-sub.Events()).(*a2a.Task)
	working := <-sub.Events()
	require.False(t, working.Terminal())

	// Wait until the provider is actually running, then cancel.
	select {
	case <-release:
	case <-time.After(2 * time.Second):
		t.Fatal("provider never started")
	}

	task, rpcErr := handler.Cancel(context.Background(), snapshot.ID)
	require.Nil(t, rpcErr)
	assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)

	select {
	case <-providerCtxDone:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not propagate to the provider context")
	}

	final, open := <-sub.Events()
	require.True(t, open)
	status, ok := final.(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateCanceled, status.Status.State)
	assert.True(t, status.Final)

	// The canceled provider returning must not produce any more events.
	_, open = <-sub.Events()
	assert.False(t, open)

	got, rpcErr := handler.GetTask(context.Background(), snapshot.ID)
	require.Nil(t, rpcErr)
	assert.Equal(t, a2a.TaskStateCanceled, got.Status.State)
}

func TestCancelTerminalTask(t *testing.T) {
	handler := newHandler(echoStub())

	task, _ := handler.Submit(context.Background(), a2a.NewTextMessage(a2a.RoleUser, "hi"))

	canceled, rpcErr := handler.Cancel(context.Background(), task.ID)
	assert.Nil(t, canceled)
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrTaskNotCancelable.Code, rpcErr.Code)
}

func TestCancelUnknownTask(t *testing.T) {
	handler := newHandler(echoStub())

	_, rpcErr := handler.Cancel(context.Background(), "missing")
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpcerrors.ErrTaskNotFound.Code, rpcErr.Code)
}

func TestConcurrentSubmitsAreIndependent(t *testing.T) {
	handler := newHandler(echoStub())

	const n = 16
	results := make(chan *a2a.Task, n)

	for i := 0; i < n; i++ {
		go func() {
			task, rpcErr := handler.Submit(
				context.Background(), a2a.NewTextMessage(a2a.RoleUser, "parallel"),
			)
			assert.Nil(t, rpcErr)
			results <- task
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		task := <-results
		require.NotNil(t, task)
		assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
		assert.False(t, seen[task.ID], "task ids must be unique")
		seen[task.ID] = true
	}
}
