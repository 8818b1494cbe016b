package bus

import (
	"testing"
	"time"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusEvent(task *a2a.Task, state a2a.TaskState) a2a.TaskStatusUpdateEvent {
	task.Status = a2a.TaskStatus{State: state, Timestamp: time.Now()}
	return a2a.NewStatusUpdateEvent(task)
}

func TestBroadcastDeliversIdenticalSequences(t *testing.T) {
	eventBus := New()
	task := a2a.NewTask("")

	first := eventBus.Subscribe(task.ID)
	second := eventBus.Subscribe(task.ID)

	eventBus.Publish(task.ID, task)
	eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateWorking))
	eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateCompleted))

	collect := func(sub *Subscription) []a2a.Event {
		var events []a2a.Event
		for event := range sub.Events() {
			events = append(events, event)
		}
		return events
	}

	gotFirst := collect(first)
	gotSecond := collect(second)

	require.Len(t, gotFirst, 3)
	require.Len(t, gotSecond, 3)

	for i := range gotFirst {
		assert.Equal(t, gotFirst[i], gotSecond[i], "event %d differs between subscribers", i)
	}

	final, ok := gotFirst[2].(a2a.TaskStatusUpdateEvent)
	require.True(t, ok)
	assert.True(t, final.Final)
}

func TestTerminalEventClosesStream(t *testing.T) {
	eventBus := New()
	task := a2a.NewTask("")

	sub := eventBus.Subscribe(task.ID)
	eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateCanceled))

	event, open := <-sub.Events()
	require.True(t, open)
	assert.True(t, event.Terminal())

	_, open = <-sub.Events()
	assert.False(t, open, "stream must close after the terminal event")
}

func TestSubscribeAfterCloseEndsImmediately(t *testing.T) {
	eventBus := New()
	task := a2a.NewTask("")

	eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateCanceled))

	sub := eventBus.Subscribe(task.ID)
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestPublishAfterClosePanics(t *testing.T) {
	eventBus := New()
	task := a2a.NewTask("")

	eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateCanceled))

	assert.Panics(t, func() {
		eventBus.Publish(task.ID, a2a.NewStatusUpdateEvent(task))
	})
}

func TestClosedSubscriberNeverBlocksPublisher(t *testing.T) {
	// Queue size 1 so an undrained live subscriber would block the second
	// publish; a withdrawn one must not.
	eventBus := New(WithQueueSize(1))
	task := a2a.NewTask("")

	sub := eventBus.Subscribe(task.ID)
	eventBus.Publish(task.ID, task)
	sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateWorking))
		eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateCompleted))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a closed subscriber")
	}
}

func TestSlowSubscriberBackpressure(t *testing.T) {
	eventBus := New(WithQueueSize(1))
	task := a2a.NewTask("")

	sub := eventBus.Subscribe(task.ID)
	eventBus.Publish(task.ID, task) // fills the queue

	published := make(chan struct{})
	go func() {
		eventBus.Publish(task.ID, statusEvent(task, a2a.TaskStateWorking))
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("publish should block while the subscriber queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	<-sub.Events() // drain one slot

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not resume after the subscriber drained")
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	eventBus := New()
	one := a2a.NewTask("")
	two := a2a.NewTask("")

	sub := eventBus.Subscribe(one.ID)
	eventBus.Publish(two.ID, statusEvent(two, a2a.TaskStateCanceled))

	select {
	case <-sub.Events():
		t.Fatal("subscriber must not observe another task's events")
	case <-time.After(50 * time.Millisecond):
	}
}
