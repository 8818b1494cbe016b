package bus

// EventBus delivers the ordered event sequence of one task to every active
// subscriber, decoupling the request handler (the single producer per
// task) from the transport adapters consuming the events.  Delivery is
// broadcast, not work-stealing: concurrent subscribers to the same task
// each observe the identical sequence.
//
// Every subscriber owns a bounded queue.  A publisher that would overflow
// a live subscriber's queue blocks until the subscriber drains; there is
// always at most one producer per task, so this cannot deadlock against
// itself.  A subscriber that withdrew its interest never blocks the
// publisher.

import (
	"fmt"
	"sync"
	"time"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/metrics"
	"github.com/charmbracelet/log"
)

// DefaultQueueSize bounds each subscriber's queue unless overridden.
const DefaultQueueSize = 32

type EventBus struct {
	mu        sync.Mutex
	topics    map[string]*topic
	queueSize int
	metrics   *metrics.StreamingMetrics
}

// topic is the per-task fan-out point.  closed flips once, on the terminal
// status update, and never resets.
type topic struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

/*
Subscription is a forward-only, single-consumer view on one task's event
sequence, starting from the moment of subscription.  Events() ends without
error when the task reaches a terminal state.  Close withdraws interest
early; it never affects the publisher or other subscribers.
*/
type Subscription struct {
	ch   chan a2a.Event
	done chan struct{}
	once sync.Once
}

func (sub *Subscription) Events() <-chan a2a.Event { return sub.ch }

func (sub *Subscription) Close() {
	sub.once.Do(func() { close(sub.done) })
}

type Option func(*EventBus)

func WithQueueSize(size int) Option {
	return func(bus *EventBus) {
		if size > 0 {
			bus.queueSize = size
		}
	}
}

func WithMetrics(m *metrics.StreamingMetrics) Option {
	return func(bus *EventBus) {
		bus.metrics = m
	}
}

func New(options ...Option) *EventBus {
	bus := &EventBus{
		topics:    make(map[string]*topic),
		queueSize: DefaultQueueSize,
		metrics:   metrics.NewStreamingMetrics(),
	}

	for _, option := range options {
		option(bus)
	}

	return bus
}

func (bus *EventBus) topic(taskID string) *topic {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	t, ok := bus.topics[taskID]
	if !ok {
		t = &topic{}
		bus.topics[taskID] = t
	}

	return t
}

/*
Subscribe returns a live subscription for the task's events.  Subscribing
to a task whose stream already ended yields a subscription that ends
immediately.
*/
func (bus *EventBus) Subscribe(taskID string) *Subscription {
	t := bus.topic(taskID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		sub := &Subscription{ch: make(chan a2a.Event), done: make(chan struct{})}
		close(sub.ch)
		return sub
	}

	sub := &Subscription{
		ch:   make(chan a2a.Event, bus.queueSize),
		done: make(chan struct{}),
	}
	t.subs = append(t.subs, sub)
	bus.metrics.RecordSubscribe()

	return sub
}

/*
Publish appends the event to the task's stream and wakes subscribers.
After a terminal status update the topic is closed for good; publishing on
a closed topic is a programming error (the state machine forbids events
after a terminal transition) and panics.
*/
func (bus *EventBus) Publish(taskID string, event a2a.Event) {
	t := bus.topic(taskID)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		panic(fmt.Sprintf("bus: publish on closed topic %s", taskID))
	}

	subs := append([]*Subscription(nil), t.subs...)
	terminal := event.Terminal()
	if terminal {
		t.closed = true
	}
	t.mu.Unlock()

	for _, sub := range subs {
		start := time.Now()
		select {
		case sub.ch <- event:
			bus.metrics.RecordEvent(false, time.Since(start))
		case <-sub.done:
			// Subscriber withdrew; drop without blocking the producer.
			bus.metrics.RecordEvent(true, time.Since(start))
		}
	}

	if terminal {
		log.Debug("event stream closed", "task_id", taskID)
		t.mu.Lock()
		for _, sub := range t.subs {
			close(sub.ch)
			bus.metrics.RecordUnsubscribe()
		}
		t.subs = nil
		t.mu.Unlock()
	}
}
