// Package events provides a lightweight pub/sub event bus that exposes
// streaming results and lifecycle transitions to the UI layer and to
// observability listeners.
package events

import (
	"sync"
)

// Listener is a function that handles events.
type Listener func(*Event)

type subscription struct {
	id       uint64
	listener Listener
}

// EventBus distributes events to listeners. Events are delivered on a single
// dispatcher goroutine in publish order, so listeners observe results in the
// same order the session produced them.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]subscription
	globalListeners []subscription
	nextID          uint64

	qmu    sync.Mutex
	queue  []*Event
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewEventBus creates a new event bus and starts its dispatcher.
func NewEventBus() *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]subscription),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type. The returned
// function removes the listener.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.listeners[eventType] = append(eb.listeners[eventType], subscription{id: id, listener: listener})
	return func() { eb.remove(eventType, id) }
}

// SubscribeAll registers a listener for all event types.
func (eb *EventBus) SubscribeAll(listener Listener) (unsubscribe func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eb.nextID
	eb.globalListeners = append(eb.globalListeners, subscription{id: id, listener: listener})
	return func() { eb.removeGlobal(id) }
}

func (eb *EventBus) remove(eventType EventType, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.listeners[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.listeners[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (eb *EventBus) removeGlobal(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, s := range eb.globalListeners {
		if s.id == id {
			eb.globalListeners = append(eb.globalListeners[:i:i], eb.globalListeners[i+1:]...)
			return
		}
	}
}

// Publish queues an event for delivery. It never blocks on listeners and
// returns false when the bus is closed.
func (eb *EventBus) Publish(event *Event) bool {
	if event == nil {
		return false
	}
	eb.qmu.Lock()
	if eb.closed {
		eb.qmu.Unlock()
		return false
	}
	eb.queue = append(eb.queue, event)
	eb.qmu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting events, delivers everything already queued and
// returns once the dispatcher has exited. Safe to call multiple times.
func (eb *EventBus) Close() {
	eb.qmu.Lock()
	if eb.closed {
		eb.qmu.Unlock()
		<-eb.done
		return
	}
	eb.closed = true
	eb.qmu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
	<-eb.done
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]subscription)
	eb.globalListeners = nil
}

func (eb *EventBus) dispatch() {
	defer close(eb.done)
	for {
		eb.qmu.Lock()
		batch := eb.queue
		eb.queue = nil
		closed := eb.closed
		eb.qmu.Unlock()

		for _, event := range batch {
			eb.deliver(event)
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-eb.wake
		}
	}
}

func (eb *EventBus) deliver(event *Event) {
	eb.mu.RLock()
	typeSubs := eb.listeners[event.Type]
	specific := make([]subscription, len(typeSubs))
	copy(specific, typeSubs)
	global := make([]subscription, len(eb.globalListeners))
	copy(global, eb.globalListeners)
	eb.mu.RUnlock()

	for _, s := range specific {
		safeInvoke(s.listener, event)
	}
	for _, s := range global {
		safeInvoke(s.listener, event)
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
