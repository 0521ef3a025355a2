package quota

import (
	"sync"
)

// eventBus asynchronous event bus
type eventBus struct {
	listeners []EventListener
	eventChan chan Event
	closed    bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// NewEventBus creates an event bus with a bounded buffer
func NewEventBus(bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	bus := &eventBus{
		listeners: make([]EventListener, 0),
		eventChan: make(chan Event, bufferSize),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Subscribe adds a listener
func (b *eventBus) Subscribe(listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.listeners = append(b.listeners, listener)
}

// Publish never blocks the hot path: events are dropped when the buffer is full
func (b *eventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	select {
	case b.eventChan <- event:
	default:
	}
}

// Close drains pending events and stops dispatching
func (b *eventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *eventBus) dispatch() {
	defer b.wg.Done()

	for event := range b.eventChan {
		b.mu.RLock()
		listeners := make([]EventListener, len(b.listeners))
		copy(listeners, b.listeners)
		b.mu.RUnlock()

		for _, listener := range listeners {
			func() {
				// a panicking listener must not take the others down
				defer func() { _ = recover() }()
				listener.OnEvent(event)
			}()
		}
	}
}
