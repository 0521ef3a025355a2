package quota

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_DeliversToAllListeners(t *testing.T) {
	bus := NewEventBus(10)

	var a, b atomic.Int32
	bus.Subscribe(EventListenerFunc(func(Event) { a.Add(1) }))
	bus.Subscribe(EventListenerFunc(func(Event) { b.Add(1) }))

	ev := &AdmittedEvent{BaseEvent: NewBaseEvent(context.Background(), EventAdmitted, CategoryAPI, time.Now())}
	bus.Publish(ev)
	bus.Publish(ev)
	bus.Close()

	assert.Equal(t, int32(2), a.Load())
	assert.Equal(t, int32(2), b.Load())
}

func TestEventBus_PanickingListenerIsIsolated(t *testing.T) {
	bus := NewEventBus(10)

	var got atomic.Int32
	bus.Subscribe(EventListenerFunc(func(Event) { panic("boom") }))
	bus.Subscribe(EventListenerFunc(func(Event) { got.Add(1) }))

	bus.Publish(&RejectedEvent{BaseEvent: NewBaseEvent(context.Background(), EventRejected, CategoryAuth, time.Now())})
	bus.Close()

	assert.Equal(t, int32(1), got.Load())
}

func TestEventBus_ClosedIgnoresPublishAndSubscribe(t *testing.T) {
	bus := NewEventBus(0)
	bus.Close()
	bus.Close()

	assert.NotPanics(t, func() {
		bus.Publish(&FailOpenEvent{BaseEvent: NewBaseEvent(context.Background(), EventFailOpen, CategoryAPI, time.Now())})
		bus.Subscribe(EventListenerFunc(func(Event) {}))
	})
}

func TestEventBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus(1)
	release := make(chan struct{})
	bus.Subscribe(EventListenerFunc(func(Event) { <-release }))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(&AdmittedEvent{BaseEvent: NewBaseEvent(context.Background(), EventAdmitted, CategoryAPI, time.Now())})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
	close(release)
	bus.Close()
}

func TestBaseEvent_Accessors(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := NewBaseEvent(ctx, EventTableUpdated, "", at)

	assert.Equal(t, EventTableUpdated, ev.Type())
	assert.Equal(t, Category(""), ev.Category())
	assert.Equal(t, ctx, ev.Context())
	assert.Equal(t, at, ev.Timestamp())
}
