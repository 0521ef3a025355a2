package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

type captureSink struct {
	mu  sync.Mutex
	got []Violation
	err error
}

func (s *captureSink) Publish(ctx context.Context, v Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, v)
	return s.err
}

func (s *captureSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestRecorder_RecentNewestFirst(t *testing.T) {
	r := NewRecorder(10)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		r.Record(ctx, Violation{Key: fmt.Sprintf("k%d", i)})
	}

	recent := r.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "k4", recent[0].Key)
	assert.Equal(t, "k3", recent[1].Key)

	assert.Len(t, r.Recent(0), 4)
	assert.Len(t, r.Recent(100), 4)
}

func TestRecorder_EvictsOldest(t *testing.T) {
	r := NewRecorder(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		r.Record(ctx, Violation{Key: fmt.Sprintf("k%d", i)})
		assert.LessOrEqual(t, r.Len(), r.Cap())
	}

	assert.Equal(t, 3, r.Len())
	keys := []string{}
	for _, v := range r.Recent(0) {
		keys = append(keys, v.Key)
	}
	assert.Equal(t, []string{"k5", "k4", "k3"}, keys)
}

func TestRecorder_DefaultCapacity(t *testing.T) {
	r := NewRecorder(0)
	assert.Equal(t, DefaultViolationCapacity, r.Cap())

	ctx := context.Background()
	for i := 0; i < DefaultViolationCapacity+25; i++ {
		r.Record(ctx, Violation{ObservedCount: int64(i)})
	}
	assert.Equal(t, DefaultViolationCapacity, r.Len())
	assert.Equal(t, int64(DefaultViolationCapacity+24), r.Recent(1)[0].ObservedCount)
}

func TestRecorder_Clear(t *testing.T) {
	r := NewRecorder(5)
	r.Record(context.Background(), Violation{Key: "k"})
	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Recent(0))

	r.Record(context.Background(), Violation{Key: "after"})
	assert.Equal(t, "after", r.Recent(1)[0].Key)
}

func TestRecorder_SinkErrorsAreLogged(t *testing.T) {
	good := &captureSink{}
	bad := &captureSink{err: errors.New("broker down")}
	log := logger.NewTestCtxLogger()

	r := NewRecorder(5, bad)
	r.SetLogger(log)
	r.AddSink(good)

	r.Record(context.Background(), Violation{Key: "api:u1"})
	r.Close()

	assert.Equal(t, 1, good.Len())
	assert.Equal(t, 1, bad.Len())
	assert.Equal(t, 1, r.Len())
	assert.True(t, log.HasLog("WARN", "Violation sink publish failed"))
}

type slowSink struct {
	delay time.Duration
	done  chan Violation
}

func (s *slowSink) Publish(ctx context.Context, v Violation) error {
	time.Sleep(s.delay)
	s.done <- v
	return nil
}

func TestRecorder_SlowSinkDoesNotBlockRecord(t *testing.T) {
	sink := &slowSink{delay: 500 * time.Millisecond, done: make(chan Violation, 1)}
	r := NewRecorder(5, sink)
	defer r.Close()

	start := time.Now()
	r.Record(context.Background(), Violation{Key: "auth:10.0.0.1"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, r.Len(), "ring buffer is written before Record returns")

	select {
	case v := <-sink.done:
		assert.Equal(t, "auth:10.0.0.1", v.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("violation never reached the sink")
	}
}

func TestRecorder_SinkSeesRecordContextValues(t *testing.T) {
	type ctxKey struct{}
	got := make(chan context.Context, 1)
	r := NewRecorder(5, sinkFunc(func(ctx context.Context, v Violation) error {
		got <- ctx
		return nil
	}))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "trace-1"))
	r.Record(ctx, Violation{Key: "api:u1"})
	cancel()

	select {
	case sinkCtx := <-got:
		assert.Equal(t, "trace-1", sinkCtx.Value(ctxKey{}))
		assert.NoError(t, sinkCtx.Err(), "request cancellation must not abort delivery")
	case <-time.After(2 * time.Second):
		t.Fatal("violation never reached the sink")
	}
}

func TestRecorder_AttachDeliversThroughSharedBus(t *testing.T) {
	bus := NewEventBus(16)
	sink := &captureSink{}
	r := NewRecorder(5, sink)

	var seen []EventType
	var mu sync.Mutex
	bus.Subscribe(EventListenerFunc(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type())
		mu.Unlock()
	}))
	r.Attach(bus)

	r.Record(context.Background(), Violation{Key: "api:u1", Category: CategoryAPI})
	r.Close()
	bus.Close()

	assert.Equal(t, 1, sink.Len())
	mu.Lock()
	assert.Equal(t, []EventType{EventViolation}, seen)
	mu.Unlock()
}

func TestRecorder_NoSinksStartsNoBus(t *testing.T) {
	r := NewRecorder(5)
	r.Record(context.Background(), Violation{Key: "k"})
	assert.Nil(t, r.bus)
	r.Close()
}

type sinkFunc func(ctx context.Context, v Violation) error

func (f sinkFunc) Publish(ctx context.Context, v Violation) error { return f(ctx, v) }

func TestLogSink(t *testing.T) {
	log := logger.NewTestCtxLogger()
	sink := LogSink{Logger: log}

	err := sink.Publish(context.Background(), Violation{ID: "v1", Key: "auth:10.0.0.1", ExceedBy: 2})
	require.NoError(t, err)
	assert.True(t, log.HasLogWithField("WARN", "Quota violation", "key", "auth:10.0.0.1"))
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	r := NewRecorder(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Record(ctx, Violation{Key: "k"})
				_ = r.Recent(5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
