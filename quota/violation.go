package quota

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultViolationCapacity default ring buffer size
const DefaultViolationCapacity = 1000

// Violation a rejected, over-quota request retained for security review
type Violation struct {
	ID            string    `json:"id"`
	Key           string    `json:"key"`
	Category      Category  `json:"category"`
	Tier          Tier      `json:"tier"`
	Limit         int64     `json:"limit"`
	ObservedCount int64     `json:"observed_count"`
	ExceedBy      int64     `json:"exceed_by"`
	PrincipalIP   string    `json:"principal_ip"`
	ResourcePath  string    `json:"resource_path"`
	Method        string    `json:"method"`
	UserAgent     string    `json:"user_agent,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ViolationSink receives every recorded violation (log, message queue, ...)
type ViolationSink interface {
	Publish(ctx context.Context, v Violation) error
}

// DefaultSinkBuffer pending deliveries of a recorder-owned bus
const DefaultSinkBuffer = 256

// Recorder fixed-capacity ring buffer of violations, oldest evicted first
//
// Sinks never run on the caller's goroutine: Record publishes a ViolationEvent and a
// listener on the event bus forwards it. Deliveries are dropped when the bus is full.
type Recorder struct {
	mu      sync.RWMutex
	buf     []Violation
	next    int
	size    int
	sinks   []ViolationSink
	logger  Logger
	bus     EventBus
	ownsBus bool
}

// NewRecorder creates a recorder
func NewRecorder(capacity int, sinks ...ViolationSink) *Recorder {
	if capacity <= 0 {
		capacity = DefaultViolationCapacity
	}
	return &Recorder{
		buf:    make([]Violation, capacity),
		sinks:  sinks,
		logger: nopLogger{},
	}
}

// SetLogger logger for sink failures
func (r *Recorder) SetLogger(log Logger) {
	if log != nil {
		r.logger = log
	}
}

// AddSink registers an additional sink
func (r *Recorder) AddSink(sink ViolationSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Attach delivers to the sinks through bus instead of a recorder-owned one
//
// The caller keeps ownership of bus and closes it after the last Record.
func (r *Recorder) Attach(bus EventBus) {
	if bus == nil {
		return
	}
	r.mu.Lock()
	if r.bus == bus {
		r.mu.Unlock()
		return
	}
	var owned EventBus
	if r.ownsBus {
		owned = r.bus
	}
	r.bus = bus
	r.ownsBus = false
	r.mu.Unlock()

	bus.Subscribe(EventListenerFunc(r.forward))
	// the dispatcher takes r.mu, so the old bus drains outside the lock
	if owned != nil {
		owned.Close()
	}
}

// Record appends v and queues it for the sinks; it never waits on sink I/O
func (r *Recorder) Record(ctx context.Context, v Violation) {
	r.mu.Lock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	hasSinks := len(r.sinks) > 0
	if hasSinks && r.bus == nil {
		r.bus = NewEventBus(DefaultSinkBuffer)
		r.ownsBus = true
		r.bus.Subscribe(EventListenerFunc(r.forward))
	}
	bus := r.bus
	r.mu.Unlock()

	if hasSinks && bus != nil {
		bus.Publish(&ViolationEvent{
			BaseEvent: NewBaseEvent(ctx, EventViolation, v.Category, v.Timestamp),
			Violation: v,
		})
	}
}

// Close drains deliveries of a recorder-owned bus; an attached bus is left to its owner
func (r *Recorder) Close() {
	r.mu.Lock()
	bus := r.bus
	owns := r.ownsBus
	r.bus = nil
	r.ownsBus = false
	r.mu.Unlock()

	if owns {
		bus.Close()
	}
}

// forward runs on the bus dispatcher; sink errors are logged, never returned
func (r *Recorder) forward(event Event) {
	ev, ok := event.(*ViolationEvent)
	if !ok {
		return
	}

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	ctx := context.Background()
	if parent := ev.Context(); parent != nil {
		ctx = context.WithoutCancel(parent)
	}
	for _, sink := range sinks {
		if err := sink.Publish(ctx, ev.Violation); err != nil {
			r.logger.WarnCtx(ctx, "Violation sink publish failed",
				zap.String("key", ev.Violation.Key),
				zap.Error(err))
		}
	}
}

// Recent last n records, newest first; n <= 0 returns everything
func (r *Recorder) Recent(n int) []Violation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Violation, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Len number of buffered records
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap buffer capacity
func (r *Recorder) Cap() int {
	return len(r.buf)
}

// Clear empties the buffer
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = make([]Violation, len(r.buf))
	r.next = 0
	r.size = 0
}

// LogSink writes violations to a logger at warn level
type LogSink struct {
	Logger Logger
}

// Publish implements ViolationSink
func (s LogSink) Publish(ctx context.Context, v Violation) error {
	s.Logger.WarnCtx(ctx, "Quota violation",
		zap.String("violation_id", v.ID),
		zap.String("key", v.Key),
		zap.String("category", string(v.Category)),
		zap.String("tier", string(v.Tier)),
		zap.Int64("limit", v.Limit),
		zap.Int64("observed", v.ObservedCount),
		zap.Int64("exceed_by", v.ExceedBy),
		zap.String("ip", v.PrincipalIP),
		zap.String("path", v.ResourcePath),
		zap.String("method", v.Method),
		zap.String("user_agent", v.UserAgent))
	return nil
}
