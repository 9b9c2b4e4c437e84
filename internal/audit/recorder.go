package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"empgate/internal/platform/metrics"
	"empgate/pkg/requestcontext"
)

// DefaultFlushLimit caps how many buffered events one flush persists.
// Whatever remains beyond the cap is dropped with the buffer: audit
// completeness is sacrificed under sustained load rather than risking
// unbounded memory growth.
const DefaultFlushLimit = 100

// Recorder routes audit events. High-priority events are durably recorded
// before Record returns; everything else is buffered and flushed in bounded
// batches on the janitor's schedule. Recording failures are swallowed - the
// audit trail is best-effort and must never affect the primary operation.
type Recorder struct {
	store      Store
	sink       Sink
	logger     *slog.Logger
	metrics    *metrics.Metrics
	flushLimit int

	mu      sync.Mutex
	pending []Event
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

func WithSink(sink Sink) Option {
	return func(r *Recorder) { r.sink = sink }
}

func WithFlushLimit(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.flushLimit = n
		}
	}
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:      store,
		logger:     slog.Default(),
		flushLimit: DefaultFlushLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record accepts an event, fills defaults, and routes it by priority.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.TransactionID == "" {
		e.TransactionID = uuid.NewString()
	}
	e.Priority = PriorityOf(e.Action)
	r.metrics.IncrementAuditEvents(e.Action)

	if e.Priority == PriorityHigh {
		if err := r.store.Append(ctx, e); err != nil {
			r.logger.ErrorContext(ctx, "failed to record high-priority audit event",
				"action", e.Action, "subject_id", e.SubjectID, "error", err)
		}
		if r.sink != nil {
			r.sink.Publish(ctx, e)
		}
		return
	}

	r.mu.Lock()
	r.pending = append(r.pending, e)
	r.mu.Unlock()
}

// Flush persists up to the flush limit of buffered events and clears the
// buffer; the overflow beyond the limit is dropped, not carried over.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	dropped := 0
	if len(batch) > r.flushLimit {
		dropped = len(batch) - r.flushLimit
		batch = batch[:r.flushLimit]
	}

	persisted := 0
	for _, e := range batch {
		if err := r.store.Append(ctx, e); err != nil {
			r.logger.WarnContext(ctx, "failed to flush audit event",
				"action", e.Action, "subject_id", e.SubjectID, "error", err)
			continue
		}
		persisted++
	}

	r.metrics.AddAuditDropped(dropped)
	if dropped > 0 {
		r.logger.WarnContext(ctx, "audit buffer exceeded flush cap, overflow dropped",
			"persisted", persisted, "dropped", dropped)
	}
	return nil
}

// PendingCount reports the buffered event count (diagnostics and tests).
func (r *Recorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
