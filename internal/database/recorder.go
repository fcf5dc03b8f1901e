package database

import (
	"context"
	"sync"
	"time"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// UsageRecorder accepts usage records without blocking the request path.
type UsageRecorder interface {
	Record(ctx context.Context, record UsageRecord)
	Close(ctx context.Context) error
}

// NopRecorder discards every record. It is used when no MongoDB URI is set.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, UsageRecord) {}
func (NopRecorder) Close(context.Context) error         { return nil }

// AsyncRecorder writes records from a single background goroutine. When
// the queue is full new records are dropped and reported through onDrop.
type AsyncRecorder struct {
	store        UsageStore
	environment  string
	writeTimeout time.Duration
	onDrop       func()

	queue chan UsageRecord
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsyncRecorder starts the writer goroutine. onDrop may be nil.
func NewAsyncRecorder(store UsageStore, cfg Config, onDrop func()) *AsyncRecorder {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &AsyncRecorder{
		store:        store,
		environment:  cfg.Environment,
		writeTimeout: timeout,
		onDrop:       onDrop,
		queue:        make(chan UsageRecord, size),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues record. The request id of ctx is used when the record has
// none.
func (r *AsyncRecorder) Record(ctx context.Context, record UsageRecord) {
	if record.RequestID == "" {
		record.RequestID = logger.RequestIDFromContext(ctx)
	}
	if record.Environment == "" {
		record.Environment = r.environment
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- record:
	default:
		logger.WarnCtx(ctx, "Usage ledger queue full, dropping record",
			"queue_size", cap(r.queue),
			"stage", logger.LogStages.DatabaseWrite)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for record := range r.queue {
		r.write(record)
	}
}

func (r *AsyncRecorder) write(record UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	ctx = logger.WithRequestID(ctx, record.RequestID)

	if err := r.store.Insert(ctx, &record); err != nil {
		logger.WarnCtx(ctx, "Failed to write usage record",
			"error", err.Error(),
			"stage", logger.LogStages.DatabaseWrite)
		return
	}
	logger.DebugCtx(ctx, "Usage record written",
		"model", record.Model,
		"total_tokens", record.TotalTokens,
		"stage", logger.LogStages.DatabaseWrite)
}

// Close stops accepting records and waits for the queue to drain or ctx to
// end.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
