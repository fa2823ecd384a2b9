package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"go.uber.org/zap"
)

// AsyncRecorder appends audit events through a buffered channel and a worker
// pool, for deployments where the event store is remote and appending inline
// would put store latency on the execution path. It satisfies
// repositories.EventStore, so the synchronous Recorder can sit in front of it
// unchanged.
type AsyncRecorder struct {
	store       repositories.EventStore
	logger      *zap.Logger
	eventChan   chan *models.AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	// sendMu guards the channel against close-during-send: Enqueue holds the
	// read lock for the duration of its send, Stop takes the write lock
	// before closing. mu guards the lifecycle flags.
	sendMu  sync.RWMutex
	mu      sync.Mutex
	started bool
	closed  bool
}

// Config holds configuration for the AsyncRecorder
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  4096,
		WorkerCount: 3,
	}
}

// NewAsyncRecorder creates a new AsyncRecorder instance
func NewAsyncRecorder(store repositories.EventStore, logger *zap.Logger, config Config) *AsyncRecorder {
	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncRecorder{
		store:       store,
		logger:      logger,
		eventChan:   make(chan *models.AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (r *AsyncRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("async recorder already started")
	}
	if r.closed {
		return fmt.Errorf("async recorder already stopped")
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("started async audit recorder",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))

	return nil
}

// Stop gracefully stops the recorder, draining pending events. Enqueue calls
// that race with Stop either land their event or return an error; they can
// never hit a closed channel.
func (r *AsyncRecorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started || r.closed {
		r.mu.Unlock()
		return fmt.Errorf("async recorder not running")
	}
	r.closed = true
	r.mu.Unlock()

	// Unblock senders waiting on a full buffer, then wait out any send still
	// in flight before closing the channel.
	r.cancel()
	r.sendMu.Lock()
	close(r.eventChan)
	r.sendMu.Unlock()

	r.logger.Info("stopping async audit recorder", zap.Int("pending_events", len(r.eventChan)))

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("async audit recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("async recorder stop timeout after %v", timeout)
	}
}

// Enqueue queues an event for appending. It blocks until the event is queued
// or the context is cancelled: audit events are never silently dropped, so
// there is no lossy non-blocking variant. After Stop it returns an error.
func (r *AsyncRecorder) Enqueue(ctx context.Context, event *models.AuditEvent) error {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	r.mu.Lock()
	running := r.started && !r.closed
	r.mu.Unlock()
	if !running {
		return fmt.Errorf("async recorder not running")
	}

	select {
	case r.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return fmt.Errorf("async recorder stopped")
	}
}

// Append satisfies repositories.EventStore by enqueueing the event.
func (r *AsyncRecorder) Append(ctx context.Context, event *models.AuditEvent) error {
	return r.Enqueue(ctx, event)
}

// ListRecent reads through to the underlying store. Events still queued are
// not visible until a worker appends them.
func (r *AsyncRecorder) ListRecent(ctx context.Context, n int) ([]*models.AuditEvent, error) {
	return r.store.ListRecent(ctx, n)
}

// worker appends events from the channel
func (r *AsyncRecorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range r.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Append(ctx, event); err != nil {
			r.logger.Error("failed to append audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", event.Action))
		}
		cancel()
	}

	r.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// Stats represents recorder statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the recorder
func (r *AsyncRecorder) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		BufferSize:    r.bufferSize,
		PendingEvents: len(r.eventChan),
		WorkerCount:   r.workerCount,
		Started:       r.started && !r.closed,
	}
}
