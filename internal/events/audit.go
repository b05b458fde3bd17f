package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Record is one broadcast event as persisted to the audit trail.
type Record struct {
	Type      string          `json:"type"`
	GroupID   string          `json:"group_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// BatchInserter is the interface used by AuditWriter to persist records.
// It exists to allow testing without a real database.
type BatchInserter interface {
	BatchInsert(ctx context.Context, recs []Record) error
}

// AuditWriter buffers event records in memory and periodically flushes them to
// the store in batches. It is safe for concurrent use. Losing audit records on
// a crash is acceptable; the broadcast itself already happened.
type AuditWriter struct {
	store         BatchInserter
	buffer        []Record
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	// onFlush, if non-nil, observes flush outcomes for metrics.
	onFlush func(count int, err error)
}

// NewAuditWriter creates a writer that flushes to the given store when the
// buffer reaches batchSize or every flushInterval, whichever comes first.
func NewAuditWriter(store BatchInserter, batchSize int, flushInterval time.Duration, onFlush func(count int, err error)) *AuditWriter {
	return &AuditWriter{
		store:         store,
		buffer:        make([]Record, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		onFlush:       onFlush,
	}
}

// Start begins a background goroutine that flushes buffered records on a
// timer. It blocks until Stop is called or the context is cancelled.
func (w *AuditWriter) Start(ctx context.Context) {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.flush()
		case <-ctx.Done():
			w.flush()
			return
		case <-w.done:
			w.flush()
			return
		}
	}
}

// Record adds a record to the buffer. If the buffer reaches batchSize, a
// flush is triggered immediately.
func (w *AuditWriter) Record(rec Record) {
	w.mu.Lock()
	w.buffer = append(w.buffer, rec)
	shouldFlush := len(w.buffer) >= w.batchSize
	w.mu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// flush drains all buffered records and writes them to the store. It logs
// errors rather than returning them so callers are never blocked.
func (w *AuditWriter) flush() {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.buffer
	w.buffer = make([]Record, 0, w.batchSize)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := w.store.BatchInsert(ctx, batch)
	if err != nil {
		slog.Error("failed to flush event audit records", "count", len(batch), "error", err)
	}
	if w.onFlush != nil {
		w.onFlush(len(batch), err)
	}
}

// Stop signals the background goroutine to exit and performs a final flush.
func (w *AuditWriter) Stop() {
	close(w.done)
}
