package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"dealflow/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// SnapshotQueue is an in-memory queue of analytics snapshot batches waiting
// to be persisted.
type SnapshotQueue struct {
	items    chan *models.SnapshotBatch
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*models.SnapshotBatch) error
}

// NewSnapshotQueue creates a new snapshot queue with the specified buffer size
func NewSnapshotQueue(bufferSize int, logger *logrus.Logger) *SnapshotQueue {
	return &SnapshotQueue{
		items:    make(chan *models.SnapshotBatch, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(*models.SnapshotBatch) error, 0),
	}
}

// Push adds a snapshot batch to the queue
func (q *SnapshotQueue) Push(batch *models.SnapshotBatch) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- batch:
		q.logger.WithField("date", batch.Daily.Date).Debug("Pushed snapshot batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *SnapshotQueue) Subscribe(handler func(*models.SnapshotBatch) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *SnapshotQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *SnapshotQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *SnapshotQueue) processBatch(batch *models.SnapshotBatch) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process snapshot batch")
		}
	}
}

// Close stops the queue and prevents new items from being added. Batches
// still buffered are dropped. The items channel is left open: closing it
// would let the process loop receive a nil zero-value batch and hand it to
// subscribers, and would let a racing Push send on a closed channel.
func (q *SnapshotQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	return nil
}

// Len returns the current number of batches in the queue
func (q *SnapshotQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *SnapshotQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
