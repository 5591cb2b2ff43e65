package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"dealflow/server/internal/models"
)

func testBatch(day time.Time) *models.SnapshotBatch {
	return &models.SnapshotBatch{Daily: models.DailyAnalytics{Date: day}}
}

func TestNewSnapshotQueue(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestSnapshotQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(2, logger)

	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Test successful push
	err := q.Push(testBatch(day))
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	for i := 0; i < 2; i++ {
		_ = q.Push(testBatch(day.AddDate(0, 0, i+1)))
	}
	err = q.Push(testBatch(day))
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(testBatch(day))
	assert.Equal(t, ErrQueueClosed, err)
}

func TestSnapshotQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(10, logger)

	var processed []*models.SnapshotBatch
	var mu sync.Mutex

	// Add handler
	q.Subscribe(func(batch *models.SnapshotBatch) error {
		mu.Lock()
		processed = append(processed, batch)
		mu.Unlock()
		return nil
	})

	// Start queue
	q.Start()

	// Push a batch
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	err := q.Push(testBatch(day))
	assert.NoError(t, err)

	// Wait for processing
	time.Sleep(100 * time.Millisecond)

	// Verify processing
	mu.Lock()
	assert.Equal(t, 1, len(processed))
	assert.True(t, processed[0].Daily.Date.Equal(day))
	mu.Unlock()
}

func TestSnapshotQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(10, logger)

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestSnapshotQueue_CloseNeverDeliversNilBatch(t *testing.T) {
	logger := logrus.New()

	// Repeat to give the shutdown race a chance to surface: a closed items
	// channel would hand subscribers a nil zero-value batch.
	for i := 0; i < 50; i++ {
		q := NewSnapshotQueue(10, logger)

		var received []*models.SnapshotBatch
		var mu sync.Mutex

		q.Subscribe(func(batch *models.SnapshotBatch) error {
			mu.Lock()
			received = append(received, batch)
			mu.Unlock()
			return nil
		})

		q.Start()
		err := q.Close()
		assert.NoError(t, err)

		time.Sleep(time.Millisecond)

		mu.Lock()
		for _, batch := range received {
			assert.NotNil(t, batch)
		}
		mu.Unlock()
	}
}

func TestSnapshotQueue_PushAfterCloseDoesNotPanic(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(10, logger)

	q.Start()
	err := q.Close()
	assert.NoError(t, err)

	// The items channel stays open after Close, so a late push fails with
	// ErrQueueClosed instead of sending on a closed channel.
	assert.NotPanics(t, func() {
		err := q.Push(testBatch(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, ErrQueueClosed, err)
	})
}

func TestSnapshotQueue_ProcessBatch(t *testing.T) {
	logger := logrus.New()
	q := NewSnapshotQueue(10, logger)

	var wg sync.WaitGroup
	processedBatches := 0
	var mu sync.Mutex

	// Add multiple handlers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Subscribe(func(batch *models.SnapshotBatch) error {
			mu.Lock()
			processedBatches++
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	// Start queue
	q.Start()

	// Push a batch
	err := q.Push(testBatch(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, err)

	// Wait for all handlers
	wg.Wait()

	// Verify all handlers processed the batch
	mu.Lock()
	assert.Equal(t, 3, processedBatches)
	mu.Unlock()
}
