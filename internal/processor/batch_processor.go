package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dealflow/server/config"
	"dealflow/server/internal/models"
	"dealflow/server/internal/queue"
	"dealflow/server/internal/snapshot"
)

// BatchProcessor drains the snapshot queue and persists each batch inside a
// transaction, retrying transient failures.
type BatchProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.SnapshotQueue
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db *gorm.DB, queue *queue.SnapshotQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing batches from the queue
func (p *BatchProcessor) Start() {
	for i := 0; i < p.config.Snapshots.ProcessorCount; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}
}

// Stop gracefully shuts down the processor
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

// processLoop handles the continuous processing of batches
func (p *BatchProcessor) processLoop() {
	defer p.waitGroup.Done()

	p.queue.Subscribe(func(batch *models.SnapshotBatch) error {
		return p.processBatch(batch)
	})
}

// processBatch persists a single snapshot batch with transaction and retry logic
func (p *BatchProcessor) processBatch(batch *models.SnapshotBatch) error {
	var err error
	for attempt := 0; attempt <= p.config.Snapshots.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying snapshot write, attempt %d of %d", attempt, p.config.Snapshots.MaxRetries)
			time.Sleep(time.Duration(p.config.Snapshots.RetryDelay) * time.Second)
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := snapshot.UpsertBatch(tx, batch); err != nil {
				return fmt.Errorf("failed to upsert snapshot batch: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.Infof("Persisted snapshot for %s (%d agent rows)",
				batch.Daily.Date.Format("2006-01-02"), len(batch.Agents))
			return nil
		}

		p.logger.Errorf("Snapshot write failed: %v", err)
	}

	return fmt.Errorf("failed to persist snapshot after %d attempts: %w", p.config.Snapshots.MaxRetries, err)
}
