package snapshot

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dealflow/server/internal/models"
	"dealflow/server/internal/queue"
)

// EntryLister is the read side of the pipeline store the snapshot service
// scans.
type EntryLister interface {
	ListPipelines() ([]models.PipelineEntry, error)
}

// Service builds a day's snapshot from the current pipeline state and hands
// it to the persistence queue.
type Service struct {
	entries EntryLister
	builder *Builder
	queue   *queue.SnapshotQueue
	logger  *logrus.Logger
}

func NewService(entries EntryLister, q *queue.SnapshotQueue, logger *logrus.Logger) *Service {
	return &Service{
		entries: entries,
		builder: NewBuilder(),
		queue:   q,
		logger:  logger,
	}
}

// Generate computes the rollups for the given day and enqueues them for
// persistence.
func (s *Service) Generate(day time.Time) error {
	entries, err := s.entries.ListPipelines()
	if err != nil {
		return fmt.Errorf("failed to list pipelines for snapshot: %w", err)
	}

	batch := s.builder.Build(day, entries)
	if err := s.queue.Push(batch); err != nil {
		return fmt.Errorf("failed to enqueue snapshot batch: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"date":    batch.Daily.Date.Format("2006-01-02"),
		"entries": len(entries),
		"agents":  len(batch.Agents),
	}).Info("Generated analytics snapshot")
	return nil
}
