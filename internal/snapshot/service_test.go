package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"dealflow/server/internal/models"
	"dealflow/server/internal/queue"
)

type fakeLister struct {
	entries []models.PipelineEntry
	err     error
}

func (f *fakeLister) ListPipelines() ([]models.PipelineEntry, error) {
	return f.entries, f.err
}

func TestService_Generate(t *testing.T) {
	q := queue.NewSnapshotQueue(10, logrus.New())
	lister := &fakeLister{entries: []models.PipelineEntry{
		{Stage: models.StageLead},
		{Stage: models.StageClosedWon},
	}}
	service := NewService(lister, q, logrus.New())

	err := service.Generate(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

func TestService_Generate_ListError(t *testing.T) {
	q := queue.NewSnapshotQueue(10, logrus.New())
	lister := &fakeLister{err: errors.New("store unavailable")}
	service := NewService(lister, q, logrus.New())

	err := service.Generate(time.Now())
	assert.Error(t, err)
	assert.Equal(t, 0, q.Len())
}

func TestService_Generate_QueueFull(t *testing.T) {
	q := queue.NewSnapshotQueue(0, logrus.New())
	service := NewService(&fakeLister{}, q, logrus.New())

	err := service.Generate(time.Now())
	assert.Error(t, err)
}
