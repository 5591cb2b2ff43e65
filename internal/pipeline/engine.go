package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"dealflow/server/internal/models"
)

// Store is the durable keyed storage the engine mutates through. Get returns
// (nil, nil) for an unknown id; the store is responsible for the atomicity of
// each save.
type Store interface {
	GetPipeline(id int64) (*models.PipelineEntry, error)
	InsertPipeline(entry *models.PipelineEntry) (int64, error)
	UpdatePipeline(entry *models.PipelineEntry) error
	DeletePipeline(id int64) error
}

// Engine owns every mutation to a pipeline entry and keeps the derived
// fields (probability, stage-change bookkeeping, days in pipeline)
// consistent. Concurrent mutations of the same entry are last-writer-wins;
// there is no compare-and-swap on updated_at.
type Engine struct {
	store  Store
	logger *logrus.Logger
}

// NewEngine creates a stage transition engine on top of the given store.
func NewEngine(store Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Engine{store: store, logger: logger}
}

// Create stores a new entry. The caller-supplied stage is trusted as-is and
// no probability is derived; a supplied probability must lie within [0, 100].
// Stage-change bookkeeping starts at zero.
func (e *Engine) Create(entry *models.PipelineEntry) (*models.PipelineEntry, error) {
	if err := checkProbability(entry.Probability); err != nil {
		return nil, err
	}
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.StageChangesCount = 0
	entry.LastStageChangeDate = &now
	days := 0
	entry.DaysInPipeline = &days

	id, err := e.store.InsertPipeline(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline entry: %w", err)
	}
	entry.ID = id

	e.logger.WithFields(logrus.Fields{
		"pipeline_id": id,
		"stage":       entry.Stage,
	}).Info("Created pipeline entry")
	return entry, nil
}

// Update overwrites every settable field of the stored entry with the patch.
// A supplied probability must lie within [0, 100]. A stage difference counts
// as a transition; entering a terminal stage stamps the closing fields from
// the patch.
func (e *Engine) Update(id int64, patch *models.PipelineEntry) (*models.PipelineEntry, error) {
	if err := checkProbability(patch.Probability); err != nil {
		return nil, err
	}
	stored, err := e.load(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	if patch.Stage != stored.Stage {
		stored.StageChangesCount++
		stored.LastStageChangeDate = &now
	}

	stored.LeadID = patch.LeadID
	stored.PropertyID = patch.PropertyID
	stored.AgentID = patch.AgentID
	stored.Stage = patch.Stage
	stored.Probability = patch.Probability
	stored.ExpectedValue = patch.ExpectedValue
	stored.Currency = patch.Currency
	stored.Source = patch.Source
	stored.Priority = patch.Priority
	stored.NextAction = patch.NextAction
	stored.NextActionDate = patch.NextActionDate
	stored.LastContactDate = patch.LastContactDate
	stored.Notes = patch.Notes
	stored.Tags = patch.Tags

	if stored.Stage.Terminal() {
		stored.ClosedAt = &now
		stored.CloseReason = patch.CloseReason
		stored.ActualValue = patch.ActualValue
		stored.CommissionEarned = patch.CommissionEarned
	}

	e.touch(stored, now)
	if err := e.store.UpdatePipeline(stored); err != nil {
		return nil, fmt.Errorf("failed to update pipeline entry %d: %w", id, err)
	}
	return stored, nil
}

// MoveToStage performs a targeted transition. The probability always comes
// from the stage table; any probability already on the entry is replaced.
func (e *Engine) MoveToStage(id int64, stage models.Stage, notes string) (*models.PipelineEntry, error) {
	stored, err := e.load(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	stored.Stage = stage
	prob := stage.DefaultProbability()
	stored.Probability = &prob
	stored.StageChangesCount++
	stored.LastStageChangeDate = &now
	if notes != "" {
		stored.Notes = stored.Notes.Append(now, notes)
	}

	e.touch(stored, now)
	if err := e.store.UpdatePipeline(stored); err != nil {
		return nil, fmt.Errorf("failed to move pipeline entry %d to stage %s: %w", id, stage, err)
	}

	e.logger.WithFields(logrus.Fields{
		"pipeline_id": id,
		"stage":       stage,
		"probability": prob,
	}).Info("Moved pipeline entry to stage")
	return stored, nil
}

// UpdateContact records a contact touchpoint. Stage and probability are not
// affected.
func (e *Engine) UpdateContact(id int64, notes string) (*models.PipelineEntry, error) {
	stored, err := e.load(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	stored.LastContactDate = &now
	if notes != "" {
		stored.Notes = stored.Notes.Append(now, "Contact: "+notes)
	}

	e.touch(stored, now)
	if err := e.store.UpdatePipeline(stored); err != nil {
		return nil, fmt.Errorf("failed to record contact on pipeline entry %d: %w", id, err)
	}
	return stored, nil
}

// CloseDeal forces the entry into CLOSED_WON with probability 100 and stores
// the closing values. Unlike MoveToStage it does not count as a stage
// transition.
func (e *Engine) CloseDeal(id int64, closeReason, actualValue, commissionEarned string) (*models.PipelineEntry, error) {
	value, err := models.ParseAmount(actualValue)
	if err != nil {
		return nil, fmt.Errorf("%w: actual value: %v", ErrInvalidArgument, err)
	}
	commission, err := models.ParseAmount(commissionEarned)
	if err != nil {
		return nil, fmt.Errorf("%w: commission: %v", ErrInvalidArgument, err)
	}

	stored, err := e.load(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	stored.Stage = models.StageClosedWon
	prob := 100
	stored.Probability = &prob
	stored.ClosedAt = &now
	stored.CloseReason = closeReason
	stored.ActualValue = &value
	stored.CommissionEarned = &commission

	e.touch(stored, now)
	if err := e.store.UpdatePipeline(stored); err != nil {
		return nil, fmt.Errorf("failed to close pipeline entry %d: %w", id, err)
	}

	e.logger.WithFields(logrus.Fields{
		"pipeline_id":  id,
		"actual_value": value.String(),
	}).Info("Closed deal as won")
	return stored, nil
}

// LoseDeal forces the entry into CLOSED_LOST with probability 0.
func (e *Engine) LoseDeal(id int64, closeReason string) (*models.PipelineEntry, error) {
	stored, err := e.load(id)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	stored.Stage = models.StageClosedLost
	prob := 0
	stored.Probability = &prob
	stored.ClosedAt = &now
	stored.CloseReason = closeReason

	e.touch(stored, now)
	if err := e.store.UpdatePipeline(stored); err != nil {
		return nil, fmt.Errorf("failed to lose pipeline entry %d: %w", id, err)
	}

	e.logger.WithFields(logrus.Fields{
		"pipeline_id":  id,
		"close_reason": closeReason,
	}).Info("Closed deal as lost")
	return stored, nil
}

// Delete removes the entry. The id must resolve; repeat deletes surface
// ErrNotFound rather than failing hard.
func (e *Engine) Delete(id int64) error {
	if _, err := e.load(id); err != nil {
		return err
	}
	if err := e.store.DeletePipeline(id); err != nil {
		return fmt.Errorf("failed to delete pipeline entry %d: %w", id, err)
	}
	e.logger.WithField("pipeline_id", id).Info("Deleted pipeline entry")
	return nil
}

func (e *Engine) load(id int64) (*models.PipelineEntry, error) {
	stored, err := e.store.GetPipeline(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline entry %d: %w", id, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return stored, nil
}

func checkProbability(p *int) error {
	if p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("%w: probability %d outside [0, 100]", ErrInvalidArgument, *p)
	}
	return nil
}

// touch refreshes the derived per-mutation fields.
func (e *Engine) touch(entry *models.PipelineEntry, now time.Time) {
	days := int(now.Sub(entry.CreatedAt).Hours() / 24)
	entry.DaysInPipeline = &days
	entry.UpdatedAt = now
}
