package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"dealflow/server/internal/models"
)

// fakeStore is an in-memory Store for exercising the engine without sqlite.
type fakeStore struct {
	entries map[int64]models.PipelineEntry
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[int64]models.PipelineEntry)}
}

func (f *fakeStore) GetPipeline(id int64) (*models.PipelineEntry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (f *fakeStore) InsertPipeline(entry *models.PipelineEntry) (int64, error) {
	f.nextID++
	stored := *entry
	stored.ID = f.nextID
	f.entries[f.nextID] = stored
	return f.nextID, nil
}

func (f *fakeStore) UpdatePipeline(entry *models.PipelineEntry) error {
	f.entries[entry.ID] = *entry
	return nil
}

func (f *fakeStore) DeletePipeline(id int64) error {
	delete(f.entries, id)
	return nil
}

func newTestEngine() (*Engine, *fakeStore) {
	store := newFakeStore()
	logger := logrus.New()
	return NewEngine(store, logger), store
}

func createLead(t *testing.T, engine *Engine) *models.PipelineEntry {
	t.Helper()
	created, err := engine.Create(&models.PipelineEntry{Stage: models.StageLead})
	assert.NoError(t, err)
	return created
}

func TestEngine_Create(t *testing.T) {
	engine, _ := newTestEngine()

	created, err := engine.Create(&models.PipelineEntry{Stage: models.StageLead})
	assert.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 0, created.StageChangesCount)
	assert.NotNil(t, created.LastStageChangeDate)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	// No probability is derived on creation
	assert.Nil(t, created.Probability)
}

func TestEngine_Create_TrustsCallerStage(t *testing.T) {
	engine, _ := newTestEngine()

	created, err := engine.Create(&models.PipelineEntry{Stage: models.Stage("SOMETHING_ELSE")})
	assert.NoError(t, err)
	assert.Equal(t, models.Stage("SOMETHING_ELSE"), created.Stage)
}

func TestEngine_Create_RejectsOutOfRangeProbability(t *testing.T) {
	engine, store := newTestEngine()

	for _, prob := range []int{-1, 101} {
		p := prob
		_, err := engine.Create(&models.PipelineEntry{Stage: models.StageLead, Probability: &p})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
	assert.Empty(t, store.entries)
}

func TestEngine_Create_AcceptsBoundaryProbability(t *testing.T) {
	engine, _ := newTestEngine()

	for _, prob := range []int{0, 100} {
		p := prob
		created, err := engine.Create(&models.PipelineEntry{Stage: models.StageLead, Probability: &p})
		assert.NoError(t, err)
		assert.Equal(t, prob, *created.Probability)
	}
}

func TestEngine_Update_RejectsOutOfRangeProbability(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	patch := *created
	prob := 150
	patch.Probability = &prob

	_, err := engine.Update(created.ID, &patch)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// The stored entry is untouched
	stored, err := engine.load(created.ID)
	assert.NoError(t, err)
	assert.Nil(t, stored.Probability)
}

func TestEngine_MoveToStage(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	moved, err := engine.MoveToStage(created.ID, models.StageProposal, "sent the proposal")
	assert.NoError(t, err)
	assert.Equal(t, models.StageProposal, moved.Stage)
	assert.Equal(t, 75, *moved.Probability)
	assert.Equal(t, 1, moved.StageChangesCount)
	assert.NotNil(t, moved.LastStageChangeDate)
	assert.Len(t, moved.Notes, 1)
	assert.Equal(t, "sent the proposal", moved.Notes[0].Text)
}

func TestEngine_MoveToStage_UnlistedStageProbability(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	moved, err := engine.MoveToStage(created.ID, models.StageMeeting, "")
	assert.NoError(t, err)
	assert.Equal(t, 25, *moved.Probability)
	assert.Empty(t, moved.Notes)
}

func TestEngine_MoveToStage_IgnoresStoredProbability(t *testing.T) {
	engine, store := newTestEngine()
	created := createLead(t, engine)
	prob := 99
	entry := store.entries[created.ID]
	entry.Probability = &prob
	store.entries[created.ID] = entry

	moved, err := engine.MoveToStage(created.ID, models.StageContacted, "")
	assert.NoError(t, err)
	assert.Equal(t, 25, *moved.Probability)
}

func TestEngine_MoveToStage_NotFound(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.MoveToStage(42, models.StageProposal, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_MoveToStage_CanReopenClosed(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	_, err := engine.LoseDeal(created.ID, "went with competitor")
	assert.NoError(t, err)

	reopened, err := engine.MoveToStage(created.ID, models.StageNegotiation, "they came back")
	assert.NoError(t, err)
	assert.Equal(t, models.StageNegotiation, reopened.Stage)
	assert.Equal(t, 90, *reopened.Probability)
}

func TestEngine_UpdateContact(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	updated, err := engine.UpdateContact(created.ID, "left a voicemail")
	assert.NoError(t, err)
	assert.Equal(t, models.StageLead, updated.Stage)
	assert.Nil(t, updated.Probability)
	assert.Equal(t, 0, updated.StageChangesCount)
	assert.NotNil(t, updated.LastContactDate)
	assert.Len(t, updated.Notes, 1)
	assert.Equal(t, "Contact: left a voicemail", updated.Notes[0].Text)
}

func TestEngine_UpdateContact_NoNotes(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	updated, err := engine.UpdateContact(created.ID, "")
	assert.NoError(t, err)
	assert.Empty(t, updated.Notes)
	assert.NotNil(t, updated.LastContactDate)
}

func TestEngine_CloseDeal(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	closed, err := engine.CloseDeal(created.ID, "signed", "450000", "13500")
	assert.NoError(t, err)
	assert.Equal(t, models.StageClosedWon, closed.Stage)
	assert.Equal(t, 100, *closed.Probability)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "signed", closed.CloseReason)
	assert.Equal(t, "450000", closed.ActualValue.String())
	assert.Equal(t, "13500", closed.CommissionEarned.String())
	// Closing is not a counted stage transition
	assert.Equal(t, 0, closed.StageChangesCount)
}

func TestEngine_CloseDeal_InvalidAmounts(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	_, err := engine.CloseDeal(created.ID, "signed", "lots", "0")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = engine.CloseDeal(created.ID, "signed", "100", "-5")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEngine_CloseDeal_NotFound(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.CloseDeal(42, "signed", "100", "10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_LoseDeal(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	lost, err := engine.LoseDeal(created.ID, "no budget")
	assert.NoError(t, err)
	assert.Equal(t, models.StageClosedLost, lost.Stage)
	assert.Equal(t, 0, *lost.Probability)
	assert.NotNil(t, lost.ClosedAt)
	assert.Equal(t, "no budget", lost.CloseReason)
	assert.Equal(t, 0, lost.StageChangesCount)
}

func TestEngine_Update_StageChangeBookkeeping(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	patch := *created
	patch.Stage = models.StageNegotiation
	prob := 60
	patch.Probability = &prob

	updated, err := engine.Update(created.ID, &patch)
	assert.NoError(t, err)
	assert.Equal(t, models.StageNegotiation, updated.Stage)
	// Full-overwrite update takes the patch probability, not the table value
	assert.Equal(t, 60, *updated.Probability)
	assert.Equal(t, 1, updated.StageChangesCount)
	assert.NotNil(t, updated.DaysInPipeline)
}

func TestEngine_Update_SameStageNoTransition(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	patch := *created
	patch.Source = "referral"

	updated, err := engine.Update(created.ID, &patch)
	assert.NoError(t, err)
	assert.Equal(t, 0, updated.StageChangesCount)
	assert.Equal(t, "referral", updated.Source)
}

func TestEngine_Update_TerminalStageSetsCloseFields(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	value := decimal.NewFromInt(500000)
	patch := *created
	patch.Stage = models.StageClosedWon
	patch.CloseReason = "signed at asking price"
	patch.ActualValue = &value

	updated, err := engine.Update(created.ID, &patch)
	assert.NoError(t, err)
	assert.NotNil(t, updated.ClosedAt)
	assert.Equal(t, "signed at asking price", updated.CloseReason)
	assert.Equal(t, "500000", updated.ActualValue.String())
}

func TestEngine_Update_NotFound(t *testing.T) {
	engine, _ := newTestEngine()

	_, err := engine.Update(42, &models.PipelineEntry{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_Delete(t *testing.T) {
	engine, store := newTestEngine()
	created := createLead(t, engine)

	assert.NoError(t, engine.Delete(created.ID))
	assert.Empty(t, store.entries)

	// Repeat delete surfaces not-found, not a crash
	assert.ErrorIs(t, engine.Delete(created.ID), ErrNotFound)
}

func TestEngine_WinAfterProposalEndsAtFullProbability(t *testing.T) {
	engine, _ := newTestEngine()
	created := createLead(t, engine)

	moved, err := engine.MoveToStage(created.ID, models.StageProposal, "")
	assert.NoError(t, err)
	assert.Equal(t, 75, *moved.Probability)

	closed, err := engine.CloseDeal(created.ID, "signed", "250000", "7500")
	assert.NoError(t, err)
	assert.Equal(t, 100, *closed.Probability)
	assert.Equal(t, 1, closed.StageChangesCount)
}
