package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"dealflow/server/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

const pipelineColumns = `
	id, lead_id, property_id, agent_id, stage, probability,
	expected_value, currency, source, priority,
	next_action, next_action_date, last_contact_date,
	notes, tags, created_at, updated_at,
	closed_at, close_reason, actual_value, commission_earned,
	days_in_pipeline, stage_changes_count, last_stage_change_date`

// GetPipeline fetches one entry by id; (nil, nil) when the id is unknown.
func (d *Database) GetPipeline(id int64) (*models.PipelineEntry, error) {
	row := d.db.QueryRow(`SELECT `+pipelineColumns+` FROM pipelines WHERE id = ?`, id)
	entry, err := scanPipeline(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline %d: %w", id, err)
	}
	return entry, nil
}

// InsertPipeline stores a new entry and returns the assigned id.
func (d *Database) InsertPipeline(entry *models.PipelineEntry) (int64, error) {
	tags, err := models.EncodeTags(entry.Tags)
	if err != nil {
		return 0, err
	}

	result, err := d.db.Exec(`
		INSERT INTO pipelines
		(lead_id, property_id, agent_id, stage, probability,
		 expected_value, currency, source, priority,
		 next_action, next_action_date, last_contact_date,
		 notes, tags, created_at, updated_at,
		 closed_at, close_reason, actual_value, commission_earned,
		 days_in_pipeline, stage_changes_count, last_stage_change_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(entry.LeadID),
		nullInt64(entry.PropertyID),
		nullInt64(entry.AgentID),
		string(entry.Stage),
		nullInt(entry.Probability),
		nullDecimal(entry.ExpectedValue),
		entry.Currency,
		entry.Source,
		entry.Priority,
		entry.NextAction,
		nullTime(entry.NextActionDate),
		nullTime(entry.LastContactDate),
		entry.Notes.Blob(),
		tags,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
		nullTime(entry.ClosedAt),
		entry.CloseReason,
		nullDecimal(entry.ActualValue),
		nullDecimal(entry.CommissionEarned),
		nullInt(entry.DaysInPipeline),
		entry.StageChangesCount,
		nullTime(entry.LastStageChangeDate),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pipeline: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get pipeline id: %w", err)
	}
	return id, nil
}

// UpdatePipeline overwrites the stored row for entry.ID.
func (d *Database) UpdatePipeline(entry *models.PipelineEntry) error {
	tags, err := models.EncodeTags(entry.Tags)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		UPDATE pipelines SET
			lead_id = ?, property_id = ?, agent_id = ?, stage = ?, probability = ?,
			expected_value = ?, currency = ?, source = ?, priority = ?,
			next_action = ?, next_action_date = ?, last_contact_date = ?,
			notes = ?, tags = ?, created_at = ?, updated_at = ?,
			closed_at = ?, close_reason = ?, actual_value = ?, commission_earned = ?,
			days_in_pipeline = ?, stage_changes_count = ?, last_stage_change_date = ?
		WHERE id = ?
	`,
		nullInt64(entry.LeadID),
		nullInt64(entry.PropertyID),
		nullInt64(entry.AgentID),
		string(entry.Stage),
		nullInt(entry.Probability),
		nullDecimal(entry.ExpectedValue),
		entry.Currency,
		entry.Source,
		entry.Priority,
		entry.NextAction,
		nullTime(entry.NextActionDate),
		nullTime(entry.LastContactDate),
		entry.Notes.Blob(),
		tags,
		entry.CreatedAt.Format(time.RFC3339),
		entry.UpdatedAt.Format(time.RFC3339),
		nullTime(entry.ClosedAt),
		entry.CloseReason,
		nullDecimal(entry.ActualValue),
		nullDecimal(entry.CommissionEarned),
		nullInt(entry.DaysInPipeline),
		entry.StageChangesCount,
		nullTime(entry.LastStageChangeDate),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pipeline %d: %w", entry.ID, err)
	}
	return nil
}

// DeletePipeline removes the row. Removing an absent id succeeds here; the
// engine checks existence first.
func (d *Database) DeletePipeline(id int64) error {
	_, err := d.db.Exec(`DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pipeline %d: %w", id, err)
	}
	return nil
}

// ListPipelines returns every stored entry.
func (d *Database) ListPipelines() ([]models.PipelineEntry, error) {
	return d.queryPipelines(`SELECT ` + pipelineColumns + ` FROM pipelines ORDER BY id`)
}

// ListByAgent returns every entry assigned to the agent.
func (d *Database) ListByAgent(agentID int64) ([]models.PipelineEntry, error) {
	return d.queryPipelines(`SELECT `+pipelineColumns+` FROM pipelines WHERE agent_id = ? ORDER BY id`, agentID)
}

// ListByStage returns every entry currently in the stage.
func (d *Database) ListByStage(stage models.Stage) ([]models.PipelineEntry, error) {
	return d.queryPipelines(`SELECT `+pipelineColumns+` FROM pipelines WHERE stage = ? ORDER BY id`, string(stage))
}

// ListActive returns entries that have not reached a terminal stage.
func (d *Database) ListActive() ([]models.PipelineEntry, error) {
	return d.queryPipelines(`SELECT `+pipelineColumns+` FROM pipelines WHERE stage NOT IN (?, ?) ORDER BY id`,
		string(models.StageClosedWon), string(models.StageClosedLost))
}

func (d *Database) queryPipelines(query string, args ...interface{}) ([]models.PipelineEntry, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer rows.Close()

	var entries []models.PipelineEntry
	for rows.Next() {
		entry, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipelines: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPipeline(row rowScanner) (*models.PipelineEntry, error) {
	var entry models.PipelineEntry
	var leadID, propertyID, agentID, probability, daysInPipeline sql.NullInt64
	var expectedValue, actualValue, commissionEarned sql.NullString
	var currency, source, priority, nextAction, notes, tags, closeReason sql.NullString
	var nextActionDate, lastContactDate, createdAt, updatedAt sql.NullString
	var closedAt, lastStageChangeDate sql.NullString
	var stage string

	err := row.Scan(
		&entry.ID,
		&leadID,
		&propertyID,
		&agentID,
		&stage,
		&probability,
		&expectedValue,
		&currency,
		&source,
		&priority,
		&nextAction,
		&nextActionDate,
		&lastContactDate,
		&notes,
		&tags,
		&createdAt,
		&updatedAt,
		&closedAt,
		&closeReason,
		&actualValue,
		&commissionEarned,
		&daysInPipeline,
		&entry.StageChangesCount,
		&lastStageChangeDate,
	)
	if err != nil {
		return nil, err
	}

	entry.Stage = models.Stage(stage)
	if leadID.Valid {
		entry.LeadID = &leadID.Int64
	}
	if propertyID.Valid {
		entry.PropertyID = &propertyID.Int64
	}
	if agentID.Valid {
		entry.AgentID = &agentID.Int64
	}
	if probability.Valid {
		p := int(probability.Int64)
		entry.Probability = &p
	}
	if daysInPipeline.Valid {
		days := int(daysInPipeline.Int64)
		entry.DaysInPipeline = &days
	}

	entry.ExpectedValue = parseDecimalPtr(expectedValue)
	entry.ActualValue = parseDecimalPtr(actualValue)
	entry.CommissionEarned = parseDecimalPtr(commissionEarned)

	if currency.Valid {
		entry.Currency = currency.String
	}
	if source.Valid {
		entry.Source = source.String
	}
	if priority.Valid {
		entry.Priority = priority.String
	}
	if nextAction.Valid {
		entry.NextAction = nextAction.String
	}
	if closeReason.Valid {
		entry.CloseReason = closeReason.String
	}
	if notes.Valid {
		entry.Notes = models.ParseNoteLog(notes.String)
	}
	if tags.Valid {
		decoded, err := models.DecodeTags(tags.String)
		if err != nil {
			return nil, fmt.Errorf("pipeline %d: %w", entry.ID, err)
		}
		entry.Tags = decoded
	}

	entry.NextActionDate = parseTimePtr(nextActionDate)
	entry.LastContactDate = parseTimePtr(lastContactDate)
	entry.ClosedAt = parseTimePtr(closedAt)
	entry.LastStageChangeDate = parseTimePtr(lastStageChangeDate)
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			entry.CreatedAt = t
		}
	}
	if updatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
			entry.UpdatedAt = t
		}
	}

	return &entry, nil
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimalPtr(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return v.Format(time.RFC3339)
}

func nullDecimal(v *decimal.Decimal) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}
