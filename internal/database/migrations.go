package database

import "fmt"

func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipelines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lead_id INTEGER,
			property_id INTEGER,
			agent_id INTEGER,
			stage TEXT NOT NULL,
			probability INTEGER,
			expected_value TEXT,
			currency TEXT,
			source TEXT,
			priority TEXT,
			next_action TEXT,
			next_action_date TIMESTAMP,
			last_contact_date TIMESTAMP,
			notes TEXT,
			tags TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP,
			close_reason TEXT,
			actual_value TEXT,
			commission_earned TEXT,
			days_in_pipeline INTEGER,
			stage_changes_count INTEGER NOT NULL DEFAULT 0,
			last_stage_change_date TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create pipelines table: %w", err)
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pipelines_stage
		ON pipelines(stage);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_pipelines_agent
		ON pipelines(agent_id);
	`)
	if err != nil {
		return err
	}

	return nil
}
