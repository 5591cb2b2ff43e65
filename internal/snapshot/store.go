package snapshot

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"dealflow/server/internal/models"
)

// Store persists the derived analytics tables. It holds its own gorm handle
// on the shared sqlite file; the raw pipeline store never touches these
// tables.
type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics store: %w", err)
	}

	if err := db.AutoMigrate(&models.DailyAnalytics{}, &models.AgentDailyPerformance{}); err != nil {
		return nil, fmt.Errorf("failed to migrate analytics tables: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// DailyRange returns the daily rollups with dates inside [start, end].
func (s *Store) DailyRange(start, end time.Time) ([]models.DailyAnalytics, error) {
	var records []models.DailyAnalytics
	err := s.db.
		Where("date >= ? AND date <= ?", start, end).
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query daily analytics: %w", err)
	}
	return records, nil
}

// AgentRange returns the per-agent rollups with dates inside [start, end].
func (s *Store) AgentRange(start, end time.Time) ([]models.AgentDailyPerformance, error) {
	var records []models.AgentDailyPerformance
	err := s.db.
		Where("date >= ? AND date <= ?", start, end).
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query agent performance: %w", err)
	}
	return records, nil
}

// UpsertBatch writes one day's rollups inside the given transaction,
// replacing any rows already present for that day.
func UpsertBatch(tx *gorm.DB, batch *models.SnapshotBatch) error {
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&batch.Daily).Error; err != nil {
		return fmt.Errorf("failed to upsert daily analytics: %w", err)
	}
	if len(batch.Agents) > 0 {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&batch.Agents).Error; err != nil {
			return fmt.Errorf("failed to upsert agent performance: %w", err)
		}
	}
	return nil
}
