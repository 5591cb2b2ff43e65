package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAnalytics is a small, query-friendly rollup of the whole pipeline for
// one calendar day. It is derived data and can always be rebuilt from the
// pipeline entries.
type DailyAnalytics struct {
	Date time.Time `gorm:"primaryKey" json:"date"`

	TotalPipelines  int `json:"total_pipelines"`
	ActivePipelines int `json:"active_pipelines"`
	ClosedPipelines int `json:"closed_pipelines"`

	ConversionRate float64 `json:"conversion_rate"`
	WinRate        float64 `json:"win_rate"`
	DealsWon       int     `json:"deals_won"`
	DealsLost      int     `json:"deals_lost"`

	PipelineValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"pipeline_value"`
	RevenueGenerated decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue_generated"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailyAnalytics) TableName() string {
	return "daily_analytics"
}

// AgentDailyPerformance is the per-agent rollup for one calendar day,
// feeding the top-performers ranking.
type AgentDailyPerformance struct {
	Date    time.Time `gorm:"primaryKey" json:"date"`
	AgentID int64     `gorm:"primaryKey" json:"agent_id"`

	TotalLeads     int     `json:"total_leads"`
	ConversionRate float64 `json:"conversion_rate"`
	DealsWon       int     `json:"deals_won"`
	WinRate        float64 `json:"win_rate"`

	RevenueGenerated decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue_generated"`
	CommissionEarned decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"commission_earned"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AgentDailyPerformance) TableName() string {
	return "agent_daily_performance"
}

// SnapshotBatch is one day's worth of rollups queued for persistence.
type SnapshotBatch struct {
	Daily  DailyAnalytics
	Agents []AgentDailyPerformance
}
