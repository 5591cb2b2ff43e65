package models

import "github.com/shopspring/decimal"

// PipelineOverview is the headline rollup over the whole pipeline.
type PipelineOverview struct {
	TotalCount         int             `json:"totalCount"`
	ActiveCount        int             `json:"activeCount"`
	ClosedCount        int             `json:"closedCount"`
	TotalExpectedValue decimal.Decimal `json:"totalExpectedValueOfActive"`
	AverageProbability float64         `json:"averageProbabilityOfActive"`
}

// StageBreakdown holds per-stage counts and summed expected value for
// active entries only. Stages with no active entries are absent.
type StageBreakdown struct {
	Counts         map[Stage]int             `json:"counts"`
	ExpectedValues map[Stage]decimal.Decimal `json:"expectedValues"`
}

// AgentStats is one agent's slice of the pipeline.
type AgentStats struct {
	TotalEntries       int             `json:"totalEntries"`
	ActivePipelines    int             `json:"activePipelines"`
	ClosedWon          int             `json:"closedWon"`
	ClosedLost         int             `json:"closedLost"`
	TotalExpectedValue decimal.Decimal `json:"totalExpectedValue"`
}

// SourceStats is the per-source lead count and win conversion percentage.
type SourceStats struct {
	Total          int     `json:"total"`
	ConversionRate float64 `json:"conversionRate"`
}

// StageVelocity is the average time entries of one stage have spent in the
// pipeline.
type StageVelocity struct {
	Stage       Stage   `json:"stage"`
	AverageDays float64 `json:"averageDays"`
	Count       int     `json:"count"`
}

// TrendPoint is one calendar day of the conversion trend series, averaged
// over the persisted daily analytics for that day.
type TrendPoint struct {
	Date                  string  `json:"date"`
	AverageConversionRate float64 `json:"averageConversionRate"`
	AverageWinRate        float64 `json:"averageWinRate"`
	DealsWon              int     `json:"dealsWon"`
	DealsLost             int     `json:"dealsLost"`
}

// TopPerformer is one agent's ranked totals over a date range.
type TopPerformer struct {
	AgentID               int64           `json:"agentId"`
	TotalLeads            int             `json:"totalLeads"`
	AverageConversionRate float64         `json:"averageConversionRate"`
	TotalWon              int             `json:"totalWon"`
	TotalRevenue          decimal.Decimal `json:"totalRevenue"`
	TotalCommission       decimal.Decimal `json:"totalCommission"`
	AverageWinRate        float64         `json:"averageWinRate"`
}
