package snapshot

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"dealflow/server/internal/models"
)

// Builder turns the current pipeline state into the dated rollup rows the
// trend and top-performer views read.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build computes one day's snapshot batch from the given entries. The day is
// normalized to midnight UTC so repeated runs for the same day upsert the
// same rows.
func (b *Builder) Build(day time.Time, entries []models.PipelineEntry) *models.SnapshotBatch {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	daily := models.DailyAnalytics{
		Date:             date,
		TotalPipelines:   len(entries),
		PipelineValue:    decimal.Zero,
		RevenueGenerated: decimal.Zero,
	}

	type agentAccum struct {
		leads      int
		won        int
		lost       int
		revenue    decimal.Decimal
		commission decimal.Decimal
	}
	agents := make(map[int64]*agentAccum)

	for i := range entries {
		e := &entries[i]
		switch e.Stage {
		case models.StageClosedWon:
			daily.ClosedPipelines++
			daily.DealsWon++
			if e.ActualValue != nil {
				daily.RevenueGenerated = daily.RevenueGenerated.Add(*e.ActualValue)
			}
		case models.StageClosedLost:
			daily.ClosedPipelines++
			daily.DealsLost++
		default:
			daily.ActivePipelines++
			daily.PipelineValue = daily.PipelineValue.Add(e.ExpectedValueOrZero())
		}

		if e.AgentID == nil {
			continue
		}
		acc, ok := agents[*e.AgentID]
		if !ok {
			acc = &agentAccum{revenue: decimal.Zero, commission: decimal.Zero}
			agents[*e.AgentID] = acc
		}
		acc.leads++
		if e.Stage == models.StageClosedWon {
			acc.won++
			if e.ActualValue != nil {
				acc.revenue = acc.revenue.Add(*e.ActualValue)
			}
			if e.CommissionEarned != nil {
				acc.commission = acc.commission.Add(*e.CommissionEarned)
			}
		} else if e.Stage == models.StageClosedLost {
			acc.lost++
		}
	}

	daily.ConversionRate = rate(daily.DealsWon, daily.TotalPipelines)
	daily.WinRate = rate(daily.DealsWon, daily.DealsWon+daily.DealsLost)

	rows := make([]models.AgentDailyPerformance, 0, len(agents))
	for agentID, acc := range agents {
		rows = append(rows, models.AgentDailyPerformance{
			Date:             date,
			AgentID:          agentID,
			TotalLeads:       acc.leads,
			ConversionRate:   rate(acc.won, acc.leads),
			DealsWon:         acc.won,
			WinRate:          rate(acc.won, acc.won+acc.lost),
			RevenueGenerated: acc.revenue,
			CommissionEarned: acc.commission,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].AgentID < rows[j].AgentID
	})

	return &models.SnapshotBatch{Daily: daily, Agents: rows}
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
