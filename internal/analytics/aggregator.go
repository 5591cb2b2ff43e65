package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dealflow/server/internal/models"
	"dealflow/server/internal/pipeline"
)

// Aggregator computes read-only rollups over pipeline entries and persisted
// daily records. Every method is a pure function of its inputs; an empty
// input always produces zero-valued aggregates, never an error.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Overview returns the headline totals. Value and probability averages cover
// active entries only, treating absent values as zero.
func (a *Aggregator) Overview(entries []models.PipelineEntry) models.PipelineOverview {
	overview := models.PipelineOverview{
		TotalCount:         len(entries),
		TotalExpectedValue: decimal.Zero,
	}

	probabilitySum := 0
	for i := range entries {
		e := &entries[i]
		if !e.Active() {
			overview.ClosedCount++
			continue
		}
		overview.ActiveCount++
		overview.TotalExpectedValue = overview.TotalExpectedValue.Add(e.ExpectedValueOrZero())
		probabilitySum += e.ProbabilityOrZero()
	}

	if overview.ActiveCount > 0 {
		overview.AverageProbability = float64(probabilitySum) / float64(overview.ActiveCount)
	}
	return overview
}

// StageBreakdown counts active entries and sums their expected value per
// stage. Stages without active entries are absent from both maps.
func (a *Aggregator) StageBreakdown(entries []models.PipelineEntry) models.StageBreakdown {
	breakdown := models.StageBreakdown{
		Counts:         make(map[models.Stage]int),
		ExpectedValues: make(map[models.Stage]decimal.Decimal),
	}

	for i := range entries {
		e := &entries[i]
		if !e.Active() {
			continue
		}
		breakdown.Counts[e.Stage]++
		sum, ok := breakdown.ExpectedValues[e.Stage]
		if !ok {
			sum = decimal.Zero
		}
		breakdown.ExpectedValues[e.Stage] = sum.Add(e.ExpectedValueOrZero())
	}
	return breakdown
}

// AgentPerformance groups entries by agent. Entries without an agent are
// excluded entirely. Expected value sums cover all of an agent's entries,
// not just the active ones.
func (a *Aggregator) AgentPerformance(entries []models.PipelineEntry) map[int64]models.AgentStats {
	performance := make(map[int64]models.AgentStats)

	for i := range entries {
		e := &entries[i]
		if e.AgentID == nil {
			continue
		}
		stats, ok := performance[*e.AgentID]
		if !ok {
			stats.TotalExpectedValue = decimal.Zero
		}

		stats.TotalEntries++
		switch {
		case e.Stage == models.StageClosedWon:
			stats.ClosedWon++
		case e.Stage == models.StageClosedLost:
			stats.ClosedLost++
		case !strings.HasPrefix(string(e.Stage), "CLOSED"):
			stats.ActivePipelines++
		}
		stats.TotalExpectedValue = stats.TotalExpectedValue.Add(e.ExpectedValueOrZero())
		performance[*e.AgentID] = stats
	}
	return performance
}

// SourceAnalysis groups entries by source and reports the win conversion
// rate per source as a percentage. Entries without a source are excluded.
func (a *Aggregator) SourceAnalysis(entries []models.PipelineEntry) map[string]models.SourceStats {
	totals := make(map[string]int)
	won := make(map[string]int)

	for i := range entries {
		e := &entries[i]
		if e.Source == "" {
			continue
		}
		totals[e.Source]++
		if e.Stage == models.StageClosedWon {
			won[e.Source]++
		}
	}

	analysis := make(map[string]models.SourceStats, len(totals))
	for source, total := range totals {
		stats := models.SourceStats{Total: total}
		if total > 0 {
			stats.ConversionRate = float64(won[source]) / float64(total) * 100
		}
		analysis[source] = stats
	}
	return analysis
}

// StageVelocity averages days-in-pipeline per stage over entries where the
// value is present, ordered by stage name.
func (a *Aggregator) StageVelocity(entries []models.PipelineEntry) []models.StageVelocity {
	daySums := make(map[models.Stage]int)
	counts := make(map[models.Stage]int)

	for i := range entries {
		e := &entries[i]
		if e.DaysInPipeline == nil {
			continue
		}
		daySums[e.Stage] += *e.DaysInPipeline
		counts[e.Stage]++
	}

	velocities := make([]models.StageVelocity, 0, len(counts))
	for stage, count := range counts {
		velocities = append(velocities, models.StageVelocity{
			Stage:       stage,
			AverageDays: float64(daySums[stage]) / float64(count),
			Count:       count,
		})
	}
	sort.Slice(velocities, func(i, j int) bool {
		return velocities[i].Stage < velocities[j].Stage
	})
	return velocities
}

// ConversionTrends rolls the persisted daily analytics up into one point per
// calendar day within [start, end]: rates are averaged, won/lost counts are
// summed across whatever records exist for that day.
func (a *Aggregator) ConversionTrends(records []models.DailyAnalytics, start, end time.Time) ([]models.TrendPoint, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	type dayAccum struct {
		conversionSum float64
		winSum        float64
		won           int
		lost          int
		count         int
	}
	days := make(map[string]*dayAccum)

	for i := range records {
		r := &records[i]
		if r.Date.Before(truncateDay(start)) || r.Date.After(endOfDay(end)) {
			continue
		}
		key := r.Date.Format("2006-01-02")
		acc, ok := days[key]
		if !ok {
			acc = &dayAccum{}
			days[key] = acc
		}
		acc.conversionSum += r.ConversionRate
		acc.winSum += r.WinRate
		acc.won += r.DealsWon
		acc.lost += r.DealsLost
		acc.count++
	}

	points := make([]models.TrendPoint, 0, len(days))
	for key, acc := range days {
		points = append(points, models.TrendPoint{
			Date:                  key,
			AverageConversionRate: acc.conversionSum / float64(acc.count),
			AverageWinRate:        acc.winSum / float64(acc.count),
			DealsWon:              acc.won,
			DealsLost:             acc.lost,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points, nil
}

// TopPerformers ranks agents by total revenue over the persisted per-agent
// daily records within [start, end], truncated to limit.
func (a *Aggregator) TopPerformers(records []models.AgentDailyPerformance, start, end time.Time, limit int) ([]models.TopPerformer, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	type agentAccum struct {
		leads         int
		conversionSum float64
		winSum        float64
		won           int
		revenue       decimal.Decimal
		commission    decimal.Decimal
		count         int
	}
	agents := make(map[int64]*agentAccum)

	for i := range records {
		r := &records[i]
		if r.Date.Before(truncateDay(start)) || r.Date.After(endOfDay(end)) {
			continue
		}
		acc, ok := agents[r.AgentID]
		if !ok {
			acc = &agentAccum{revenue: decimal.Zero, commission: decimal.Zero}
			agents[r.AgentID] = acc
		}
		acc.leads += r.TotalLeads
		acc.conversionSum += r.ConversionRate
		acc.winSum += r.WinRate
		acc.won += r.DealsWon
		acc.revenue = acc.revenue.Add(r.RevenueGenerated)
		acc.commission = acc.commission.Add(r.CommissionEarned)
		acc.count++
	}

	performers := make([]models.TopPerformer, 0, len(agents))
	for agentID, acc := range agents {
		performers = append(performers, models.TopPerformer{
			AgentID:               agentID,
			TotalLeads:            acc.leads,
			AverageConversionRate: acc.conversionSum / float64(acc.count),
			TotalWon:              acc.won,
			TotalRevenue:          acc.revenue,
			TotalCommission:       acc.commission,
			AverageWinRate:        acc.winSum / float64(acc.count),
		})
	}
	sort.Slice(performers, func(i, j int) bool {
		return performers[i].TotalRevenue.GreaterThan(performers[j].TotalRevenue)
	})
	if limit > 0 && len(performers) > limit {
		performers = performers[:limit]
	}
	return performers, nil
}

// LeadsNeedingFollowUp returns entries whose last contact is older than the
// threshold, or that have never been contacted.
func (a *Aggregator) LeadsNeedingFollowUp(entries []models.PipelineEntry, thresholdDays int) []models.PipelineEntry {
	cutoff := time.Now().AddDate(0, 0, -thresholdDays)

	matched := make([]models.PipelineEntry, 0)
	for i := range entries {
		e := entries[i]
		if e.LastContactDate == nil || e.LastContactDate.Before(cutoff) {
			matched = append(matched, e)
		}
	}
	return matched
}

// UpcomingActions returns entries whose next action falls within the coming
// day.
func (a *Aggregator) UpcomingActions(entries []models.PipelineEntry) []models.PipelineEntry {
	now := time.Now()
	horizon := now.AddDate(0, 0, 1)

	matched := make([]models.PipelineEntry, 0)
	for i := range entries {
		e := entries[i]
		if e.NextActionDate == nil {
			continue
		}
		if !e.NextActionDate.Before(now) && !e.NextActionDate.After(horizon) {
			matched = append(matched, e)
		}
	}
	return matched
}

// HighProbabilityLeads returns active entries at or above the minimum
// probability.
func (a *Aggregator) HighProbabilityLeads(entries []models.PipelineEntry, minProbability int) []models.PipelineEntry {
	matched := make([]models.PipelineEntry, 0)
	for i := range entries {
		e := entries[i]
		if e.Active() && e.ProbabilityOrZero() >= minProbability {
			matched = append(matched, e)
		}
	}
	return matched
}

// UrgentLeads returns active entries flagged urgent or high priority.
func (a *Aggregator) UrgentLeads(entries []models.PipelineEntry) []models.PipelineEntry {
	matched := make([]models.PipelineEntry, 0)
	for i := range entries {
		e := entries[i]
		priority := strings.ToLower(e.Priority)
		if e.Active() && (priority == "urgent" || priority == "high") {
			matched = append(matched, e)
		}
	}
	return matched
}

func validateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s before start date %s",
			pipeline.ErrInvalidArgument, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return truncateDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
