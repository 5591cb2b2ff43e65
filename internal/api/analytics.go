package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type DateRange struct {
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
}

const dateLayout = "2006-01-02"

// parseRange reads the startDate/endDate query parameters, defaulting to the
// trailing 30 days when absent.
func (h *Handler) parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	var dateRange DateRange
	if err := c.ShouldBindQuery(&dateRange); err != nil {
		h.logger.WithError(err).Error("Failed to parse date range")
	}

	end := time.Now()
	start := end.AddDate(0, 0, -30)

	if dateRange.StartDate != "" {
		parsed, err := time.Parse(dateLayout, dateRange.StartDate)
		if err != nil {
			h.invalidArgument(c, "invalid startDate, expected YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if dateRange.EndDate != "" {
		parsed, err := time.Parse(dateLayout, dateRange.EndDate)
		if err != nil {
			h.invalidArgument(c, "invalid endDate, expected YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	return start, end, true
}

func (h *Handler) AnalyticsOverview(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.Overview(entries))
}

func (h *Handler) AnalyticsStages(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.StageBreakdown(entries))
}

func (h *Handler) AnalyticsAgents(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.AgentPerformance(entries))
}

func (h *Handler) AnalyticsSources(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.SourceAnalysis(entries))
}

func (h *Handler) AnalyticsVelocity(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.StageVelocity(entries))
}

func (h *Handler) AnalyticsTrends(c *gin.Context) {
	start, end, ok := h.parseRange(c)
	if !ok {
		return
	}

	records, err := h.snapshots.DailyRange(start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	points, err := h.agg.ConversionTrends(records, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) AnalyticsTopPerformers(c *gin.Context) {
	start, end, ok := h.parseRange(c)
	if !ok {
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.invalidArgument(c, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := h.snapshots.AgentRange(start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	performers, err := h.agg.TopPerformers(records, start, end, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, performers)
}

func (h *Handler) GenerateSnapshot(c *gin.Context) {
	if err := h.generator.Generate(time.Now()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Snapshot generation started"})
}
