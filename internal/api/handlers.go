package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dealflow/server/config"
	"dealflow/server/internal/analytics"
	"dealflow/server/internal/database"
	"dealflow/server/internal/models"
	"dealflow/server/internal/pipeline"
	"dealflow/server/internal/snapshot"
)

type Handler struct {
	db        *database.Database
	engine    *pipeline.Engine
	agg       *analytics.Aggregator
	snapshots *snapshot.Store
	generator *snapshot.Service
	cfg       *config.Config
	logger    *logrus.Logger
}

func NewHandler(db *database.Database, snapshots *snapshot.Store, generator *snapshot.Service, cfg *config.Config, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:        db,
		engine:    pipeline.NewEngine(db, logger),
		agg:       analytics.NewAggregator(),
		snapshots: snapshots,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// ErrorResponse is the structured error body for every failure status.
type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{ErrorKind: "not_found", Message: err.Error()})
	case errors.Is(err, pipeline.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, ErrorResponse{ErrorKind: "invalid_argument", Message: err.Error()})
	default:
		h.logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{ErrorKind: "internal", Message: err.Error()})
	}
}

func (h *Handler) invalidArgument(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{ErrorKind: "invalid_argument", Message: message})
}

func (h *Handler) pipelineID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.invalidArgument(c, "invalid pipeline id")
		return 0, false
	}
	return id, true
}

func (h *Handler) ListPipelines(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *Handler) GetPipeline(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	entry, err := h.db.GetPipeline(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{ErrorKind: "not_found", Message: "pipeline entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) CreatePipeline(c *gin.Context) {
	var entry models.PipelineEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.invalidArgument(c, "invalid request body: "+err.Error())
		return
	}

	created, err := h.engine.Create(&entry)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdatePipeline(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	var patch models.PipelineEntry
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.invalidArgument(c, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.engine.Update(id, &patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePipeline(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	if err := h.engine.Delete(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MoveToStage(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	stage := c.Query("stage")
	if stage == "" {
		h.invalidArgument(c, "stage parameter is required")
		return
	}

	updated, err := h.engine.MoveToStage(id, models.Stage(stage), c.Query("notes"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	updated, err := h.engine.UpdateContact(id, c.Query("notes"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) CloseDeal(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	updated, err := h.engine.CloseDeal(id, c.Query("closeReason"), c.Query("actualValue"), c.Query("commissionEarned"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) LoseDeal(c *gin.Context) {
	id, ok := h.pipelineID(c)
	if !ok {
		return
	}

	updated, err := h.engine.LoseDeal(id, c.Query("closeReason"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) ListByAgent(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Param("agentId"), 10, 64)
	if err != nil {
		h.invalidArgument(c, "invalid agent id")
		return
	}

	entries, err := h.db.ListByAgent(agentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *Handler) ListByStage(c *gin.Context) {
	entries, err := h.db.ListByStage(models.Stage(c.Param("stage")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *Handler) ListActive(c *gin.Context) {
	entries, err := h.db.ListActive()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

func (h *Handler) ListUrgent(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.UrgentLeads(entries))
}

func (h *Handler) ListHighProbability(c *gin.Context) {
	minProbability := 70
	if raw := c.Query("minProbability"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.invalidArgument(c, "invalid minProbability")
			return
		}
		minProbability = parsed
	}

	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.HighProbabilityLeads(entries, minProbability))
}

func (h *Handler) ListFollowUp(c *gin.Context) {
	days := h.cfg.FollowUp.DefaultDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.invalidArgument(c, "invalid days")
			return
		}
		days = parsed
	}

	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.LeadsNeedingFollowUp(entries, days))
}

func (h *Handler) ListUpcomingActions(c *gin.Context) {
	entries, err := h.db.ListPipelines()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.agg.UpcomingActions(entries))
}

// nonNil keeps empty listings serializing as [] instead of null.
func nonNil(entries []models.PipelineEntry) []models.PipelineEntry {
	if entries == nil {
		return []models.PipelineEntry{}
	}
	return entries
}
