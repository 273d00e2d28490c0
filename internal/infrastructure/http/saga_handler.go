package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	appsaga "saga-coordinator/internal/application/saga"
	"saga-coordinator/internal/common/health"
	"saga-coordinator/internal/common/logger"

	"github.com/gin-gonic/gin"
)

// SagaHandler exposes saga submission and the log-backed query API.
type SagaHandler struct {
	coordinator *appsaga.Coordinator
	query       *appsaga.StatusQuery
	checkers    []health.HealthChecker
	logger      logger.Logger
}

func NewSagaHandler(coordinator *appsaga.Coordinator, query *appsaga.StatusQuery,
	checkers []health.HealthChecker, l logger.Logger) *SagaHandler {
	return &SagaHandler{
		coordinator: coordinator,
		query:       query,
		checkers:    checkers,
		logger:      l,
	}
}

// RegisterRoutes wires the handler into a gin router.
func (h *SagaHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/requests", h.SubmitDefinition)
	router.GET("/requests", h.QueryExecutions)
	router.GET("/requests/:sagaId", h.ExecutionDetail)
	router.GET("/events", h.AllEvents)
	router.GET("/health", h.Health)
}

// SubmitDefinition runs a saga to completion and reports the outcome. The
// call blocks until the saga reaches a terminal state.
func (h *SagaHandler) SubmitDefinition(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sagaID, err := h.coordinator.Run(c.Request.Context(), string(body))

	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"sagaId": sagaID, "status": "COMMITTED"})
	case errors.Is(err, appsaga.ErrInvalidDefinition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		var abort *appsaga.AbortError
		if errors.As(err, &abort) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"sagaId":        sagaID,
				"failedRequest": abort.RequestID,
				"error":         abort.Detail,
			})
			return
		}
		h.logger.Error("Saga submission failed",
			logger.Field{Key: "saga_id", Value: sagaID},
			logger.Field{Key: "error", Value: err})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// AllEvents returns the whole event log grouped by saga id.
func (h *SagaHandler) AllEvents(c *gin.Context) {
	grouped, err := h.query.AllEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, grouped)
}

// QueryExecutions pages saga instances started within a time window.
// startTime and endTime are epoch milliseconds.
func (h *SagaHandler) QueryExecutions(c *gin.Context) {
	pageIndex, ok := parseNonNegativeInt(c, "pageIndex", 0)
	if !ok {
		return
	}
	pageSize, ok := parseNonNegativeInt(c, "pageSize", 20)
	if !ok {
		return
	}
	if pageSize == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pageSize must be positive"})
		return
	}

	startMillis, ok := parseNonNegativeInt(c, "startTime", 0)
	if !ok {
		return
	}
	endMillis, ok := parseNonNegativeInt(c, "endTime", int(time.Now().UnixMilli()))
	if !ok {
		return
	}
	if endMillis < startMillis {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endTime must not precede startTime"})
		return
	}

	result, err := h.query.Executions(c.Request.Context(), pageIndex, pageSize,
		time.UnixMilli(int64(startMillis)), time.UnixMilli(int64(endMillis)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExecutionDetail reports the routing, per-request status, and failure
// details of one saga instance.
func (h *SagaHandler) ExecutionDetail(c *gin.Context) {
	sagaID := c.Param("sagaId")

	detail, err := h.query.ExecutionDetail(c.Request.Context(), sagaID)
	if err != nil {
		if errors.Is(err, appsaga.ErrSagaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Health runs every registered checker and reports 503 if any fails.
func (h *SagaHandler) Health(c *gin.Context) {
	statuses := make(map[string]health.HealthStatus, len(h.checkers))
	code := http.StatusOK
	for _, checker := range h.checkers {
		status := checker.Check(c.Request.Context())
		statuses[checker.Name()] = status
		if status.Status != health.StatusUp {
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, statuses)
}

func parseNonNegativeInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return value, true
}
