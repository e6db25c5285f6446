package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const healthTimeout = 5 * time.Second

// StatusProvider is the part of the relay the HTTP surface reports on.
type StatusProvider interface {
	HealthCheck(ctx context.Context) error
	GetStats() map[string]interface{}
}

type APIHandler struct {
	status  StatusProvider
	version string
	logger  logger.Logger

	mu         sync.RWMutex
	handler    ports.EventHandler
	handlerCtx context.Context
}

func NewAPIHandler(status StatusProvider, version string, log logger.Logger) *APIHandler {
	return &APIHandler{
		status:  status,
		version: version,
		logger:  log.WithField("component", "api_handler"),
	}
}

func (h *APIHandler) subscribe(ctx context.Context, handler ports.EventHandler) {
	h.mu.Lock()
	h.handler = handler
	h.handlerCtx = ctx
	h.mu.Unlock()
}

func (h *APIHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Time:    time.Now(),
	}

	if err := h.status.HealthCheck(ctx); err != nil {
		h.logger.Warnf("Health check failed: %v", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *APIHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.GetStats())
}

// Refresh emits one refresh event and returns without waiting for the cycle.
func (h *APIHandler) Refresh(c *gin.Context) {
	h.mu.RLock()
	handler, ctx := h.handler, h.handlerCtx
	h.mu.RUnlock()

	if handler == nil {
		h.respondError(c, http.StatusServiceUnavailable, "relay is not subscribed to refresh events")
		return
	}
	if err := ctx.Err(); err != nil {
		h.respondError(c, http.StatusServiceUnavailable, fmt.Sprintf("relay is shutting down: %v", err))
		return
	}

	event := entities.NewEvent(entities.EventRefresh, "api:"+c.ClientIP())
	handler(ctx, event)

	c.JSON(http.StatusAccepted, RefreshResponse{
		EventID: event.ID,
		Status:  "accepted",
		Time:    event.ReceivedAt,
	})
}

func (h *APIHandler) respondError(c *gin.Context, status int, message string) {
	h.logger.Errorf("HTTP %d: %s", status, message)
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Time:    time.Now(),
	})
}

type ErrorResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
	Error   string    `json:"error,omitempty"`
}

type RefreshResponse struct {
	EventID string    `json:"event_id"`
	Status  string    `json:"status"`
	Time    time.Time `json:"time"`
}
