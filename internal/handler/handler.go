package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gmail-notion-relay/internal/gmail"
	"gmail-notion-relay/internal/mapping"
	metricsPkg "gmail-notion-relay/internal/metrics"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/repository"
	"gmail-notion-relay/internal/service"
)

// SchemaSource reads database schemas and reports the Notion client's health.
type SchemaSource interface {
	GetDatabase(ctx context.Context, apiKey, databaseID string) (*notion.Database, error)
	State() string
}

// MessageLister lists message ids for the message picker.
type MessageLister interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db       *gorm.DB
	repo     *repository.Repository
	schema   SchemaSource
	registry mapping.Resolver
	saver    *service.SaveService
	messages MessageLister
	metrics  *metricsPkg.Metrics
	gatherer prometheus.Gatherer
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, schema SchemaSource, registry mapping.Resolver, saver *service.SaveService, messages MessageLister, metrics *metricsPkg.Metrics) *Handlers {
	return &Handlers{
		db:       db,
		repo:     repo,
		schema:   schema,
		registry: registry,
		saver:    saver,
		messages: messages,
		metrics:  metrics,
		gatherer: prometheus.DefaultGatherer,
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func (h *Handlers) WithGatherer(g prometheus.Gatherer) *Handlers {
	h.gatherer = g
	return h
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)

		api.GET("/databases/:databaseId/properties", h.GetProperties)
		api.GET("/databases/:databaseId/mappings", h.GetMappings)
		api.GET("/databases/:databaseId/mappings/:propertyId/form", h.GetMappingForm)
		api.PUT("/databases/:databaseId/mappings/:propertyId", h.SaveMapping)
		api.PATCH("/databases/:databaseId/mappings/:propertyId/enable", h.EnableMapping)
		api.PATCH("/databases/:databaseId/mappings/:propertyId/disable", h.DisableMapping)
		api.DELETE("/databases/:databaseId/mappings/:propertyId", h.DeleteMapping)

		api.GET("/messages", h.ListMessages)
		api.POST("/messages/raw/preview", h.PreviewRawMessage)
		api.GET("/messages/:id/preview", h.PreviewMessage)
		api.GET("/messages/:id/duplicate", h.CheckDuplicate)
		api.POST("/messages/:id/save", h.SaveMessage)

		api.GET("/logs", h.GetLogs)
		api.GET("/logs/:id", h.GetLog)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Notion:    h.schema.State(),
		Metrics:   make(map[string]string),
	}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if settings, err := h.repo.GetSettings(); err == nil {
		response.Metrics["settings"] = "incomplete"
		if settings.Complete() {
			response.Metrics["settings"] = "complete"
		}
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// respondError maps service, Notion and Gmail errors to HTTP responses.
func respondError(c *gin.Context, err error, message string) {
	var apiErr *notion.APIError
	switch {
	case errors.Is(err, service.ErrIncompleteConfiguration), errors.Is(err, notion.ErrMissingAPIKey):
		abort(c, http.StatusPreconditionFailed, "configuration_incomplete", err.Error())
	case errors.Is(err, service.ErrInvalidMessage):
		abort(c, http.StatusBadRequest, "invalid_message", err.Error())
	case errors.Is(err, service.ErrNothingToSave):
		abort(c, http.StatusUnprocessableEntity, "nothing_to_save", err.Error())
	case errors.Is(err, gmail.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		abort(c, http.StatusNotFound, "not_found", message)
	case errors.As(err, &apiErr):
		abort(c, http.StatusBadGateway, apiErr.Code, apiErr.Message)
	case notion.IsUnavailable(err):
		abort(c, http.StatusServiceUnavailable, "notion_unavailable", err.Error())
	case errors.Is(err, service.ErrFetchFailed):
		abort(c, http.StatusBadGateway, "gmail_error", err.Error())
	default:
		logrus.Errorf("%s: %v", message, err)
		abort(c, http.StatusInternalServerError, "internal_error", message)
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}

func (h *Handlers) refreshMappingGauge() {
	count, err := h.repo.CountEnabledMappings()
	if err != nil {
		logrus.Warnf("Failed to count enabled mappings: %v", err)
		return
	}
	h.metrics.EnabledMappings.Set(float64(count))
}
