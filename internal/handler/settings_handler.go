package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gmail-notion-relay/internal/model"
)

// GetSettings returns the Notion connection without the key itself
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.repo.GetSettings()
	if err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch settings")
		return
	}
	c.JSON(http.StatusOK, settingsResponse(settings))
}

// UpdateSettings stores the Notion key and target database
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	settings, err := h.repo.GetSettings()
	if err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch settings")
		return
	}
	if key := strings.TrimSpace(req.NotionAPIKey); key != "" {
		settings.NotionAPIKey = key
	}
	settings.DatabaseID = strings.TrimSpace(req.DatabaseID)

	if err := h.repo.SaveSettings(settings); err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to save settings")
		return
	}
	c.JSON(http.StatusOK, settingsResponse(settings))
}

func settingsResponse(s *model.Settings) SettingsResponse {
	return SettingsResponse{
		DatabaseID: s.DatabaseID,
		APIKeySet:  s.NotionAPIKey != "",
		Complete:   s.Complete(),
		UpdatedAt:  s.UpdatedAt,
	}
}
