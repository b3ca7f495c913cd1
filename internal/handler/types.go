package handler

import (
	"time"

	"gmail-notion-relay/internal/mapping"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
)

// SettingsRequest represents the request structure for updating settings.
// An empty key keeps the stored one.
type SettingsRequest struct {
	NotionAPIKey string `json:"notion_api_key"`
	DatabaseID   string `json:"database_id" binding:"required"`
}

// SettingsResponse represents the response structure for settings
type SettingsResponse struct {
	DatabaseID string    `json:"database_id"`
	APIKeySet  bool      `json:"api_key_set"`
	Complete   bool      `json:"complete"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PropertyResponse describes a database property and its mapping, if any
type PropertyResponse struct {
	notion.PropertyDescriptor
	Family    mapping.Family         `json:"family"`
	Supported bool                   `json:"supported"`
	Mapping   *model.PropertyMapping `json:"mapping,omitempty"`
}

// DatabaseResponse represents the response structure for a database schema
type DatabaseResponse struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	URL        string             `json:"url"`
	Properties []PropertyResponse `json:"properties"`
}

// FormResponse is the configuration form of one property
type FormResponse struct {
	Property notion.PropertyDescriptor `json:"property"`
	Mapping  *model.PropertyMapping    `json:"mapping,omitempty"`
	Widgets  []mapping.Widget          `json:"widgets"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Notion    string            `json:"notion"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
