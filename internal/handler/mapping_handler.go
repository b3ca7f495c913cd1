package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"gmail-notion-relay/internal/mapping"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/repository"
)

// GetProperties returns a database's properties with their mappings
func (h *Handlers) GetProperties(c *gin.Context) {
	databaseID := c.Param("databaseId")
	_, db, ok := h.database(c, databaseID)
	if !ok {
		return
	}

	mappings, err := h.repo.ListMappings(databaseID)
	if err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch mappings")
		return
	}
	byProperty := make(map[string]*model.PropertyMapping, len(mappings))
	for i := range mappings {
		byProperty[mappings[i].PropertyID] = &mappings[i]
	}

	response := DatabaseResponse{ID: db.ID, Title: db.Title, URL: db.URL, Properties: []PropertyResponse{}}
	for _, p := range db.Properties {
		family, supported := mapping.FamilyOf(p.Kind)
		response.Properties = append(response.Properties, PropertyResponse{
			PropertyDescriptor: p,
			Family:             family,
			Supported:          supported && !p.Kind.IsAutoManaged(),
			Mapping:            byProperty[p.ID],
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetMappings returns the stored mappings of a database
func (h *Handlers) GetMappings(c *gin.Context) {
	mappings, err := h.repo.ListMappings(c.Param("databaseId"))
	if err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch mappings")
		return
	}
	c.JSON(http.StatusOK, mappings)
}

// GetMappingForm returns the configuration widgets of one property
func (h *Handlers) GetMappingForm(c *gin.Context) {
	apiKey, desc, ok := h.property(c)
	if !ok {
		return
	}

	existing, err := h.repo.GetMapping(c.Param("databaseId"), desc.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch mapping")
		return
	}

	widgets := h.registry.HandlerFor(desc.Kind).Widgets(c.Request.Context(), apiKey, desc, existing)
	c.JSON(http.StatusOK, FormResponse{Property: desc, Mapping: existing, Widgets: widgets})
}

// SaveMapping configures a property from submitted form values
func (h *Handlers) SaveMapping(c *gin.Context) {
	form, err := formValues(c)
	if err != nil {
		abort(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	_, desc, ok := h.property(c)
	if !ok {
		return
	}

	m, err := h.registry.HandlerFor(desc.Kind).Configure(desc, form)
	if err != nil {
		abort(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	m.DatabaseID = c.Param("databaseId")
	if m.PropertyID == "" {
		m.PropertyID = c.Param("propertyId")
	}

	if err := h.repo.UpsertMapping(&m); err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to save mapping")
		return
	}
	h.refreshMappingGauge()
	c.JSON(http.StatusOK, m)
}

// EnableMapping enables a mapping
func (h *Handlers) EnableMapping(c *gin.Context) {
	h.setMappingEnabled(c, true)
}

// DisableMapping disables a mapping
func (h *Handlers) DisableMapping(c *gin.Context) {
	h.setMappingEnabled(c, false)
}

func (h *Handlers) setMappingEnabled(c *gin.Context, enabled bool) {
	databaseID, propertyID := c.Param("databaseId"), c.Param("propertyId")

	m, err := h.repo.GetMapping(databaseID, propertyID)
	if err != nil {
		respondError(c, err, "Mapping not found")
		return
	}
	if enabled {
		if err := mapping.CheckEnable(m); err != nil {
			abort(c, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	if err := h.repo.SetMappingEnabled(databaseID, propertyID, enabled); err != nil {
		respondError(c, err, "Failed to update mapping")
		return
	}
	h.refreshMappingGauge()

	m.Enabled = enabled
	c.JSON(http.StatusOK, m)
}

// DeleteMapping deletes a mapping
func (h *Handlers) DeleteMapping(c *gin.Context) {
	if err := h.repo.DeleteMapping(c.Param("databaseId"), c.Param("propertyId")); err != nil {
		respondError(c, err, "Mapping not found")
		return
	}
	h.refreshMappingGauge()
	c.JSON(http.StatusOK, gin.H{"message": "Mapping deleted successfully"})
}

// database fetches a schema, writing the error response on failure.
func (h *Handlers) database(c *gin.Context, databaseID string) (string, *notion.Database, bool) {
	apiKey, err := h.saver.APIKey()
	if err != nil {
		respondError(c, err, "Failed to resolve Notion key")
		return "", nil, false
	}
	db, err := h.schema.GetDatabase(c.Request.Context(), apiKey, databaseID)
	if err != nil {
		respondError(c, err, "Failed to fetch database")
		return "", nil, false
	}
	return apiKey, db, true
}

// property resolves the :propertyId of the :databaseId schema.
func (h *Handlers) property(c *gin.Context) (string, notion.PropertyDescriptor, bool) {
	apiKey, db, ok := h.database(c, c.Param("databaseId"))
	if !ok {
		return "", notion.PropertyDescriptor{}, false
	}
	desc, ok := db.Property(c.Param("propertyId"))
	if !ok {
		abort(c, http.StatusNotFound, "not_found", "Property not found")
		return "", notion.PropertyDescriptor{}, false
	}
	return apiKey, desc, true
}

// formValues accepts url-encoded forms and flat JSON objects whose values are
// strings, booleans, numbers or lists of those.
func formValues(c *gin.Context) (url.Values, error) {
	if !strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		return c.Request.PostForm, nil
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	form := url.Values{}
	for key, v := range body {
		switch v := v.(type) {
		case []any:
			for _, item := range v {
				form.Add(key, fmt.Sprint(item))
			}
		case nil:
		default:
			form.Set(key, fmt.Sprint(v))
		}
	}
	return form, nil
}
