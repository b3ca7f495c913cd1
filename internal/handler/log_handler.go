package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLogs returns save logs with pagination
func (h *Handlers) GetLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	logs, total, err := h.repo.ListSaveLogs(page, limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, "database_error", "Failed to fetch logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs": logs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetLog returns a specific save log
func (h *Handlers) GetLog(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_id", "Invalid log ID")
		return
	}

	entry, err := h.repo.GetSaveLog(uint(id))
	if err != nil {
		respondError(c, err, "Log not found")
		return
	}
	c.JSON(http.StatusOK, entry)
}
