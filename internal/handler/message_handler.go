package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// maxRawMessageSize caps uploaded .eml bodies.
const maxRawMessageSize = 25 << 20

// ListMessages returns recent message ids matching a Gmail search query
func (h *Handlers) ListMessages(c *gin.Context) {
	max, _ := strconv.ParseInt(c.DefaultQuery("max", "20"), 10, 64)
	if max < 1 || max > 100 {
		max = 20
	}

	ids, err := h.messages.ListMessageIDs(c.Request.Context(), c.Query("q"), max)
	if err != nil {
		abort(c, http.StatusBadGateway, "gmail_error", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": ids})
}

// PreviewMessage returns the properties a save would write
func (h *Handlers) PreviewMessage(c *gin.Context) {
	preview, err := h.saver.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to preview message")
		return
	}
	c.JSON(http.StatusOK, preview)
}

// PreviewRawMessage previews an uploaded RFC 822 message, sent either as the
// request body or as the "file" field of a multipart form
func (h *Handlers) PreviewRawMessage(c *gin.Context) {
	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, maxRawMessageSize)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			abort(c, http.StatusBadRequest, "invalid_message", "Failed to read uploaded file")
			return
		}
		defer f.Close()
		body = f
	}

	preview, err := h.saver.PreviewRaw(c.Request.Context(), body)
	if err != nil {
		respondError(c, err, "Failed to preview message")
		return
	}
	c.JSON(http.StatusOK, preview)
}

// CheckDuplicate reports whether the message was already saved
func (h *Handlers) CheckDuplicate(c *gin.Context) {
	outcome, err := h.saver.CheckDuplicate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to check for duplicates")
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// SaveMessage creates a Notion page from the message
func (h *Handlers) SaveMessage(c *gin.Context) {
	result, err := h.saver.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to save message")
		return
	}
	c.JSON(http.StatusCreated, result)
}
