package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"arrienda/internal/infra/storage/s3"
)

type AttachmentHTTP interface {
	Upload(c *gin.Context)
}

// AttachmentHandler stores a chat attachment and returns its public URL; the
// client then references the URL when sending the message.
type AttachmentHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

func (h AttachmentHandler) Upload(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	threadID := strings.TrimSpace(c.PostForm("thread_id"))
	if threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "thread_id is required"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > s3.MaxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
		return
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer reader.Close()

	key := s3.AttachmentKey(threadID, file.Filename)
	url, err := h.Uploader.Upload(c.Request.Context(), key, reader, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, s3.ErrAttachmentTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
			return
		}
		if h.Logger != nil {
			h.Logger.Error("attachment upload failed", "thread_id", threadID, "error", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"url":          url,
		"name":         file.Filename,
		"content_type": file.Header.Get("Content-Type"),
	})
}

var _ AttachmentHTTP = (*AttachmentHandler)(nil)
