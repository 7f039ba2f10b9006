package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"arrienda/internal/app/dto"
	chatsvc "arrienda/internal/app/services/chat"
	domainchat "arrienda/internal/domain/chat"
	domainproperty "arrienda/internal/domain/property"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 200
)

type ChatHTTP interface {
	ListThreads(c *gin.Context)
	StartThread(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
}

type ChatHandler struct {
	Service *chatsvc.Service
	Logger  *slog.Logger
}

func (h ChatHandler) ListThreads(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	threads, err := h.Service.Threads(c.Request.Context(), p.ID)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ThreadsFromDomain(threads))
}

type startThreadRequest struct {
	OtherUserID string `json:"other_user_id"`
	PropertyID  string `json:"property_id"`
}

func (h ChatHandler) StartThread(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req startThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	thread, err := h.Service.StartThread(c.Request.Context(), chatsvc.StartThreadParams{
		UserID:      p.ID,
		OtherUserID: req.OtherUserID,
		PropertyID:  req.PropertyID,
	})
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ThreadFromDomain(thread))
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	limit := parseLimit(c.Query("limit"))
	before := strings.TrimSpace(c.Query("before"))
	msgs, err := h.Service.Messages(c.Request.Context(), p.ID, c.Param("id"), limit, before)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	items := make([]dto.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, dto.MessageFromDomain(m))
	}
	out := dto.ChatMessageList{Items: items}
	if len(items) == limit && limit > 0 {
		out.NextCursor = items[len(items)-1].ID
	}
	c.JSON(http.StatusOK, out)
}

type sendMessageRequest struct {
	Content     string                  `json:"content"`
	Attachments []domainchat.Attachment `json:"attachments"`
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg, err := h.Service.SendMessage(c.Request.Context(), chatsvc.SendParams{
		UserID:      p.ID,
		ThreadID:    c.Param("id"),
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MessageFromDomain(*msg))
}

func (h ChatHandler) MarkRead(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if err := h.Service.MarkRead(c.Request.Context(), p.ID, c.Param("id")); err != nil {
		h.respondChatError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainchat.ErrThreadNotFound), errors.Is(err, domainproperty.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domainchat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, domainchat.ErrContentRequired), errors.Is(err, domainchat.ErrSelfThread):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("chat operation failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseLimit(raw string) int {
	limit := defaultMessagePageSize
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}
	return limit
}

var _ ChatHTTP = (*ChatHandler)(nil)
