package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"arrienda/internal/app/dto"
	domainchat "arrienda/internal/domain/chat"
)

type PresenceHTTP interface {
	Heartbeat(c *gin.Context)
	Get(c *gin.Context)
}

// PresenceReader resolves the public online state of a user.
type PresenceReader interface {
	Get(ctx context.Context, userID string) (domainchat.Presence, error)
}

type PresenceHandler struct {
	Tracker ActivityTracker
	Reader  PresenceReader
	Logger  *slog.Logger
}

func (h PresenceHandler) Heartbeat(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	if err := h.Tracker.Heartbeat(c.Request.Context(), p.ID); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("heartbeat failed", "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h PresenceHandler) Get(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}
	presence, err := h.Reader.Get(c.Request.Context(), userID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("presence lookup failed", "user_id", userID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, dto.PresenceView{
		UserID:   presence.UserID,
		IsOnline: presence.IsOnline,
		LastSeen: presence.LastSeen,
	})
}

var _ PresenceHTTP = (*PresenceHandler)(nil)
