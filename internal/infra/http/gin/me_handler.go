package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"arrienda/internal/infra/storage/mongo"
)

type MeHTTP interface {
	GetNotificationPreferences(c *gin.Context)
	SetNotificationPreferences(c *gin.Context)
}

type MeHandler struct {
	Profiles *mongo.ProfileStore
	Logger   *slog.Logger
}

func (h MeHandler) GetNotificationPreferences(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	prefs, err := h.Profiles.GetPreferences(c.Request.Context(), p.ID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("preference load failed", "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h MeHandler) SetNotificationPreferences(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	var prefs mongo.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.Profiles.SetPreferences(c.Request.Context(), p.ID, prefs); err != nil {
		if h.Logger != nil {
			h.Logger.Error("preference save failed", "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

var _ MeHTTP = (*MeHandler)(nil)
