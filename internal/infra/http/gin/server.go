package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"arrienda/internal/infra/config"
	"arrienda/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Chat           ChatHTTP
	Inbox          InboxHTTP
	Presence       PresenceHTTP
	Property       PropertyHTTP
	Attachment     AttachmentHTTP
	Me             MeHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Chat != nil {
		api.GET("/threads", h.Chat.ListThreads)
		api.POST("/threads", h.Chat.StartThread)
		api.GET("/threads/:id/messages", h.Chat.ListMessages)
		api.POST("/threads/:id/messages", h.Chat.SendMessage)
		api.POST("/threads/:id/read", h.Chat.MarkRead)
	}
	if h.Inbox != nil {
		api.GET("/inbox/ws", h.Inbox.Connect)
		api.GET("/inbox/status", h.Inbox.Status)
		api.POST("/inbox/reconnect", h.Inbox.Reconnect)
	}
	if h.Presence != nil {
		api.POST("/presence/heartbeat", h.Presence.Heartbeat)
		api.GET("/users/:id/presence", h.Presence.Get)
	}
	if h.Property != nil {
		api.GET("/properties", h.Property.List)
		api.GET("/properties/:id", h.Property.Get)
		api.POST("/properties", h.Property.Create)
	}
	if h.Attachment != nil {
		api.POST("/attachments", h.Attachment.Upload)
	}
	if h.Me != nil {
		meGroup := api.Group("/me")
		meGroup.GET("/notification-preferences", h.Me.GetNotificationPreferences)
		meGroup.PUT("/notification-preferences", h.Me.SetNotificationPreferences)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
