package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arrienda/internal/app/dto"
	"arrienda/internal/inbox"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 4 << 10
)

type InboxHTTP interface {
	Connect(c *gin.Context)
	Status(c *gin.Context)
	Reconnect(c *gin.Context)
}

// InboxHandler exposes the per-user inbox session over a WebSocket: the
// server pushes reconciled thread snapshots, the client reports viewing state
// and read actions back.
type InboxHandler struct {
	Sessions   *inbox.Registry
	NewSession func(userID string) (*inbox.Session, error)
	Presence   ActivityTracker
	Logger     *slog.Logger
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth is the bearer token, not cookies, so cross-origin is fine here.
	CheckOrigin: func(*http.Request) bool { return true },
}

type inboxFrame struct {
	Type      string          `json:"type"`
	Threads   *dto.ThreadList `json:"threads,omitempty"`
	Status    string          `json:"status"`
	Connected bool            `json:"connected"`
	LastError string          `json:"last_error,omitempty"`
}

type inboxCommand struct {
	Action   string `json:"action"`
	ThreadID string `json:"thread_id"`
}

func (h InboxHandler) Connect(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	session, err := h.acquire(c, p.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inbox unavailable"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "user_id", p.ID, "error", err)
		}
		return
	}
	conn.SetReadLimit(wsReadLimit)

	// each connection gets its own update listener so a second tab on the
	// same session cannot starve this one of snapshot pushes
	updates, cancel := session.Subscribe()
	done := make(chan struct{})
	go h.writeLoop(conn, session, updates, done)
	h.readLoop(c, conn, session, p.ID)
	close(done)
	cancel()
	session.ClearViewing()
	_ = conn.Close()
}

// writeLoop owns all writes on the connection: snapshots on every session
// update plus keepalive pings.
func (h InboxHandler) writeLoop(conn *websocket.Conn, session *inbox.Session, updates <-chan struct{}, done <-chan struct{}) {
	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	if err := h.writeSnapshot(conn, session); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-updates:
			if err := h.writeSnapshot(conn, session); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h InboxHandler) writeSnapshot(conn *websocket.Conn, session *inbox.Session) error {
	frame := snapshotFrame(session)
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(frame)
}

func (h InboxHandler) readLoop(c *gin.Context, conn *websocket.Conn, session *inbox.Session, userID string) {
	ctx := c.Request.Context()
	for {
		var cmd inboxCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		if h.Presence != nil {
			_ = h.Presence.Heartbeat(ctx, userID)
		}
		switch cmd.Action {
		case "viewing":
			session.SetViewing(cmd.ThreadID)
		case "clear_viewing":
			session.ClearViewing()
		case "mark_read":
			if err := session.MarkAsRead(ctx, cmd.ThreadID); err != nil && h.Logger != nil {
				h.Logger.Warn("mark read over websocket failed", "user_id", userID, "thread_id", cmd.ThreadID, "error", err)
			}
		case "refresh":
			if err := session.RefreshInbox(ctx); err != nil && h.Logger != nil {
				h.Logger.Warn("refresh over websocket failed", "user_id", userID, "error", err)
			}
		default:
			if h.Logger != nil {
				h.Logger.Debug("unknown inbox command", "user_id", userID, "action", cmd.Action)
			}
		}
	}
}

func (h InboxHandler) Status(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	session := h.Sessions.Get(p.ID)
	if session == nil {
		c.JSON(http.StatusOK, dto.InboxStatus{Status: "disconnected", Connected: false})
		return
	}
	c.JSON(http.StatusOK, statusOf(session))
}

func (h InboxHandler) Reconnect(c *gin.Context) {
	p, ok := requireRole(c, "")
	if !ok {
		return
	}
	session, err := h.acquire(c, p.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inbox unavailable"})
		return
	}
	if err := session.Reconnect(c.Request.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual reconnect failed", "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "reconnect failed"})
		return
	}
	c.JSON(http.StatusOK, statusOf(session))
}

func (h InboxHandler) acquire(c *gin.Context, userID string) (*inbox.Session, error) {
	if session := h.Sessions.Get(userID); session != nil {
		return session, nil
	}
	session, err := h.NewSession(userID)
	if err != nil {
		return nil, err
	}
	if err := session.Start(c.Request.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Error("inbox session start failed", "user_id", userID, "error", err)
		}
		session.Close()
		return nil, err
	}
	h.Sessions.Put(userID, session)
	return session, nil
}

func snapshotFrame(session *inbox.Session) inboxFrame {
	threads := dto.ThreadsFromDomain(session.Threads())
	frame := inboxFrame{
		Type:      "threads",
		Threads:   &threads,
		Status:    string(session.ConnectionStatus()),
		Connected: session.IsConnected(),
	}
	if err := session.LastError(); err != nil {
		frame.LastError = err.Error()
	}
	return frame
}

func statusOf(session *inbox.Session) dto.InboxStatus {
	out := dto.InboxStatus{
		Status:    string(session.ConnectionStatus()),
		Connected: session.IsConnected(),
	}
	if err := session.LastError(); err != nil {
		out.LastError = err.Error()
	}
	return out
}

var _ InboxHTTP = (*InboxHandler)(nil)
