package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
	"github.com/agentswarm/agentswarm-go/internal/service"
)

// WebSocketHandler upgrades connections and keeps the session registry in
// sync so assistant replies can be pushed live.
type WebSocketHandler struct {
	sessionService *service.SessionService
	upgrader       websocket.Upgrader
	logger         *zap.Logger
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(sessionService *service.SessionService, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessionService: sessionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced by the HTTP middleware; the upgrade itself
			// accepts any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Connect handles GET /ws?user_id=U.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(400, gin.H{"error_code": "INVALID_PAYLOAD", "message": "user_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session := &model.UserSession{
		UserID:        userID,
		SessionID:     uuid.New().String(),
		Conn:          conn,
		ClientIP:      c.ClientIP(),
		LastHeartbeat: time.Now(),
	}
	h.sessionService.Register(session)

	go h.readLoop(session)
}

// readLoop drains inbound frames; anything received counts as a heartbeat.
func (h *WebSocketHandler) readLoop(session *model.UserSession) {
	defer func() {
		h.sessionService.Unregister(session)
		_ = session.Conn.Close()
	}()

	for {
		if _, _, err := session.Conn.ReadMessage(); err != nil {
			return
		}
		session.UpdateHeartbeat()
	}
}
