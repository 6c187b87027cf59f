package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
	"github.com/agentswarm/agentswarm-go/internal/service"
	"github.com/agentswarm/agentswarm-go/internal/storage"
)

// Version reported by the health endpoint.
const Version = "0.1.0"

const maxInboundMessageLen = 1000

// ChatHandler HTTP surface of the orchestrator.
type ChatHandler struct {
	chatService *service.ChatService
	store       storage.Store
	logger      *zap.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(chatService *service.ChatService, store storage.Store, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		store:       store,
		logger:      logger,
	}
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error_code": "INVALID_PAYLOAD"})
		return
	}
	if len(req.Message) > maxInboundMessageLen {
		c.JSON(400, gin.H{"error_code": "INVALID_PAYLOAD", "message": "message too long"})
		return
	}

	resp, err := h.chatService.Handle(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInjectionDetected) {
			c.JSON(403, gin.H{
				"error_code": "FORBIDDEN_INPUT",
				"message":    "Input rejected by minimal prompt-injection policy.",
			})
			return
		}
		h.logger.Error("chat request failed unexpectedly",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(200, resp)
}

// Health handles GET /health.
func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"version": Version,
	})
}

// Ready handles GET /ready; reports whether the storage backend responds.
func (h *ChatHandler) Ready(c *gin.Context) {
	if _, ok := h.store.(*storage.MemoryStore); ok {
		c.JSON(200, gin.H{"ready": true, "redis": "disabled"})
		return
	}
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(503, gin.H{"ready": false, "redis": "down"})
		return
	}
	c.JSON(200, gin.H{"ready": true, "redis": "ok"})
}
