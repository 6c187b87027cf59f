package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/service"
)

// HistoryHandler read/delete endpoints over the history store.
type HistoryHandler struct {
	historyService *service.HistoryService
	logger         *zap.Logger
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(historyService *service.HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// GetUserHistory handles GET /history/:user_id.
func (h *HistoryHandler) GetUserHistory(c *gin.Context) {
	userID := c.Param("user_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	questions, err := h.historyService.GetUserHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to load user history", zap.String("user_id", userID), zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(200, gin.H{
		"user_id": userID,
		"count":   len(questions),
		"items":   questions,
	})
}

// RemoveQuestion handles DELETE /history/:user_id/:question_id.
func (h *HistoryHandler) RemoveQuestion(c *gin.Context) {
	userID := c.Param("user_id")
	questionID := c.Param("question_id")

	removed, err := h.historyService.RemoveQuestion(c.Request.Context(), questionID, userID)
	if err != nil {
		h.logger.Error("failed to remove question", zap.String("question_id", questionID), zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}
	if !removed {
		c.JSON(404, gin.H{"error_code": "NOT_FOUND"})
		return
	}

	c.JSON(200, gin.H{"removed": true})
}

// ClearUserHistory handles DELETE /history/:user_id.
func (h *HistoryHandler) ClearUserHistory(c *gin.Context) {
	userID := c.Param("user_id")

	count, err := h.historyService.ClearUserHistory(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to clear user history", zap.String("user_id", userID), zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(200, gin.H{"cleared": true, "removed_count": count})
}

// ListConversations handles GET /conversations/:user_id.
func (h *HistoryHandler) ListConversations(c *gin.Context) {
	userID := c.Param("user_id")

	convs, err := h.historyService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(200, gin.H{
		"user_id":       userID,
		"conversations": convs,
	})
}

// TailAgentLogs handles GET /logs/:conversation_id.
func (h *HistoryHandler) TailAgentLogs(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	n, _ := strconv.Atoi(c.DefaultQuery("n", "100"))

	items, err := h.historyService.TailAgentLogs(c.Request.Context(), conversationID, n)
	if err != nil {
		h.logger.Error("failed to read agent logs", zap.String("conversation_id", conversationID), zap.Error(err))
		c.JSON(500, gin.H{"error_code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(200, gin.H{
		"conversation_id": conversationID,
		"count":           len(items),
		"items":           items,
	})
}
