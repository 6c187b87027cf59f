package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/agent"
	"github.com/agentswarm/agentswarm-go/internal/model"
	"github.com/agentswarm/agentswarm-go/internal/sanitize"
)

// ErrInjectionDetected the message matched the prompt-injection blocklist
// and was rejected before routing.
var ErrInjectionDetected = errors.New("message rejected by prompt-injection policy")

// ApologyAnswer the fixed reply when the dispatched agent fails. Agent
// failures are absorbed here and never surface as transport errors.
const ApologyAnswer = "Desculpe, não consegui processar sua mensagem agora. Pode tentar reformular?"

// ChatService orchestrates one chat turn: sanitize, apply the injection
// policy, persist the user's turn, route, dispatch and persist the reply.
type ChatService struct {
	router    *agent.Router
	math      agent.Agent
	knowledge agent.Agent
	history   *HistoryService
	sessions  *SessionService // optional live push, may be nil
	maxLen    int
	logger    *zap.Logger
}

// NewChatService creates the orchestrator.
func NewChatService(
	router *agent.Router,
	math agent.Agent,
	knowledge agent.Agent,
	history *HistoryService,
	sessions *SessionService,
	maxLen int,
	logger *zap.Logger,
) *ChatService {
	if maxLen <= 0 {
		maxLen = 4000
	}
	return &ChatService{
		router:    router,
		math:      math,
		knowledge: knowledge,
		history:   history,
		sessions:  sessions,
		maxLen:    maxLen,
		logger:    logger,
	}
}

// Handle runs the full pipeline for one validated request. The only error
// it returns besides ErrInjectionDetected is an unexpected pre-dispatch
// failure; once an agent has been dispatched the caller always gets a
// chat-shaped answer.
func (s *ChatService) Handle(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	start := time.Now()

	// Defense in depth: upstream validation already ran, sanitize again.
	message := sanitize.Clean(req.Message, s.maxLen)

	if sanitize.DetectInjection(message) {
		s.logger.Warn("message rejected by injection policy",
			zap.String("user_id", req.UserID),
			zap.String("conversation_id", req.ConversationID),
			zap.Int("input_len", len(req.Message)))
		return nil, ErrInjectionDetected
	}

	// Best-effort persistence of the user's turn; an outage is logged
	// inside the history service and the request proceeds.
	s.history.AppendTurn(ctx, req.ConversationID, model.ChatTurn{
		Role:      "user",
		Content:   message,
		Timestamp: time.Now().UTC(),
	})
	s.history.SaveQuestion(ctx, message, req.UserID, req.ConversationID)

	decision := s.router.Route(message)
	trail := []model.AgentStep{{Agent: model.AgentRouter, Decision: decision.Agent}}

	executor := s.knowledge
	if decision.Agent == model.AgentMath {
		executor = s.math
	}

	actx := agent.Context{UserID: req.UserID, ConversationID: req.ConversationID}

	resp, err := executor.Handle(ctx, message, actx, trail)
	if err != nil {
		// Error logs carry the input length, never the content.
		s.logger.Error("agent execution failed",
			zap.String("agent", string(decision.Agent)),
			zap.String("user_id", req.UserID),
			zap.String("conversation_id", req.ConversationID),
			zap.Int("input_len", len(message)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		s.history.PushAgentLog(ctx, req.ConversationID, model.AgentLog{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     "ERROR",
			Agent:     string(decision.Agent),
			Message:   "agent execution failed",
		})
		return &model.ChatResponse{
			Response:            ApologyAnswer,
			SourceAgentResponse: "",
			AgentWorkflow:       trail,
		}, nil
	}

	s.history.AppendTurn(ctx, req.ConversationID, model.ChatTurn{
		Role:      "assistant",
		Content:   resp.Response,
		Agent:     string(decision.Agent),
		Timestamp: time.Now().UTC(),
	})
	s.history.PushAgentLog(ctx, req.ConversationID, model.AgentLog{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     "INFO",
		Agent:     string(decision.Agent),
		Message:   "reply produced",
		Data:      map[string]any{"source": resp.SourceAgentResponse},
	})

	if s.sessions != nil {
		if err := s.sessions.SendToUser(req.UserID, resp); err == nil {
			s.logger.Debug("reply pushed to websocket session", zap.String("user_id", req.UserID))
		}
	}

	s.logger.Info("chat turn completed",
		zap.String("agent", string(decision.Agent)),
		zap.String("user_id", req.UserID),
		zap.String("conversation_id", req.ConversationID),
		zap.Int("workflow_len", len(resp.AgentWorkflow)),
		zap.Duration("duration", time.Since(start)))

	return resp, nil
}
