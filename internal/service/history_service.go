package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
	"github.com/agentswarm/agentswarm-go/internal/storage"
)

// HistoryTTLs retention windows for the history keys, in seconds.
type HistoryTTLs struct {
	Conversation int // chat:history:<conversation_id>
	UserHistory  int // history:user:<user_id>, history:question:<id>, user:convs:<user_id>
	AgentLogs    int // agent:logs:<conversation_id>
}

// HistoryService owns every short-lived record of a conversation: the turn
// list per conversation, the per-user question index, the user→conversation
// set and the per-conversation agent log trail. Writes are best-effort —
// a storage outage is logged and never fails the request.
type HistoryService struct {
	store  storage.Store
	ttls   HistoryTTLs
	logger *zap.Logger
}

// NewHistoryService creates the history service.
func NewHistoryService(store storage.Store, ttls HistoryTTLs, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: store, ttls: ttls, logger: logger}
}

func conversationKey(conversationID string) string {
	return "chat:history:" + conversationID
}

func questionKey(questionID string) string {
	return "history:question:" + questionID
}

func userHistoryKey(userID string) string {
	return "history:user:" + userID
}

func userConversationsKey(userID string) string {
	return "user:convs:" + userID
}

func agentLogsKey(conversationID string) string {
	return "agent:logs:" + conversationID
}

// AppendTurn appends one turn to a conversation. Best-effort.
func (s *HistoryService) AppendTurn(ctx context.Context, conversationID string, turn model.ChatTurn) {
	payload, err := json.Marshal(turn)
	if err != nil {
		s.logger.Error("failed to encode history turn", zap.Error(err))
		return
	}

	key := conversationKey(conversationID)
	if err := s.store.AppendList(ctx, key, string(payload)); err != nil {
		s.logger.Warn("failed to append conversation turn, continuing without persistence",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	if err := s.store.Expire(ctx, key, time.Duration(s.ttls.Conversation)*time.Second); err != nil {
		s.logger.Warn("failed to refresh conversation TTL", zap.Error(err))
	}
}

// GetConversation returns the last count turns of a conversation.
func (s *HistoryService) GetConversation(ctx context.Context, conversationID string, count int) ([]model.ChatTurn, error) {
	raw, err := s.store.TailList(ctx, conversationKey(conversationID), count)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation history: %w", err)
	}

	turns := make([]model.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var turn model.ChatTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.Warn("skipping unreadable history turn", zap.Error(err))
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// SaveQuestion records a question in the user's history index and links the
// conversation to the user. Best-effort.
func (s *HistoryService) SaveQuestion(ctx context.Context, question, userID, conversationID string) {
	entry := model.HistoryQuestion{
		ID:             uuid.New().String(),
		Question:       question,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: conversationID,
		UserID:         userID,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("failed to encode history question", zap.Error(err))
		return
	}

	userTTL := time.Duration(s.ttls.UserHistory) * time.Second

	if err := s.store.SetEx(ctx, questionKey(entry.ID), userTTL, string(payload)); err != nil {
		s.logger.Warn("failed to save question to history", zap.String("user_id", userID), zap.Error(err))
		return
	}

	listKey := userHistoryKey(userID)
	if err := s.store.AppendList(ctx, listKey, entry.ID); err != nil {
		s.logger.Warn("failed to index question for user", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := s.store.Expire(ctx, listKey, userTTL); err != nil {
		s.logger.Warn("failed to refresh user history TTL", zap.Error(err))
	}

	convsKey := userConversationsKey(userID)
	if err := s.store.SAdd(ctx, convsKey, conversationID); err == nil {
		_ = s.store.Expire(ctx, convsKey, userTTL)
	} else {
		s.logger.Warn("failed to link conversation to user", zap.Error(err))
	}
}

// GetUserHistory returns the user's recent questions, newest first.
func (s *HistoryService) GetUserHistory(ctx context.Context, userID string, limit int) ([]model.HistoryQuestion, error) {
	if limit <= 0 {
		limit = 20
	}

	ids, err := s.store.TailList(ctx, userHistoryKey(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read user history index: %w", err)
	}

	questions := make([]model.HistoryQuestion, 0, len(ids))
	for _, id := range ids {
		raw, ok, err := s.store.Get(ctx, questionKey(id))
		if err != nil || !ok {
			continue
		}
		var q model.HistoryQuestion
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			s.logger.Warn("skipping unreadable history question", zap.String("question_id", id), zap.Error(err))
			continue
		}
		questions = append(questions, q)
	}

	sort.Slice(questions, func(i, j int) bool {
		return questions[i].Timestamp > questions[j].Timestamp
	})

	return questions, nil
}

// RemoveQuestion deletes one question if it belongs to the user.
func (s *HistoryService) RemoveQuestion(ctx context.Context, questionID, userID string) (bool, error) {
	raw, ok, err := s.store.Get(ctx, questionKey(questionID))
	if err != nil {
		return false, fmt.Errorf("failed to read question: %w", err)
	}
	if !ok {
		return false, nil
	}

	var q model.HistoryQuestion
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return false, fmt.Errorf("failed to decode question: %w", err)
	}
	if q.UserID != userID {
		s.logger.Warn("refused to remove another user's question",
			zap.String("question_id", questionID),
			zap.String("user_id", userID))
		return false, nil
	}

	if err := s.store.Del(ctx, questionKey(questionID)); err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	return true, nil
}

// ClearUserHistory removes all of a user's questions and the index itself.
func (s *HistoryService) ClearUserHistory(ctx context.Context, userID string) (int, error) {
	ids, err := s.store.TailList(ctx, userHistoryKey(userID), 1000)
	if err != nil {
		return 0, fmt.Errorf("failed to read user history index: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, questionKey(id))
	}
	keys = append(keys, userHistoryKey(userID))

	if err := s.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to clear user history: %w", err)
	}
	return len(ids), nil
}

// ListConversations returns the conversation IDs linked to a user.
func (s *HistoryService) ListConversations(ctx context.Context, userID string) ([]string, error) {
	convs, err := s.store.SMembers(ctx, userConversationsKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	sort.Strings(convs)
	return convs, nil
}

// PushAgentLog appends one agent log entry to the conversation's trail.
// Best-effort.
func (s *HistoryService) PushAgentLog(ctx context.Context, conversationID string, entry model.AgentLog) {
	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("failed to encode agent log", zap.Error(err))
		return
	}

	key := agentLogsKey(conversationID)
	if err := s.store.AppendList(ctx, key, string(payload)); err != nil {
		s.logger.Warn("failed to append agent log", zap.Error(err))
		return
	}
	_ = s.store.Expire(ctx, key, time.Duration(s.ttls.AgentLogs)*time.Second)
}

// TailAgentLogs returns the last n agent log entries for a conversation.
func (s *HistoryService) TailAgentLogs(ctx context.Context, conversationID string, n int) ([]model.AgentLog, error) {
	if n <= 0 {
		n = 100
	}
	raw, err := s.store.TailList(ctx, agentLogsKey(conversationID), n)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent logs: %w", err)
	}

	logs := make([]model.AgentLog, 0, len(raw))
	for _, item := range raw {
		var entry model.AgentLog
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
