package model

import "time"

// AgentName identifies an agent in the workflow trail.
type AgentName string

const (
	AgentRouter    AgentName = "RouterAgent"
	AgentKnowledge AgentName = "KnowledgeAgent"
	AgentMath      AgentName = "MathAgent"
)

// ChatRequest inbound chat payload
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id" binding:"required"`
}

// AgentStep one hop in the workflow trail. Decision is set only on the
// router's hop and names the agent it selected.
type AgentStep struct {
	Agent    AgentName `json:"agent"`
	Decision AgentName `json:"decision,omitempty"`
}

// RouterDecision result of routing a message
type RouterDecision struct {
	Agent  AgentName `json:"agent"`
	Reason string    `json:"reason,omitempty"`
}

// ChatResponse outbound chat payload. SourceAgentResponse carries
// agent-specific provenance: the normalized expression for math answers,
// pipe-joined source URLs for knowledge answers.
type ChatResponse struct {
	Response            string      `json:"response"`
	SourceAgentResponse string      `json:"source_agent_response"`
	AgentWorkflow       []AgentStep `json:"agent_workflow"`
}

// ChatTurn one conversation history entry
type ChatTurn struct {
	Role      string    `json:"role"` // user, assistant
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryQuestion one entry in a user's question history
type HistoryQuestion struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// AgentLog one per-conversation agent log entry
type AgentLog struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"` // INFO, ERROR
	Agent     string         `json:"agent"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
