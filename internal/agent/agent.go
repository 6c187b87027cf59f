// Package agent contains the routing heuristic and the two specialized
// message handlers. Every agent appends its own hop to the workflow trail
// it receives; the trail it was given is never mutated in place.
package agent

import (
	"context"
	"time"

	"github.com/agentswarm/agentswarm-go/internal/model"
)

// Context per-request correlation data passed to every handler.
type Context struct {
	UserID         string
	ConversationID string
}

// Agent the contract every executor agent satisfies.
type Agent interface {
	Name() model.AgentName
	CanHandle(message string) bool
	Handle(ctx context.Context, message string, actx Context, trail []model.AgentStep) (*model.ChatResponse, error)
}

// Passage one retrieved knowledge snippet with provenance.
type Passage struct {
	Text      string
	SourceURL string
	Score     float64
}

// Retriever the search capability consumed by the knowledge agent.
type Retriever interface {
	Ready() bool
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// Synthesizer the optional answer-synthesis capability.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, passages []string) (string, error)
}

// Cache short-TTL answer cache consumed by the knowledge agent.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
}

// appendStep returns a fresh trail with one more hop; the input slice is
// left untouched so earlier hops can never be reordered or rewritten.
func appendStep(trail []model.AgentStep, step model.AgentStep) []model.AgentStep {
	out := make([]model.AgentStep, 0, len(trail)+1)
	out = append(out, trail...)
	return append(out, step)
}
