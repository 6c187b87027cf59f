package agent

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/mathexpr"
	"github.com/agentswarm/agentswarm-go/internal/model"
)

// MathAgent evaluates arithmetic messages through the safe expression
// evaluator. It owns normalization so the raw message, not a pre-cooked
// expression, is what arrives here.
type MathAgent struct {
	logger *zap.Logger
}

// NewMathAgent creates the math agent.
func NewMathAgent(logger *zap.Logger) *MathAgent {
	return &MathAgent{logger: logger}
}

func (a *MathAgent) Name() model.AgentName {
	return model.AgentMath
}

// CanHandle mirrors the router heuristic: digits plus an operator.
func (a *MathAgent) CanHandle(message string) bool {
	return routerDigitRe.MatchString(message) &&
		(routerOpRe.MatchString(message) || routerTimesRe.MatchString(message))
}

// Handle normalizes and evaluates the message. Fails with
// mathexpr.ErrInvalidExpression when the message is not a safe expression.
func (a *MathAgent) Handle(_ context.Context, message string, actx Context, trail []model.AgentStep) (*model.ChatResponse, error) {
	normalized := mathexpr.Normalize(message)
	start := time.Now()

	value, err := mathexpr.Evaluate(normalized)
	elapsed := time.Since(start)

	if err != nil {
		a.logger.Error("math evaluation failed",
			zap.String("agent", string(model.AgentMath)),
			zap.String("conversation_id", actx.ConversationID),
			zap.Duration("execution_time", elapsed),
			zap.Int("input_len", len(message)),
			zap.Error(err))
		return nil, err
	}

	a.logger.Info("math evaluation finished",
		zap.String("agent", string(model.AgentMath)),
		zap.String("conversation_id", actx.ConversationID),
		zap.Duration("execution_time", elapsed),
		zap.String("expression", normalized))

	return &model.ChatResponse{
		Response:            "Result: " + formatValue(value),
		SourceAgentResponse: "expression=" + normalized,
		AgentWorkflow:       appendStep(trail, model.AgentStep{Agent: model.AgentMath}),
	}, nil
}

// formatValue renders the numeric result with shortest round-trip decimal
// formatting; overflow reads as Infinity rather than an error.
func formatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	}
	if abs := math.Abs(v); abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
