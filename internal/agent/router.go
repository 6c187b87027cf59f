package agent

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
)

var (
	routerDigitRe = regexp.MustCompile(`[0-9]`)
	routerOpRe    = regexp.MustCompile(`[+\-*/^]`)
	routerTimesRe = regexp.MustCompile(`[0-9]\s*[xX]\s*[0-9]`)
)

// Router classifies a message as math or knowledge. The heuristic is a
// cheap O(length) scan, deliberately permissive toward knowledge: operator
// characters without any digit ("C++", "Débito / Crédito") stay knowledge,
// a digit plus any operator anywhere classifies as math.
type Router struct {
	logger *zap.Logger
}

// NewRouter creates the router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{logger: logger}
}

// Route decides which agent handles the message. It never fails, for any
// input.
func (r *Router) Route(message string) model.RouterDecision {
	if routerDigitRe.MatchString(message) &&
		(routerOpRe.MatchString(message) || routerTimesRe.MatchString(message)) {
		return model.RouterDecision{Agent: model.AgentMath, Reason: "digit and arithmetic operator present"}
	}
	return model.RouterDecision{Agent: model.AgentKnowledge}
}
