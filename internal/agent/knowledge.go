package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
)

// NoInformationAnswer the fixed reply when nothing was retrieved.
const NoInformationAnswer = "Desculpe, não tenho essa informação no momento."

// retrievalUnavailableNote appended when the retrieval backend never came up.
const retrievalUnavailableNote = " (base de conhecimento indisponível)"

const maxExcerptLen = 200

var queryWhitespaceRe = regexp.MustCompile(`\s+`)

// Portuguese/English stop words stripped for the degraded retry query.
var stopWords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "de": {}, "da": {}, "do": {},
	"das": {}, "dos": {}, "em": {}, "no": {}, "na": {}, "um": {}, "uma": {},
	"que": {}, "qual": {}, "quais": {}, "como": {}, "para": {}, "por": {},
	"com": {}, "e": {}, "é": {}, "ser": {}, "meu": {}, "minha": {},
	"the": {}, "what": {}, "how": {}, "is": {}, "are": {}, "of": {},
	"to": {}, "in": {}, "and": {}, "my": {}, "i": {},
}

// KnowledgeAgent answers questions from the knowledge base: cache first,
// then retrieval (with one degraded retry), then synthesis when available,
// falling back to an extractive summary. It never fails under expected
// conditions — every internal error degrades to a fixed answer.
type KnowledgeAgent struct {
	retriever Retriever
	synth     Synthesizer // nil when synthesis is not configured
	cache     Cache
	topK      int
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewKnowledgeAgent creates the knowledge agent. synth may be nil.
func NewKnowledgeAgent(retriever Retriever, synth Synthesizer, cache Cache, topK int, cacheTTL time.Duration, logger *zap.Logger) *KnowledgeAgent {
	if topK <= 0 {
		topK = 5
	}
	return &KnowledgeAgent{
		retriever: retriever,
		synth:     synth,
		cache:     cache,
		topK:      topK,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

func (a *KnowledgeAgent) Name() model.AgentName {
	return model.AgentKnowledge
}

// CanHandle accepts anything; the knowledge path is the default route.
func (a *KnowledgeAgent) CanHandle(string) bool {
	return true
}

type cachedAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Handle runs the knowledge pipeline. The returned error is always nil.
func (a *KnowledgeAgent) Handle(ctx context.Context, message string, actx Context, trail []model.AgentStep) (*model.ChatResponse, error) {
	start := time.Now()
	normalized := normalizeQuery(message)
	key := answerCacheKey(normalized)

	// Cache hit short-circuits before any retrieval call.
	if raw, ok, err := a.cache.Get(ctx, key); err == nil && ok {
		var cached cachedAnswer
		if json.Unmarshal([]byte(raw), &cached) == nil {
			a.logger.Info("knowledge answer served from cache",
				zap.String("agent", string(model.AgentKnowledge)),
				zap.String("conversation_id", actx.ConversationID),
				zap.Duration("execution_time", time.Since(start)))
			return a.respond(cached.Answer, cached.Sources, trail), nil
		}
	} else if err != nil {
		a.logger.Warn("answer cache unavailable", zap.Error(err))
	}

	passages := a.search(ctx, normalized)
	if len(passages) == 0 {
		if degraded := degradeQuery(normalized); degraded != "" && degraded != normalized {
			passages = a.search(ctx, degraded)
		}
	}

	if len(passages) == 0 {
		answer := NoInformationAnswer
		if !a.retriever.Ready() {
			answer += retrievalUnavailableNote
		}
		a.logger.Info("knowledge retrieval returned nothing",
			zap.String("agent", string(model.AgentKnowledge)),
			zap.String("conversation_id", actx.ConversationID),
			zap.Bool("retriever_ready", a.retriever.Ready()),
			zap.Duration("execution_time", time.Since(start)))
		return a.respond(answer, nil, trail), nil
	}

	answer := a.synthesize(ctx, message, passages)
	if answer == "" {
		answer = extractiveAnswer(passages)
	}
	sources := distinctSources(passages)

	if len(sources) > 0 {
		if payload, err := json.Marshal(cachedAnswer{Answer: answer, Sources: sources}); err == nil {
			if err := a.cache.SetEx(ctx, key, a.cacheTTL, string(payload)); err != nil {
				a.logger.Warn("failed to cache knowledge answer", zap.Error(err))
			}
		}
	}

	a.logger.Info("knowledge answer produced",
		zap.String("agent", string(model.AgentKnowledge)),
		zap.String("conversation_id", actx.ConversationID),
		zap.Int("passages", len(passages)),
		zap.Int("sources", len(sources)),
		zap.Bool("synthesized", a.synth != nil),
		zap.Duration("execution_time", time.Since(start)))

	return a.respond(answer, sources, trail), nil
}

func (a *KnowledgeAgent) respond(answer string, sources []string, trail []model.AgentStep) *model.ChatResponse {
	return &model.ChatResponse{
		Response:            answer,
		SourceAgentResponse: strings.Join(sources, " | "),
		AgentWorkflow:       appendStep(trail, model.AgentStep{Agent: model.AgentKnowledge}),
	}
}

// search wraps the retriever so that any failure reads as zero passages.
func (a *KnowledgeAgent) search(ctx context.Context, query string) []Passage {
	passages, err := a.retriever.Search(ctx, query, a.topK)
	if err != nil {
		a.logger.Warn("knowledge retrieval failed",
			zap.String("agent", string(model.AgentKnowledge)),
			zap.Error(err))
		return nil
	}
	return passages
}

// synthesize returns "" whenever synthesis is unconfigured or fails, which
// sends the caller down the extractive path.
func (a *KnowledgeAgent) synthesize(ctx context.Context, question string, passages []Passage) string {
	if a.synth == nil {
		return ""
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	answer, err := a.synth.Synthesize(ctx, question, texts)
	if err != nil {
		a.logger.Warn("answer synthesis failed, falling back to extractive summary",
			zap.String("agent", string(model.AgentKnowledge)),
			zap.Error(err))
		return ""
	}
	return strings.TrimSpace(answer)
}

// extractiveAnswer builds a bulleted list of leading excerpts.
func extractiveAnswer(passages []Passage) string {
	var b strings.Builder
	for _, p := range passages {
		excerpt := firstLines(p.Text, 3)
		if runes := []rune(excerpt); len(runes) > maxExcerptLen {
			excerpt = string(runes[:maxExcerptLen]) + "…"
		}
		b.WriteString("- ")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, " ")
}

func distinctSources(passages []Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	var out []string
	for _, p := range passages {
		if p.SourceURL == "" {
			continue
		}
		if _, ok := seen[p.SourceURL]; ok {
			continue
		}
		seen[p.SourceURL] = struct{}{}
		out = append(out, p.SourceURL)
	}
	return out
}

// normalizeQuery trims, lower-cases and collapses whitespace so cache keys
// are stable across trivial rephrasings.
func normalizeQuery(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	return queryWhitespaceRe.ReplaceAllString(s, " ")
}

func answerCacheKey(normalizedQuery string) string {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return "knowledge:answer:" + hex.EncodeToString(sum[:])
}

// degradeQuery strips stop words and punctuation, keeping bare keywords for
// a second retrieval attempt.
func degradeQuery(normalizedQuery string) string {
	fields := strings.FieldsFunc(normalizedQuery, func(r rune) bool {
		return r == ' ' || r == '?' || r == '!' || r == ',' || r == '.' || r == ';'
	})
	var keywords []string
	for _, f := range fields {
		if _, ok := stopWords[f]; ok {
			continue
		}
		keywords = append(keywords, f)
	}
	return strings.Join(keywords, " ")
}
