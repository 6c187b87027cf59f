package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/model"
)

type fakeRetriever struct {
	ready    bool
	passages map[string][]Passage
	err      error

	mu      sync.Mutex
	queries []string
}

func (f *fakeRetriever) Ready() bool { return f.ready }

func (f *fakeRetriever) Search(_ context.Context, query string, _ int) ([]Passage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.passages[query], nil
}

func (f *fakeRetriever) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSynth struct {
	answer string
	err    error
	calls  int
}

func (f *fakeSynth) Synthesize(context.Context, string, []string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) SetEx(_ context.Context, key string, _ time.Duration, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[key] = value
	return nil
}

func newTestKnowledgeAgent(r Retriever, s Synthesizer, c Cache) *KnowledgeAgent {
	return NewKnowledgeAgent(r, s, c, 5, 30*time.Second, zap.NewNop())
}

func TestKnowledgeAgent_SynthesizedAnswerWithSources(t *testing.T) {
	retriever := &fakeRetriever{
		ready: true,
		passages: map[string][]Passage{
			"qual a taxa da maquininha?": {
				{Text: "Taxas da maquininha.", SourceURL: "https://ajuda.example.com/taxas", Score: 0.9},
				{Text: "Mais sobre taxas.", SourceURL: "https://ajuda.example.com/planos", Score: 0.8},
				{Text: "Duplicada.", SourceURL: "https://ajuda.example.com/taxas", Score: 0.7},
			},
		},
	}
	synth := &fakeSynth{answer: "A taxa depende do seu plano."}
	a := newTestKnowledgeAgent(retriever, synth, newFakeCache())

	resp, err := a.Handle(context.Background(), "Qual a taxa da maquininha?", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, "A taxa depende do seu plano.", resp.Response)
	require.Equal(t, "https://ajuda.example.com/taxas | https://ajuda.example.com/planos", resp.SourceAgentResponse)
	require.Equal(t, 1, synth.calls)
}

func TestKnowledgeAgent_CacheHitSkipsRetrieval(t *testing.T) {
	retriever := &fakeRetriever{
		ready: true,
		passages: map[string][]Passage{
			"como funciona o pix?": {
				{Text: "Pix é instantâneo.", SourceURL: "https://ajuda.example.com/pix", Score: 0.95},
			},
		},
	}
	a := newTestKnowledgeAgent(retriever, &fakeSynth{answer: "Pix cai na hora."}, newFakeCache())

	first, err := a.Handle(context.Background(), "Como funciona o Pix?", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, retriever.searchCount())

	// Same question up to case and spacing: answered from cache, retrieval
	// is not called again.
	second, err := a.Handle(context.Background(), "  como  funciona o PIX? ", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, retriever.searchCount())
	require.Equal(t, first.Response, second.Response)
	require.Equal(t, first.SourceAgentResponse, second.SourceAgentResponse)
}

func TestKnowledgeAgent_DegradedRetryQuery(t *testing.T) {
	retriever := &fakeRetriever{
		ready: true,
		passages: map[string][]Passage{
			// Only the stop-word-stripped form matches.
			"taxa maquininha": {
				{Text: "Taxas por plano.", SourceURL: "https://ajuda.example.com/taxas", Score: 0.9},
			},
		},
	}
	a := newTestKnowledgeAgent(retriever, nil, newFakeCache())

	resp, err := a.Handle(context.Background(), "Qual é a taxa da maquininha?", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, retriever.searchCount())
	require.Contains(t, resp.Response, "Taxas por plano.")
	require.Equal(t, "https://ajuda.example.com/taxas", resp.SourceAgentResponse)
}

func TestKnowledgeAgent_NoPassages(t *testing.T) {
	retriever := &fakeRetriever{ready: true}
	a := newTestKnowledgeAgent(retriever, &fakeSynth{answer: "unused"}, newFakeCache())

	resp, err := a.Handle(context.Background(), "alguma coisa inexistente", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, NoInformationAnswer, resp.Response)
	require.Empty(t, resp.SourceAgentResponse)
}

func TestKnowledgeAgent_RetrieverNotReady(t *testing.T) {
	retriever := &fakeRetriever{ready: false, err: errors.New("index warming up")}
	a := newTestKnowledgeAgent(retriever, nil, newFakeCache())

	resp, err := a.Handle(context.Background(), "qual a taxa?", Context{}, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp.Response, NoInformationAnswer))
	require.Contains(t, resp.Response, "indisponível")
}

func TestKnowledgeAgent_SynthesisFailureFallsBackToExtractive(t *testing.T) {
	retriever := &fakeRetriever{
		ready: true,
		passages: map[string][]Passage{
			"entrega": {
				{Text: "Prazo de entrega.\nAté 5 dias úteis.", SourceURL: "https://ajuda.example.com/entrega", Score: 0.9},
			},
		},
	}
	a := newTestKnowledgeAgent(retriever, &fakeSynth{err: errors.New("provider timeout")}, newFakeCache())

	resp, err := a.Handle(context.Background(), "entrega", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, "- Prazo de entrega. Até 5 dias úteis.", resp.Response)
	require.Equal(t, "https://ajuda.example.com/entrega", resp.SourceAgentResponse)
}

func TestKnowledgeAgent_CacheWrittenOnlyWithSources(t *testing.T) {
	cache := newFakeCache()
	retriever := &fakeRetriever{ready: true}
	a := newTestKnowledgeAgent(retriever, nil, cache)

	_, err := a.Handle(context.Background(), "pergunta sem resposta", Context{}, nil)
	require.NoError(t, err)
	require.Zero(t, cache.sets)

	retriever.passages = map[string][]Passage{
		"pergunta respondida": {
			{Text: "Resposta.", SourceURL: "https://ajuda.example.com/x", Score: 0.9},
		},
	}
	_, err = a.Handle(context.Background(), "pergunta respondida", Context{}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)
}

func TestKnowledgeAgent_CacheOutageIsNotFatal(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	retriever := &fakeRetriever{
		ready: true,
		passages: map[string][]Passage{
			"pix": {{Text: "Pix.", SourceURL: "https://ajuda.example.com/pix", Score: 0.9}},
		},
	}
	a := newTestKnowledgeAgent(retriever, nil, cache)

	resp, err := a.Handle(context.Background(), "pix", Context{}, nil)
	require.NoError(t, err)
	require.NotEqual(t, NoInformationAnswer, resp.Response)
}

func TestKnowledgeAgent_AppendsOwnHop(t *testing.T) {
	retriever := &fakeRetriever{ready: true}
	a := newTestKnowledgeAgent(retriever, nil, newFakeCache())
	trail := []model.AgentStep{{Agent: model.AgentRouter, Decision: model.AgentKnowledge}}

	resp, err := a.Handle(context.Background(), "qualquer coisa", Context{}, nil)
	require.NoError(t, err)
	require.Len(t, resp.AgentWorkflow, 1)
	require.Equal(t, model.AgentKnowledge, resp.AgentWorkflow[0].Agent)

	resp, err = a.Handle(context.Background(), "qualquer coisa", Context{}, trail)
	require.NoError(t, err)
	require.Len(t, resp.AgentWorkflow, 2)
	require.Equal(t, model.AgentRouter, resp.AgentWorkflow[0].Agent)
	require.Equal(t, model.AgentKnowledge, resp.AgentWorkflow[1].Agent)
	require.Len(t, trail, 1)
}

func TestDegradeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"qual é a taxa da maquininha?", "taxa maquininha"},
		{"como funciona o pix?", "funciona pix"},
		{"maquininha", "maquininha"},
		{"o que é?", ""},
	}
	for _, tt := range tests {
		if got := degradeQuery(tt.in); got != tt.want {
			t.Errorf("degradeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
