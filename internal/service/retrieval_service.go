package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/agentswarm/agentswarm-go/internal/agent"
	"github.com/agentswarm/agentswarm-go/internal/vectorstore"
)

// Embedder the embedding capability the retrieval service depends on.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
}

// RetrievalService turns a text query into ranked passages: query embedding
// plus cosine search over the in-memory index. The index is seeded lazily
// on first use; a single in-flight initialization is shared by all callers
// and failure leaves the service in a not-ready state that the knowledge
// agent degrades around.
type RetrievalService struct {
	embedder Embedder
	store    *vectorstore.MemoryVectorStore
	minScore float64
	logger   *zap.Logger

	initOnce sync.Once
	ready    atomic.Bool
}

// NewRetrievalService creates the retrieval service.
func NewRetrievalService(embedder Embedder, store *vectorstore.MemoryVectorStore, minScore float64, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		minScore: minScore,
		logger:   logger,
	}
}

// Ready reports whether the knowledge index has been built.
func (s *RetrievalService) Ready() bool {
	return s.ready.Load()
}

// Init builds the knowledge index. Safe to call concurrently and more than
// once; only the first call does work.
func (s *RetrievalService) Init(ctx context.Context) error {
	var initErr error
	s.initOnce.Do(func() {
		initErr = s.seed(ctx)
		if initErr == nil {
			s.ready.Store(true)
		}
	})
	if initErr != nil {
		return initErr
	}
	if !s.ready.Load() {
		return fmt.Errorf("knowledge index unavailable")
	}
	return nil
}

// Search embeds the query and returns the top-k passages above the score
// floor.
func (s *RetrievalService) Search(ctx context.Context, query string, topK int) ([]agent.Passage, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(queryVector, topK, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	passages := make([]agent.Passage, len(results))
	for i, r := range results {
		passages[i] = agent.Passage{
			Text:      r.Document.Content,
			SourceURL: r.Document.SourceURL,
			Score:     r.Score,
		}
	}

	s.logger.Debug("retrieval finished",
		zap.String("query", query),
		zap.Int("results", len(passages)))

	return passages, nil
}

// seed embeds and indexes the built-in help-center articles.
func (s *RetrievalService) seed(ctx context.Context) error {
	articles := defaultKnowledgeBase()

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed knowledge base: %w", err)
	}
	if len(vectors) != len(articles) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(articles))
	}

	docs := make([]vectorstore.Document, len(articles))
	for i, a := range articles {
		docs[i] = vectorstore.Document{
			ID:        a.ID,
			Content:   a.Content,
			SourceURL: a.SourceURL,
			Vector:    vectors[i],
			Metadata:  a.Metadata,
		}
	}

	if err := s.store.AddDocuments(docs); err != nil {
		return fmt.Errorf("failed to index knowledge base: %w", err)
	}

	s.logger.Info("knowledge base seeded", zap.Int("documents", len(docs)))
	return nil
}

type knowledgeArticle struct {
	ID        string
	Content   string
	SourceURL string
	Metadata  map[string]string
}

// defaultKnowledgeBase the built-in help-center articles for the payments
// assistant.
func defaultKnowledgeBase() []knowledgeArticle {
	return []knowledgeArticle{
		{
			ID: "maquininha-taxas",
			Content: "Taxas da maquininha: no débito a taxa é de 1,37% por transação. " +
				"No crédito à vista a taxa é de 3,15% e no parcelado em até 12x a taxa varia " +
				"de 4,20% a 12,40% conforme o número de parcelas. Não há mensalidade nem taxa de adesão.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/taxas-da-maquininha",
			Metadata:  map[string]string{"category": "taxas"},
		},
		{
			ID: "maquininha-entrega",
			Content: "Prazo de entrega da maquininha: após a aprovação do cadastro, a maquininha é " +
				"enviada em até 2 dias úteis. O prazo de entrega é de 3 a 7 dias úteis conforme a região. " +
				"O código de rastreio é enviado por e-mail e pode ser consultado no aplicativo.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/entrega-da-maquininha",
			Metadata:  map[string]string{"category": "entrega"},
		},
		{
			ID: "recebimento-prazos",
			Content: "Prazos de recebimento: vendas no débito caem na conta em 1 dia útil. " +
				"Vendas no crédito podem ser recebidas em 1 dia útil com antecipação automática " +
				"ou em 30 dias sem antecipação. A antecipação pode ser configurada no aplicativo.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/prazos-de-recebimento",
			Metadata:  map[string]string{"category": "recebimento"},
		},
		{
			ID: "pix-gratuito",
			Content: "Pix na maquininha e no aplicativo: receber por Pix é gratuito e o valor cai " +
				"na hora, todos os dias da semana. O QR Code pode ser gerado na maquininha ou " +
				"compartilhado pelo aplicativo.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/pix",
			Metadata:  map[string]string{"category": "pix"},
		},
		{
			ID: "cartao-virtual",
			Content: "Cartão virtual: a conta digital inclui um cartão virtual sem anuidade para " +
				"compras online. O cartão é emitido na hora pelo aplicativo e pode ser bloqueado " +
				"e desbloqueado a qualquer momento.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/cartao-virtual",
			Metadata:  map[string]string{"category": "conta"},
		},
		{
			ID: "suporte-contato",
			Content: "Canais de atendimento: o suporte funciona todos os dias, das 8h às 22h, pelo " +
				"chat do aplicativo e pelo e-mail ajuda@pagueleve.com. Para assuntos urgentes, " +
				"como bloqueio de conta, o chat é o canal mais rápido.",
			SourceURL: "https://ajuda.pagueleve.com/pt-BR/atendimento",
			Metadata:  map[string]string{"category": "suporte"},
		},
	}
}
