package vectorstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Document one knowledge passage with its embedding and provenance.
type Document struct {
	ID        string
	Content   string
	SourceURL string
	Vector    []float64
	Metadata  map[string]string
}

// SearchResult one ranked passage.
type SearchResult struct {
	Document Document
	Score    float64 // cosine similarity, 0-1
}

// MemoryVectorStore in-memory vector index with cosine-similarity search.
type MemoryVectorStore struct {
	documents map[string]*Document
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMemoryVectorStore creates an empty store.
func NewMemoryVectorStore(logger *zap.Logger) *MemoryVectorStore {
	return &MemoryVectorStore{
		documents: make(map[string]*Document),
		logger:    logger,
	}
}

// AddDocument indexes one document.
func (s *MemoryVectorStore) AddDocument(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if len(doc.Vector) == 0 {
		return fmt.Errorf("document vector cannot be empty")
	}

	s.documents[doc.ID] = &doc
	s.logger.Debug("document indexed", zap.String("id", doc.ID), zap.Int("dimension", len(doc.Vector)))
	return nil
}

// AddDocuments indexes a batch.
func (s *MemoryVectorStore) AddDocuments(docs []Document) error {
	for _, doc := range docs {
		if err := s.AddDocument(doc); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the top-k documents by cosine similarity, filtered by
// minScore.
func (s *MemoryVectorStore) Search(queryVector []float64, topK int, minScore float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	results := make([]SearchResult, 0, len(s.documents))
	for _, doc := range s.documents {
		score := cosineSimilarity(queryVector, doc.Vector)
		if score >= minScore {
			results = append(results, SearchResult{Document: *doc, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Count reports how many documents are indexed.
func (s *MemoryVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (normA * normB)
}
