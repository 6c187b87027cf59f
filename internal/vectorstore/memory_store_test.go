package vectorstore

import (
	"math"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *MemoryVectorStore {
	t.Helper()
	s := NewMemoryVectorStore(zap.NewNop())
	docs := []Document{
		{ID: "a", Content: "taxas", SourceURL: "https://example.com/a", Vector: []float64{1, 0, 0}},
		{ID: "b", Content: "entrega", SourceURL: "https://example.com/b", Vector: []float64{0.9, 0.1, 0}},
		{ID: "c", Content: "pix", SourceURL: "https://example.com/c", Vector: []float64{0, 1, 0}},
	}
	if err := s.AddDocuments(docs); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	return s
}

func TestSearch_RankedByCosine(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search([]float64{1, 0, 0}, 3, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Document.ID != "a" || results[1].Document.ID != "b" || results[2].Document.ID != "c" {
		t.Errorf("unexpected ranking: %s, %s, %s",
			results[0].Document.ID, results[1].Document.ID, results[2].Document.ID)
	}
	if results[0].Score < results[1].Score || results[1].Score < results[2].Score {
		t.Error("scores are not descending")
	}
	if math.Abs(results[0].Score-1) > 1e-9 {
		t.Errorf("identical vector score = %v, want 1", results[0].Score)
	}
}

func TestSearch_TopKAndMinScore(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search([]float64{1, 0, 0}, 1, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Document.ID != "a" {
		t.Errorf("topK=1 returned %v", results)
	}

	// Orthogonal document "c" falls below the threshold.
	results, err = s.Search([]float64{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("minScore filter kept %d results, want 2", len(results))
	}
}

func TestSearch_EmptyQueryVector(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Search(nil, 3, 0); err == nil {
		t.Error("expected error for empty query vector")
	}
}

func TestAddDocument_Validation(t *testing.T) {
	s := NewMemoryVectorStore(zap.NewNop())

	if err := s.AddDocument(Document{ID: "", Vector: []float64{1}}); err == nil {
		t.Error("expected error for empty ID")
	}
	if err := s.AddDocument(Document{ID: "x"}); err == nil {
		t.Error("expected error for empty vector")
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}

	if err := s.AddDocument(Document{ID: "x", Vector: []float64{1}}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	// Re-adding the same ID overwrites, not duplicates.
	if err := s.AddDocument(Document{ID: "x", Vector: []float64{0, 1}}); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"dimension mismatch", []float64{1, 0}, []float64{1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
