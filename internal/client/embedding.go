package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const embeddingURL = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"

// EmbeddingClient text-embedding client for document indexing and query
// encoding.
type EmbeddingClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewEmbeddingClient creates an embedding client.
func NewEmbeddingClient(apiKey, model string, logger *zap.Logger) *EmbeddingClient {
	return &EmbeddingClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model      string         `json:"model"`
	Input      embeddingInput `json:"input"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type embeddingInput struct {
	Texts []string `json:"texts"`
}

type embeddingResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// EmbedDocuments returns one vector per input text, in input order.
func (c *EmbeddingClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	return c.embed(ctx, texts, "document")
}

// EmbedQuery encodes a search query.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := c.embed(ctx, []string{query}, "query")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

func (c *EmbeddingClient) embed(ctx context.Context, texts []string, textType string) ([][]float64, error) {
	reqBody := embeddingRequest{
		Model: c.model,
		Input: embeddingInput{Texts: texts},
		Parameters: map[string]any{
			"text_type": textType, // document or query
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, embeddingURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float64, len(embResp.Output.Embeddings))
	for _, emb := range embResp.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", emb.TextIndex)
		}
		embeddings[emb.TextIndex] = emb.Embedding
	}

	c.logger.Debug("embeddings fetched",
		zap.Int("count", len(embeddings)),
		zap.Int("tokens", embResp.Usage.TotalTokens))

	return embeddings, nil
}
