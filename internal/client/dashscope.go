package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const generationURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// NoInformationSentinel the fixed answer the synthesis prompt demands when
// the supplied passages do not contain the answer.
const NoInformationSentinel = "Não tenho essa informação."

// DashScopeClient text-generation client, used as the optional answer
// synthesis capability of the knowledge path.
type DashScopeClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDashScopeClient creates a text-generation client.
func NewDashScopeClient(apiKey, model string, logger *zap.Logger) *DashScopeClient {
	return &DashScopeClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Message one chat turn
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

type chatRequest struct {
	Model      string     `json:"model"`
	Input      chatInput  `json:"input"`
	Parameters chatParams `json:"parameters,omitempty"`
}

type chatInput struct {
	Messages []Message `json:"messages"`
}

type chatParams struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Output struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// Chat runs one completion over the given messages.
func (c *DashScopeClient) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Input: chatInput{Messages: messages},
		Parameters: chatParams{
			Temperature: 0.3,
			MaxTokens:   800,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, generationURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("completion finished",
		zap.String("request_id", chatResp.RequestID),
		zap.Int("output_tokens", chatResp.Usage.OutputTokens))

	return chatResp.Output.Text, nil
}

// Synthesize produces a direct answer to question grounded exclusively in
// the supplied passages. The prompt forbids mentioning source URLs inline
// and pins a fixed sentinel answer for insufficient evidence.
func (c *DashScopeClient) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	systemPrompt := "Você é um assistente de atendimento. Responda à pergunta do usuário " +
		"usando exclusivamente os trechos fornecidos. Não cite URLs nem fontes no texto da resposta. " +
		"Se os trechos não contiverem a resposta, responda exatamente: \"" + NoInformationSentinel + "\""

	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "Trecho %d:\n%s\n\n", i+1, p)
	}
	b.WriteString("Pergunta: ")
	b.WriteString(question)

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}

	answer, err := c.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
