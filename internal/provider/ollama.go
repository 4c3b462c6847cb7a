package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig holds Ollama embedding client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the embedding model name (default: nomic-embed-text)
	Model string

	// Timeout is the request timeout duration (default: 30s)
	Timeout time.Duration
}

// OllamaClient implements EmbeddingGenerator against a local Ollama server.
// The /api/embed endpoint accepts both a single string and an array input
// and returns embeddings in input order.
type OllamaClient struct {
	baseURL        string
	model          string
	timeout        time.Duration
	client         *http.Client
	circuitBreaker *CircuitBreaker
}

// NewOllamaClient creates a new Ollama embedding client with defaults applied.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &OllamaClient{
		baseURL: config.BaseURL,
		model:   config.Model,
		timeout: config.Timeout,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		circuitBreaker: NewCircuitBreaker(),
	}
}

// embedRequest represents the request body for the /api/embed endpoint.
type embedRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"`
}

// embedResponse represents the response from the /api/embed endpoint.
// The embeddings field is always a 2D array, even for single input.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding vector for the given text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}

	vecs, err := c.embedInput(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for all texts in one call. Ollama returns
// embeddings in input order.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return c.embedInput(ctx, texts, len(texts))
}

func (c *OllamaClient) embedInput(ctx context.Context, input interface{}, want int) ([][]float32, error) {
	result, err := c.circuitBreaker.Execute(ctx, func() (interface{}, error) {
		return c.embed(ctx, input, want)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: ollama embedding circuit breaker open", ErrTransient)
		}
		return nil, err
	}
	return result.([][]float32), nil
}

func (c *OllamaClient) embed(ctx context.Context, input interface{}, want int) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := embedRequest{
		Model: c.model,
		Input: input,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	var respData embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrTransient, err)
	}

	if len(respData.Embeddings) != want {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrTransient, want, len(respData.Embeddings))
	}
	for i, vec := range respData.Embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrTransient, i)
		}
	}

	return respData.Embeddings, nil
}

// GetModel returns the configured model name.
func (c *OllamaClient) GetModel() string {
	return c.model
}

// Compile-time assertion.
var _ EmbeddingGenerator = (*OllamaClient)(nil)
