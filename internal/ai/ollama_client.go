package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal client for a local Ollama /api/chat endpoint.
type OllamaClient struct {
	httpClient *http.Client
	host       string
	policy     retryPolicy
}

// NewOllamaClient targets host, e.g. http://127.0.0.1:11434.
func NewOllamaClient(host string, p retryPolicy) *OllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: p.timeout},
		host:       strings.TrimRight(host, "/"),
		policy:     p,
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Generate sends a non-streaming chat request and maps the reply onto
// GenerateResponse so callers can treat both runtimes alike.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: req.Messages, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}
	payload, err := json.Marshal(oreq)
	if err != nil {
		return nil, err
	}

	var oresp ollamaChatResponse
	err = postJSON(ctx, c.httpClient, c.policy, c.host+"/api/chat", http.Header{}, payload, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&oresp)
	})
	if err != nil {
		return nil, err
	}
	return &GenerateResponse{
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: oresp.Message.Content}}},
		RequestID: fmt.Sprintf("ollama_%d", time.Now().UnixNano()),
	}, nil
}
