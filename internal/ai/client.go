package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// Client talks to an OpenAI-compatible /chat/completions endpoint
// (OpenRouter by default).
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	policy     retryPolicy
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, or "" when there is none.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NewClient builds a client for baseURL; an empty baseURL means OpenRouter.
func NewClient(apiKey, baseURL string, p retryPolicy) *Client {
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: p.timeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		policy:     p,
	}
}

// Generate sends one chat completion request.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New("api key is missing (set INSIGHTLOOM_API_KEY or run 'insightloom config set api_key ...')")
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	h.Set("HTTP-Referer", "https://github.com/KaramelBytes/insightloom")
	h.Set("X-Title", "insightloom")

	var out GenerateResponse
	err = postJSON(ctx, c.httpClient, c.policy, c.baseURL+"/chat/completions", h, payload, func(resp *http.Response) error {
		out.RequestID = requestID(resp)
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
