package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	json "github.com/goccy/go-json"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var got ollamaChatRequest
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{"role": "assistant", "content": "hello from ollama"},
			"done":    true,
		})
	}))

	c := NewOllamaClient(srv.URL, fastPolicy(1))
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 16})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text() != "hello from ollama" || resp.RequestID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got.Stream || got.Options["num_predict"] != 16.0 {
		t.Fatalf("request not mapped: %+v", got)
	}
}

func TestOllamaGenerateErrors(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model 'nope' not found"})
	}))
	c := NewOllamaClient(srv.URL, fastPolicy(1))
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: []Message{{Role: "user", Content: "hi"}}})
	var mnf *ModelNotFoundError
	if !errors.As(err, &mnf) || mnf.Message != "model 'nope' not found" {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}

	_, err = c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest"})
	if err == nil || err.Error() != "messages cannot be empty" {
		t.Fatalf("expected 'messages cannot be empty' error, got: %v", err)
	}
}

func TestOllamaUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", fastPolicy(1))
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T %v", err, err)
	}
}
