package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var captured ollamaChatRequest
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "hello from ollama"},
			"prompt_eval_count": 12,
			"eval_count":        3,
		})
	})

	c := NewOllamaClient(srv.URL, 2*time.Second)
	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant"},
		{Role: "user", Content: "Hello"},
	}
	resp, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: messages, MaxTokens: 16, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hello from ollama", resp.Content())
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, ollamaChatMessage{Role: "system", Content: "You are a helpful assistant"}, captured.Messages[0])
	assert.False(t, captured.Stream)
	assert.Equal(t, "json", captured.Format)
	assert.EqualValues(t, 16, captured.Options["num_predict"])
}

func TestOllamaGenerateErrorsAreSingleShot(t *testing.T) {
	cases := map[int]func(error) bool{
		http.StatusBadRequest: func(err error) bool { var e *BadRequestError; return assert.ErrorAs(t, err, &e) },
		http.StatusNotFound:   func(err error) bool { var e *ModelNotFoundError; return assert.ErrorAs(t, err, &e) },
		http.StatusBadGateway: func(err error) bool { var e *ServerError; return assert.ErrorAs(t, err, &e) },
	}
	for status, check := range cases {
		srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "nope"})
		})
		c := NewOllamaClient(srv.URL, 2*time.Second)
		_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest", Messages: []Message{{Role: "user", Content: "hi"}}})
		check(err)
		assert.Contains(t, err.Error(), "nope")
		assert.EqualValues(t, 1, srv.hits.Load())
	}
}

func TestOllamaGenerateEmptyMessages(t *testing.T) {
	c := NewOllamaClient("", 0)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "llama3:latest"})
	assert.EqualError(t, err, "messages cannot be empty")
}

func TestOllamaListModels(t *testing.T) {
	srv := newIPv4Server(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": "llama3:latest"}, {"name": "phi3:mini"}}})
	})
	names, err := NewOllamaClient(srv.URL+"/", time.Second).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "phi3:mini"}, names)
}
