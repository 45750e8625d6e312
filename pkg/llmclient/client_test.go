package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/agent"
	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ChatCompletion_SendsInternalAuthHeaderAndParsesContent(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Internal-Auth")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello there"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12},
		})
	}))
	defer srv.Close()

	c := New(&http.Client{Timeout: 5 * time.Second}, srv.URL, "secret-key")
	resp, err := c.ChatCompletion(context.Background(), llmturn.ChatRequest{
		Model:    "gpt-test",
		Messages: []models.Message{{Role: models.RoleUser, Content: strPtr("hi")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestClient_ChatCompletion_ParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": nil,
						"tool_calls": []map[string]any{
							{"id": "call-1", "function": map[string]any{"name": "read_file", "arguments": `{"path":"a.py"}`}},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	}))
	defer srv.Close()

	c := New(&http.Client{Timeout: 5 * time.Second}, srv.URL, "key")
	resp, err := c.ChatCompletion(context.Background(), llmturn.ChatRequest{Model: "gpt-test"})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "read_file", resp.ToolCalls[0].Name)
	assert.Equal(t, "a.py", resp.ToolCalls[0].Arguments["path"])
}

func TestClient_ChatCompletion_NonOKStatusReturnsProviderFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid model"}})
	}))
	defer srv.Close()

	c := New(&http.Client{Timeout: 5 * time.Second}, srv.URL, "key")
	_, err := c.ChatCompletion(context.Background(), llmturn.ChatRequest{Model: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestClient_Complete_SatisfiesAgentChatClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "classified"}}},
		})
	}))
	defer srv.Close()

	var _ agent.ChatClient = (*Client)(nil)

	c := New(&http.Client{Timeout: 5 * time.Second}, srv.URL, "key")
	got, err := c.Complete(context.Background(), "gpt-test", []agent.ChatMessage{{Role: "user", Content: "classify this"}})
	require.NoError(t, err)
	assert.Equal(t, "classified", got)
}

func TestRetryingDoer_RetriesOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	doer := NewRetryingDoer(&http.Client{Timeout: 5 * time.Second}, 3, time.Millisecond, 10*time.Millisecond)
	c := New(doer, srv.URL, "key")
	resp, err := c.ChatCompletion(context.Background(), llmturn.ChatRequest{Model: "gpt-test"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, attempts)
}

func TestRetryingDoer_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	doer := NewRetryingDoer(&http.Client{Timeout: 5 * time.Second}, 2, time.Millisecond, 5*time.Millisecond)
	c := New(doer, srv.URL, "key")
	_, err := c.ChatCompletion(context.Background(), llmturn.ChatRequest{Model: "gpt-test"})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}
