// Package llmclient calls the internal LLM proxy's chat-completions
// endpoint, implementing pkg/llmturn.LLMClient and pkg/agent.ChatClient.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/agent"
	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// Doer is the retry/backoff-capable transport this client issues
// requests through. Satisfied by *http.Client and *RetryingDoer.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls POST /v1/chat/completions on the internal LLM proxy
// (spec §6), authenticated with a static internal key header rather
// than a per-provider API key.
type Client struct {
	http    Doer
	baseURL string
	apiKey  string
}

// New builds a Client. baseURL is the proxy root (e.g.
// "http://localhost:8091"); requests are issued against
// baseURL+"/v1/chat/completions".
func New(httpClient Doer, baseURL, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type wireMessage struct {
	Role       string               `json:"role"`
	Content    *string              `json:"content,omitempty"`
	Name       *string              `json:"name,omitempty"`
	ToolCallID *string              `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCallAssist `json:"tool_calls,omitempty"`
}

type wireToolCallAssist struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireFunctionRef `json:"function"`
}

type wireFunctionRef struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ChatCompletion implements llmturn.LLMClient.
func (c *Client) ChatCompletion(ctx context.Context, req llmturn.ChatRequest) (llmturn.ChatResponse, error) {
	wireReq := chatRequest{
		Model:       req.Model,
		Messages:    toWireMessages(req.Messages),
		Tools:       toWireTools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	body, err := json.Marshal(wireReq)
	if err != nil {
		return llmturn.ChatResponse{}, fmt.Errorf("encoding chat completion request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return llmturn.ChatResponse{}, err
	}

	if len(resp.Choices) == 0 {
		return llmturn.ChatResponse{}, fmt.Errorf("%w: proxy returned no choices", errProviderFault)
	}
	choice := resp.Choices[0]

	toolCalls := make([]llmturn.ChatToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return llmturn.ChatResponse{}, fmt.Errorf("parsing tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		toolCalls = append(toolCalls, llmturn.ChatToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	return llmturn.ChatResponse{
		Content:   content,
		ToolCalls: toolCalls,
		Usage: llmturn.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: choice.FinishReason,
	}, nil
}

// Complete implements pkg/agent.ChatClient, the simpler single-string
// contract the classifier and architect need — no tools, no usage.
func (c *Client) Complete(ctx context.Context, model string, messages []agent.ChatMessage) (string, error) {
	msgs := make([]models.Message, len(messages))
	for i, m := range messages {
		msgs[i] = models.Message{Role: models.Role(m.Role), Content: strPtr(m.Content)}
	}
	resp, err := c.ChatCompletion(ctx, llmturn.ChatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) do(ctx context.Context, body []byte) (chatResponse, error) {
	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return chatResponse{}, fmt.Errorf("building chat completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Internal-Auth", c.apiKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return chatResponse{}, fmt.Errorf("calling llm proxy: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return chatResponse{}, fmt.Errorf("reading llm proxy response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var envelope apiErrorEnvelope
		_ = json.Unmarshal(raw, &envelope)
		msg := envelope.Error.Message
		if msg == "" {
			msg = string(raw)
		}
		return chatResponse{}, fmt.Errorf("%w: llm proxy returned %d: %s", errProviderFault, httpResp.StatusCode, msg)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return chatResponse{}, fmt.Errorf("%w: parsing llm proxy response: %v", errProviderFault, err)
	}
	return resp, nil
}

func toWireMessages(messages []models.Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{Role: string(m.Role), Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCallAssist{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionRef{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		out[i] = wm
	}
	return out
}

func toWireTools(specs []models.ToolSpec) []wireTool {
	out := make([]wireTool, len(specs))
	for i, s := range specs {
		out[i] = wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  json.RawMessage(s.ParametersRaw),
			},
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

// requestTimeout is the per-request timeout (spec §5: "LLM calls have a
// per-request timeout configured at the provider client") that
// NewRetryingDoer gives the http.Client it builds when passed nil. A
// caller-supplied http.Client keeps its own Timeout.
const requestTimeout = 60 * time.Second
