package agent

import "context"

// ChatMessage is a minimal role/content pair, enough to prompt the
// classifier and the architect — neither ever issues or reads tool
// calls, so this is narrower than llmturn.ChatRequest.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatClient is the narrow completion contract the classifier and the
// architect need.
type ChatClient interface {
	Complete(ctx context.Context, model string, messages []ChatMessage) (string, error)
}
