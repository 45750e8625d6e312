// Package ideexec shapes the boundary between the core and the IDE-side
// tool executor (spec §6): encoding an IDE-bound tool call and decoding
// its eventual result in A2A envelope terms, and tracking which calls
// are still outstanding.
//
// The executor itself is out of scope — it is a remote collaborator
// reachable only through the transport's tool_call chunk and its
// POST /tool-results callback. This package never dials out to it.
package ideexec

import (
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// EncodeCall renders a tool call as an A2A message carrying a single
// DataPart, giving the chunk payload the same envelope shape the rest
// of the agent-to-agent surface uses.
func EncodeCall(call models.ToolCall) *a2a.Message {
	return a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{
		Data: map[string]any{
			"call_id":   call.ID,
			"name":      call.Name,
			"arguments": call.Arguments,
		},
	})
}

// DecodeResult extracts a ToolResult from the DataPart of an IDE
// callback message. Returns an error if the message carries no
// DataPart or is missing call_id/result.
func DecodeResult(msg *a2a.Message) (models.ToolResult, error) {
	if msg == nil {
		return models.ToolResult{}, fmt.Errorf("ideexec: nil result message")
	}
	for _, part := range msg.Parts {
		dp, ok := part.(a2a.DataPart)
		if !ok {
			continue
		}
		callID, _ := dp.Data["call_id"].(string)
		if callID == "" {
			continue
		}
		content, _ := dp.Data["result"].(string)
		isError, _ := dp.Data["is_error"].(bool)
		return models.ToolResult{CallID: callID, Content: content, IsError: isError}, nil
	}
	return models.ToolResult{}, fmt.Errorf("ideexec: result message carries no usable DataPart")
}
