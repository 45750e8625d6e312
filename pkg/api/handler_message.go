package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// sendMessageHandler handles POST /api/v1/sessions/:id/messages. The
// response body is a stream of StreamChunk JSON lines (spec §6):
// the facade's output is forwarded to the wire as each chunk is
// produced rather than buffered, same producer/consumer split as
// stream.Collect but writing straight through instead of accumulating.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	return s.streamFrom(c, conversationID, func(w *stream.Writer) error {
		return s.messages.HandleMessage(c.Request().Context(), conversationID, req.Message, w)
	})
}

// toolResultHandler handles POST /api/v1/sessions/:id/tool-results.
func (s *Server) toolResultHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req ToolResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.CallID == "" || req.ToolCallID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "callId and toolCallId are required")
	}

	return s.streamFrom(c, conversationID, func(w *stream.Writer) error {
		return s.messages.HandleToolResult(c.Request().Context(), conversationID, req.CallID, req.ToolCallID, req.Result, req.IsError, w)
	})
}

// toolDecisionHandler handles POST /api/v1/sessions/:id/tool-decision.
// modifiedArguments isn't wired: the approval subsystem resolves a
// decision against the call as originally issued, and there's no
// revision path back into the suspended tool call yet (same class of
// gap as the plan-modification hook).
func (s *Server) toolDecisionHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req ToolDecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ApprovalRequestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "approvalRequestId is required")
	}

	return s.streamFrom(c, conversationID, func(w *stream.Writer) error {
		return s.messages.HandleToolDecision(c.Request().Context(), conversationID, req.ApprovalRequestID, req.Decision, req.Reason, w)
	})
}

// planDecisionHandler handles POST /api/v1/sessions/:id/plan-decision.
func (s *Server) planDecisionHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req PlanDecisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ApprovalRequestID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "approvalRequestId is required")
	}

	return s.streamFrom(c, conversationID, func(w *stream.Writer) error {
		return s.messages.HandlePlanDecision(c.Request().Context(), conversationID, req.ApprovalRequestID, req.Decision, req.Feedback, w)
	})
}

// streamFrom runs produce on its own goroutine and writes each chunk it
// emits to the response as a newline-delimited JSON document, flushing
// after every line so the caller sees chunks as they happen rather than
// buffered until the connection closes.
func (s *Server) streamFrom(c *echo.Context, conversationID string, produce func(w *stream.Writer) error) error {
	resp := c.Response()
	resp.Header().Set("Content-Type", "application/x-ndjson")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	flusher, canFlush := any(resp).(http.Flusher)

	w := stream.NewWriter(16)
	errCh := make(chan error, 1)
	go func() {
		defer w.Close()
		errCh <- produce(w)
	}()

	enc := json.NewEncoder(resp)
	for chunk := range w.Chunks() {
		if err := enc.Encode(chunk); err != nil {
			slog.Error("writing stream chunk", "conversation_id", conversationID, "error", err)
			break
		}
		if canFlush {
			flusher.Flush()
		}
	}

	if err := <-errCh; err != nil {
		slog.Error("handling streamed request", "conversation_id", conversationID, "error", err)
	}
	return nil
}
