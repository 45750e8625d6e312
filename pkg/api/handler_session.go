package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
)

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	maxMessages := req.MaxMessages
	if maxMessages <= 0 {
		maxMessages = s.defaultMaxMessages
	}

	conv, err := s.conversations.Create(c.Request().Context(), uuid.New().String(), req.Title, req.Description, maxMessages)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toConversationResponse(conv))
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	conv, err := s.conversations.Get(c.Request().Context(), conversationID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toConversationResponse(conv))
}

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	page, pageSize := 1, 25
	if v := c.QueryParam("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := c.QueryParam("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}

	convs, err := s.conversations.FindActive(c.Request().Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		return mapError(err)
	}
	out := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		out[i] = toConversationResponse(conv)
	}
	return c.JSON(http.StatusOK, &ConversationListResponse{Conversations: out, Page: page, PageSize: pageSize})
}
