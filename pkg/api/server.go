// Package api provides the echo v5 HTTP transport for the orchestration
// runtime: session lifecycle, the streaming message endpoint, tool and
// plan decision endpoints, and the WebSocket live-view (spec §6).
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/agentrt/pkg/events"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/observability"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
	"github.com/codeready-toolchain/agentrt/pkg/version"
)

// Conversations is the narrow conversation-store surface the transport
// needs for session lifecycle endpoints, distinct from facade.Conversations
// which only needs Get/AppendMessage.
type Conversations interface {
	Create(ctx context.Context, id string, title, description *string, maxMessages int) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	FindActive(ctx context.Context, limit, offset int) ([]models.Conversation, error)
}

// MessageHandler is the facade surface every request-handling endpoint
// drives. Satisfied by *facade.Facade.
type MessageHandler interface {
	HandleMessage(ctx context.Context, conversationID, message string, w *stream.Writer) error
	HandleToolResult(ctx context.Context, conversationID, callID, toolCallID, result string, isError bool, w *stream.Writer) error
	HandleToolDecision(ctx context.Context, conversationID, approvalRequestID, decision string, reason *string, w *stream.Writer) error
	HandlePlanDecision(ctx context.Context, conversationID, approvalRequestID, decision string, reason *string, w *stream.Writer) error
}

// AgentStats is the read surface behind the supplemented agent-stats
// endpoint (§5 of SPEC_FULL.md).
type AgentStats interface {
	GetUsageStats(ctx context.Context) (map[string]int, error)
}

// Server is the HTTP API server.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	conversations Conversations
	messages    MessageHandler
	agentStats  AgentStats
	connManager *events.ConnectionManager
	obs         *observability.Manager
	defaultMaxMessages int
}

// NewServer builds a Server and registers its routes. connManager and
// obs may be nil; the WebSocket and /metrics routes are simply omitted
// in that case.
func NewServer(
	conversations Conversations,
	messages MessageHandler,
	agentStats AgentStats,
	connManager *events.ConnectionManager,
	obs *observability.Manager,
	defaultMaxMessages int,
) *Server {
	e := echo.New()

	s := &Server{
		echo:               e,
		conversations:      conversations,
		messages:           messages,
		agentStats:         agentStats,
		connManager:        connManager,
		obs:                obs,
		defaultMaxMessages: defaultMaxMessages,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	if s.obs != nil {
		s.echo.Use(observability.HTTPMiddleware(observability.GetTracer("agentrt/api"), s.obs.Metrics()))
	}

	s.echo.GET("/health", s.healthHandler)
	if s.obs != nil {
		s.echo.GET(s.obs.MetricsEndpoint(), s.metricsHandler)
	}

	v1 := s.echo.Group("/api/v1")

	// Static paths before :id params, same ordering discipline as the
	// teacher's session routes.
	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.POST("/sessions/:id/messages", s.sendMessageHandler)
	v1.POST("/sessions/:id/tool-results", s.toolResultHandler)
	v1.POST("/sessions/:id/tool-decision", s.toolDecisionHandler)
	v1.POST("/sessions/:id/plan-decision", s.planDecisionHandler)

	v1.GET("/system/agent-stats", s.agentStatsHandler)

	if s.connManager != nil {
		v1.GET("/ws", s.wsHandler)
	}
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy", Version: version.Full()})
}

func (s *Server) metricsHandler(c *echo.Context) error {
	s.obs.MetricsHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// wsHandler upgrades to a WebSocket connection and delegates to the
// connection manager, blocking for the connection's lifetime.
func (s *Server) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return err
	}
	s.connManager.HandleConnection(c.Request().Context(), conn)
	return nil
}

func toConversationResponse(conv models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           conv.ID,
		Title:        conv.Title,
		Description:  conv.Description,
		IsActive:     conv.IsActive,
		LastActivity: conv.LastActivity.Format(time.RFC3339Nano),
		CreatedAt:    conv.CreatedAt.Format(time.RFC3339Nano),
		Messages:     conv.Messages,
	}
}
