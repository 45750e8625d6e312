package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// agentStatsHandler handles GET /api/v1/system/agent-stats, a
// supplemented endpoint: how many conversations each agent variant
// currently owns, making the §4.9 loop guard's state observable from
// outside the process.
func (s *Server) agentStatsHandler(c *echo.Context) error {
	stats, err := s.agentStats.GetUsageStats(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, &AgentStatsResponse{ConversationsByAgent: stats})
}
