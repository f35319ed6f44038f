package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/middleware"
)

func (s *Server) handleStatsTotals(c *gin.Context) {
	balances, err := s.stats.Totals(c.Request.Context(), middleware.Principal(c), c.Query("groupId"), c.Query("timePeriod"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (s *Server) handleStatsUser(c *gin.Context) {
	history, err := s.stats.UserHistory(c.Request.Context(), middleware.Principal(c), c.Param("userId"), c.Query("groupId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleStatsTrends(c *gin.Context) {
	playerIDs := c.QueryArray("playerIds")
	if len(playerIDs) == 0 {
		playerIDs = c.QueryArray("playerIds[]")
	}

	points, err := s.stats.Trends(c.Request.Context(), middleware.Principal(c), c.Query("groupId"), playerIDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}
