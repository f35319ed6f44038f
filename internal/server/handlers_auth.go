package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/apperr"
)

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	session, err := s.auths.Register(c.Request.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	session, err := s.auths.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
