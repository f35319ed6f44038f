package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/middleware"
)

type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	group, err := s.groups.CreateGroup(c.Request.Context(), middleware.Principal(c), req.Name, req.Description, req.IsPublic)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (s *Server) handleListGroups(c *gin.Context) {
	groups, err := s.groups.ListGroups(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *Server) handleGetGroup(c *gin.Context) {
	group, err := s.groups.GetGroup(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

type updateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
}

func (s *Server) handleUpdateGroup(c *gin.Context) {
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	group, err := s.groups.UpdateGroup(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Name, req.Description, req.IsPublic)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

type addMemberRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	group, err := s.groups.AddMember(c.Request.Context(), middleware.Principal(c), c.Param("id"), req.Username)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	group, err := s.groups.RemoveMember(c.Request.Context(), middleware.Principal(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (s *Server) handleDeleteGroup(c *gin.Context) {
	if err := s.groups.DeleteGroup(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
