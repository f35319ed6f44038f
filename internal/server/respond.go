package server

import (
	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/apperr"
)

// errorBody is the single error shape every route returns.
type errorBody struct {
	Error      string   `json:"error"`
	Details    string   `json:"details,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
	CurrentSum *float64 `json:"currentSum,omitempty"`
}

// writeError is the centralized error handler: it maps the typed error
// to a status code and serializes the message with any attached
// context. Wrapped causes appear in details only outside release mode.
func (s *Server) writeError(c *gin.Context, err error) {
	appErr := apperr.From(err)

	body := errorBody{
		Error:      appErr.Message,
		Duplicates: appErr.Duplicates,
		CurrentSum: appErr.CurrentSum,
	}
	if !s.release && appErr.Err != nil {
		body.Details = appErr.Err.Error()
	}

	c.JSON(appErr.Status(), body)
}
