package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/apperr"
	"github.com/tallyhq/tally/internal/middleware"
	"github.com/tallyhq/tally/internal/models"
)

type transactionPayload struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	PlayerName string  `json:"playerName"`
	Amount     float64 `json:"amount"`
}

func (p transactionPayload) model() models.Transaction {
	return models.Transaction{
		ID:         p.ID,
		UserID:     p.UserID,
		PlayerName: p.PlayerName,
		Amount:     p.Amount,
	}
}

type createGameRequest struct {
	Name         string               `json:"name" binding:"required"`
	GroupID      string               `json:"groupId"`
	Date         int64                `json:"date"`
	Transactions []transactionPayload `json:"transactions"`
}

func (s *Server) handleCreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	txs := make([]models.Transaction, 0, len(req.Transactions))
	for _, p := range req.Transactions {
		txs = append(txs, p.model())
	}

	game, err := s.games.CreateGame(c.Request.Context(), middleware.Principal(c), req.Name, req.GroupID, req.Date, txs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (s *Server) handleListGames(c *gin.Context) {
	games, err := s.games.ListGames(c.Request.Context(), middleware.Principal(c), c.Query("groupId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (s *Server) handleGetGame(c *gin.Context) {
	game, err := s.games.GetGame(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	if err := s.games.DeleteGame(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type replaceTransactionsRequest struct {
	Transactions []transactionPayload `json:"transactions" binding:"required"`
}

func (s *Server) handleReplaceTransactions(c *gin.Context) {
	var req replaceTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	txs := make([]models.Transaction, 0, len(req.Transactions))
	for _, p := range req.Transactions {
		txs = append(txs, p.model())
	}

	game, err := s.games.ReplaceTransactions(c.Request.Context(), middleware.Principal(c), c.Param("id"), txs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleGetGameByToken(c *gin.Context) {
	game, err := s.games.GetGameByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type updateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) handleUpdateGameName(c *gin.Context) {
	var req updateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	game, err := s.games.UpdateGameName(c.Request.Context(), c.Param("token"), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type updateDateRequest struct {
	// Pointer so an explicit zero clears the date back to unset.
	Date *int64 `json:"date" binding:"required"`
}

func (s *Server) handleUpdateGameDate(c *gin.Context) {
	var req updateDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	game, err := s.games.UpdateGameDate(c.Request.Context(), c.Param("token"), *req.Date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type patchTransactionRequest struct {
	Field string `json:"field" binding:"required"`
	Value any    `json:"value"`
}

func (s *Server) handlePatchTransaction(c *gin.Context) {
	var req patchTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	game, err := s.games.UpdateTransactionField(c.Request.Context(), c.Param("token"), c.Param("rowId"), req.Field, req.Value)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type addTransactionRequest struct {
	PlayerName string  `json:"playerName"`
	Amount     float64 `json:"amount"`
}

func (s *Server) handleAddTransaction(c *gin.Context) {
	var req addTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	game, err := s.games.AddTransaction(c.Request.Context(), c.Param("token"), req.PlayerName, req.Amount)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (s *Server) handleDeleteTransaction(c *gin.Context) {
	game, err := s.games.DeleteTransaction(c.Request.Context(), c.Param("token"), c.Param("rowId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleSettleGame(c *gin.Context) {
	game, err := s.games.SettleGame(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

func (s *Server) handleReopenGame(c *gin.Context) {
	game, err := s.games.ReopenGame(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, game)
}

type quickSignupRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (s *Server) handleQuickSignup(c *gin.Context) {
	var req quickSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, apperr.Wrap(apperr.Validation, err, "invalid request body"))
		return
	}

	session, err := s.games.QuickSignup(c.Request.Context(), c.Param("token"), req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}
