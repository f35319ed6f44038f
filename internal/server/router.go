// Package server wires the REST surface and the websocket endpoint to
// the services.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallyhq/tally/internal/auth"
	"github.com/tallyhq/tally/internal/hub"
	"github.com/tallyhq/tally/internal/middleware"
	"github.com/tallyhq/tally/internal/service"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	auths    *service.AuthService
	groups   *service.GroupService
	games    *service.GameService
	stats    *service.StatsService
	tokens   *auth.JWTManager
	hub      *hub.Hub
	upgrader websocket.Upgrader
	release  bool
}

// New creates a Server.
func New(auths *service.AuthService, groups *service.GroupService, games *service.GameService, stats *service.StatsService, tokens *auth.JWTManager, h *hub.Hub, release bool) *Server {
	return &Server{
		auths:  auths,
		groups: groups,
		games:  games,
		stats:  stats,
		tokens: tokens,
		hub:    h,
		upgrader: websocket.Upgrader{
			// The public-token model already assumes links are shared
			// across origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		release: release,
	}
}

// Router assembles the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	if s.release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.handleWebsocket)

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", s.handleRegister)
		authRoutes.POST("/login", s.handleLogin)
	}

	groups := api.Group("/groups")
	{
		groups.POST("", middleware.RequireAuth(s.tokens), s.handleCreateGroup)
		groups.GET("", middleware.OptionalAuth(s.tokens), s.handleListGroups)
		groups.GET("/:id", middleware.OptionalAuth(s.tokens), s.handleGetGroup)
		groups.PATCH("/:id", middleware.RequireAuth(s.tokens), s.handleUpdateGroup)
		groups.DELETE("/:id", middleware.RequireAuth(s.tokens), s.handleDeleteGroup)
		groups.POST("/:id/members", middleware.RequireAuth(s.tokens), s.handleAddMember)
		groups.DELETE("/:id/members/:userId", middleware.RequireAuth(s.tokens), s.handleRemoveMember)
	}

	games := api.Group("/games")
	{
		games.POST("", middleware.RequireAuth(s.tokens), s.handleCreateGame)
		games.GET("", middleware.OptionalAuth(s.tokens), s.handleListGames)
		games.GET("/:id", middleware.RequireAuth(s.tokens), s.handleGetGame)
		games.DELETE("/:id", middleware.RequireAuth(s.tokens), s.handleDeleteGame)
		games.PUT("/:id/transactions", middleware.RequireAuth(s.tokens), s.handleReplaceTransactions)

		// Public-token routes: no auth, the unguessable token is the
		// capability.
		public := games.Group("/public/:token")
		{
			public.GET("", s.handleGetGameByToken)
			public.PUT("/name", s.handleUpdateGameName)
			public.PUT("/date", s.handleUpdateGameDate)
			public.PATCH("/transaction/:rowId", s.handlePatchTransaction)
			public.POST("/transaction", s.handleAddTransaction)
			public.DELETE("/transaction/:rowId", s.handleDeleteTransaction)
			public.POST("/settle", s.handleSettleGame)
			public.POST("/edit", s.handleReopenGame)
			public.POST("/quick-signup", s.handleQuickSignup)
		}
	}

	statsRoutes := api.Group("/stats", middleware.RequireAuth(s.tokens))
	{
		statsRoutes.GET("/totals", s.handleStatsTotals)
		statsRoutes.GET("/user/:userId", s.handleStatsUser)
		statsRoutes.GET("/trends", s.handleStatsTrends)
	}

	return router
}
