package server

import (
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tallyhq/tally/internal/hub"
	"github.com/tallyhq/tally/internal/metrics"
)

// handleWebsocket upgrades the connection and pumps client events into
// the hub until the socket closes.
func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(conn)
	metrics.ConnectedClients.Inc()
	defer func() {
		s.hub.Remove(client)
		conn.Close()
		metrics.ConnectedClients.Dec()
	}()

	for {
		var env hub.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket read failed", "error", err)
			}
			return
		}
		if env.Token == "" {
			continue
		}

		switch env.Event {
		case "join-game":
			s.hub.Join(env.Token, client)
			s.sendCurrentGame(c, client, env.Token)
		case "leave-game":
			s.hub.Leave(env.Token, client)
		default:
			s.hub.Relay(env.Token, client, env.Event, env.Data)
		}
	}
}

// sendCurrentGame pushes the persisted game state to a freshly joined
// client so it does not have to wait for the next mutation.
func (s *Server) sendCurrentGame(c *gin.Context, client *hub.Client, token string) {
	game, err := s.games.GetGameByToken(c.Request.Context(), token)
	if err != nil {
		slog.Warn("Failed to load game for joining client", "token", token, "error", err)
		return
	}

	data, err := json.Marshal(game)
	if err != nil {
		slog.Error("Failed to encode game for joining client", "token", token, "error", err)
		return
	}
	if err := client.Send(hub.Envelope{Event: hub.EventGameUpdated, Token: token, Data: data}); err != nil {
		slog.Warn("Failed to send game to joining client", "token", token, "error", err)
	}
}
