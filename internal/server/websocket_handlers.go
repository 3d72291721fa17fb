package server

import (
	"strings"

	"credledger/internal/middleware"
	"credledger/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// upgradeRequired rejects plain HTTP requests to websocket routes.
func (s *Server) upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// eventFilter builds a hub filter from the stream query. types limits the
// event types; following restricts events to accounts the viewer follows.
func (s *Server) eventFilter(types string, following bool, viewer string) func(eventType, account string) bool {
	allowed := make(map[string]struct{})
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[t] = struct{}{}
		}
	}
	if len(allowed) == 0 && !following {
		return nil
	}

	return func(eventType, account string) bool {
		if len(allowed) > 0 {
			if _, ok := allowed[eventType]; !ok {
				return false
			}
		}
		if following {
			return account == viewer || s.ledger.IsFollowing(viewer, account)
		}
		return true
	}
}

// EventStreamHandler streams committed ledger events over a websocket.
func (s *Server) EventStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		account, _ := conn.Locals(middleware.AccountLocal).(string)
		following := conn.Query("following") == "true"

		if following && account == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"following stream requires authentication"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(conn, account, s.eventFilter(conn.Query("types"), following, account))
		if err != nil {
			observability.Logger.Warn("event stream registration failed", "account", account, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		observability.Logger.Debug("event stream connected", "account", account, "following", following)
		go client.WritePump()
		client.ReadPump()
	})
}
