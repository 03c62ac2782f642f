package server

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/contrib/websocket"
)

const WS_READ_LIMIT = 4096

// gameWebSocketHandler reads client messages until the connection drops.
// Writes happen only in the hub's per-client writer.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	userID := strings.TrimSpace(conn.Query("user_id"))
	conn.SetReadLimit(WS_READ_LIMIT)

	client, err := s.hub.Register(conn, userID, s.cfg.IsAdmin(userID))
	if err != nil {
		log.Printf("[WS] Rejecting connection: %v", err)
		conn.Close()
		return
	}
	// the conn is recycled once this handler returns, so the writer must be
	// finished with it first
	defer func() {
		s.hub.Unregister(client)
		<-client.Done()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.dispatcher.Welcome(client); err != nil {
		log.Printf("[WS] Welcome to %s failed: %v", client.ID, err)
		return
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for %s: %v", client.ID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.dispatcher.Handle(ctx, client, message)
	}
}
