package realtime

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests and pumps frames into the hub, one reader
// goroutine per connection.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the reverse proxy in this deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "ip", r.RemoteAddr)
		return
	}

	clientID := uuid.NewString()
	s.hub.Register(clientID, conn)

	go s.readLoop(clientID, conn)
}

func (s *Server) readLoop(clientID string, conn *websocket.Conn) {
	defer s.hub.Disconnect(clientID)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.hub.Handle(clientID, data)
	}
}
