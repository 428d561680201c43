// Package eventws broadcasts transcription events to websocket subscribers.
// The serve command uses it to mirror a device session into browser tooling.
package eventws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voxkit/voxkit/pkg/speech"
)

const (
	writeTimeout = 5 * time.Second
	// clientQueue bounds per-client backlog; slow clients are dropped
	// rather than stalling the broadcast.
	clientQueue = 64
)

// message is the wire envelope for one event.
type message struct {
	Type    string `json:"type"` // "progress" or "error"
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"isFinal,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server fans transcription events out to connected websocket clients.
// It implements http.Handler for the subscription endpoint.
type Server struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[chan message]struct{}
}

// NewServer creates an empty broadcast server.
func NewServer(log zerolog.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[chan message]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	queue := make(chan message, clientQueue)
	s.mu.Lock()
	s.clients[queue] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.log.Info().Int("clients", count).Msg("event subscriber connected")

	// Reader goroutine: we never expect client messages, but reading is
	// what detects disconnects and answers control frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(queue)
				return
			}
		}
	}()

	defer func() {
		s.drop(queue)
		_ = conn.Close()
	}()
	for msg := range queue {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// BroadcastProgress mirrors a transcription result to all subscribers.
// Wire it with Recognizer.OnProgress.
func (s *Server) BroadcastProgress(p speech.Progress) {
	s.broadcast(message{Type: "progress", Text: p.Text, IsFinal: p.IsFinal})
}

// BroadcastError mirrors an error event to all subscribers.
func (s *Server) BroadcastError(e speech.ErrorEvent) {
	s.broadcast(message{Type: "error", Message: e.Message})
}

func (s *Server) broadcast(msg message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for queue := range s.clients {
		select {
		case queue <- msg:
		default:
			// Client is not keeping up; close its queue so its writer
			// exits and the connection drops.
			delete(s.clients, queue)
			close(queue)
		}
	}
}

func (s *Server) drop(queue chan message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[queue]; ok {
		delete(s.clients, queue)
		close(queue)
	}
}
