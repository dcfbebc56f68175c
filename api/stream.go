package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dreamsun/generation"
	"dreamsun/middleware"
	"dreamsun/providers"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream message types.
const (
	messageQueue  = "queue"
	messageResult = "result"
	messageError  = "error"
)

// streamMessage is one server-to-client message on the generation stream.
type streamMessage struct {
	Type       string                `json:"type"`
	RequestID  string                `json:"requestId,omitempty"`
	Status     providers.QueueStatus `json:"status,omitempty"`
	Position   int                   `json:"position,omitempty"`
	Logs       []providers.LogLine   `json:"logs,omitempty"`
	Result     *generation.Result    `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
	StatusCode int                   `json:"statusCode,omitempty"`
}

const streamWriteWait = 10 * time.Second

// generateStream runs one generation over a websocket. The client sends a
// generate request; the server answers with queue updates followed by a
// single result or error message, then closes the connection.
func (s *Server) generateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	send := func(msg streamMessage) {
		mu.Lock()
		defer mu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("WebSocket write failed: %v", err)
		}
	}
	sendError := func(err error) {
		resp := errorStatus(err)
		send(streamMessage{Type: messageError, Error: resp.Error, StatusCode: resp.StatusCode})
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			log.Printf("WebSocket error: %v", err)
		}
		return
	}
	var body generateBody
	if err := decodeJSON(raw, generateSchema, &body); err != nil {
		sendError(err)
		return
	}

	// A closed connection cancels the generation.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	result, err := s.run(ctx, middleware.OwnerFrom(r.Context()), body.request(), func(u providers.QueueUpdate) {
		send(streamMessage{
			Type:      messageQueue,
			RequestID: u.RequestID,
			Status:    u.Status,
			Position:  u.Position,
			Logs:      u.Logs,
		})
	})
	if err != nil {
		sendError(err)
	} else {
		send(streamMessage{Type: messageResult, RequestID: result.RequestID, Result: result})
	}

	mu.Lock()
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	mu.Unlock()
}
