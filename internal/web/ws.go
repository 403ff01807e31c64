package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/protocol"
)

const (
	maxMessageSize = 16 << 10
	writeWait      = 5 * time.Second
)

// wsConn is one websocket client. Writes come from the control loop,
// reads from the connection's handler goroutine.
type wsConn struct {
	id string
	ws *websocket.Conn

	wmu sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) close() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second))
	c.ws.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.WithError(err).Debug("web: websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &wsConn{id: fmt.Sprintf("ws-%d", s.nextID.Add(1)), ws: ws}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	s.readLoop(c, r.RemoteAddr)

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	ws.Close()
}

// readLoop forwards client messages to the control loop until the
// connection fails or the server shuts down.
func (s *Server) readLoop(c *wsConn, remote string) {
	logger := log.WithFields(log.Fields{"conn": c.id, "remote": remote})
	if !s.enqueue(protocol.Event{Kind: protocol.EventConnect, Conn: c.id}) {
		return
	}
	defer s.enqueue(protocol.Event{Kind: protocol.EventDisconnect, Conn: c.id})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("web: websocket read")
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		ev := protocol.Event{Kind: protocol.EventMessage, Conn: c.id, Payload: data, Reply: c.write}
		if !s.enqueue(ev) {
			return
		}
	}
}

// enqueue hands ev to the control loop. It gives up once the server is
// shutting down so readers never block on a loop that has stopped.
func (s *Server) enqueue(ev protocol.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}
