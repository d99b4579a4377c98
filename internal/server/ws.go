// internal/server/ws.go
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// viewMessage is the only frame type pushed to clients.
type viewMessage struct {
	Type string         `json:"type"`
	Data viewmodel.View `json:"data"`
}

// wsClient is one websocket subscriber of the view stream.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	views  <-chan viewmodel.View
	cancel func()

	closeOnce sync.Once
	done      chan struct{}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.conn.Close()
	})
}

type clientSet struct {
	mu      sync.Mutex
	clients map[string]*wsClient
}

func newClientSet() *clientSet {
	return &clientSet{clients: make(map[string]*wsClient)}
}

func (cs *clientSet) add(c *wsClient) {
	cs.mu.Lock()
	cs.clients[c.id] = c
	cs.mu.Unlock()
}

func (cs *clientSet) remove(id string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.clients[id]; !ok {
		return false
	}
	delete(cs.clients, id)
	return true
}

func (cs *clientSet) len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.clients)
}

func (cs *clientSet) closeAll() {
	cs.mu.Lock()
	clients := make([]*wsClient, 0, len(cs.clients))
	for _, c := range cs.clients {
		clients = append(clients, c)
	}
	cs.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	views, cancel := s.store.Watch()
	c := &wsClient{
		id:     uuid.New().String(),
		conn:   conn,
		views:  views,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.clients.add(c)
	s.metrics.ClientConnected()
	s.logger.Debug("📱 WebSocket client connected", zap.String("client_id", c.id))

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) release(c *wsClient) {
	c.close()
	if s.clients.remove(c.id) {
		s.metrics.ClientDisconnected()
		s.logger.Debug("📱 WebSocket client disconnected", zap.String("client_id", c.id))
	}
}

func (s *Server) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.release(c)
	}()

	for {
		select {
		case view, ok := <-c.views:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(viewMessage{Type: "view", Data: view})
			if err != nil {
				s.logger.Error("Failed to encode view", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("WebSocket write error", zap.String("client_id", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump only services control frames; clients do not send commands.
func (s *Server) readPump(c *wsClient) {
	defer s.release(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}
