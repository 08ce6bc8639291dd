package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 5 * time.Second
	// wsSendBuffer is how many events may queue for one connection before
	// it is treated as stalled and dropped.
	wsSendBuffer = 64
)

// Hub fans game events out to websocket subscribers, grouped by game.
type Hub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
	logger *zap.Logger
}

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the client is closed or its
// queue is full.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		groups: make(map[string]map[*wsClient]struct{}),
		logger: logger,
	}
}

func (h *Hub) add(gameID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[gameID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[gameID] = group
	}
	group[client] = struct{}{}
}

func (h *Hub) remove(gameID string, client *wsClient) {
	h.mu.Lock()
	if group := h.groups[gameID]; group != nil {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, gameID)
		}
	}
	h.mu.Unlock()
	client.close()
}

// Subscribers reports how many connections are listening on a game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[gameID])
}

// Broadcast queues payload for every subscriber of the game without
// waiting on the network. Subscribers whose queue is full are dropped.
func (h *Hub) Broadcast(gameID string, payload any) {
	h.mu.Lock()
	group := h.groups[gameID]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("ws payload encode failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	for _, client := range clients {
		if !client.enqueue(data) {
			h.logger.Warn("ws subscriber dropped", zap.String("game_id", gameID))
			h.remove(gameID, client)
		}
	}
}

// handleWebsocket subscribes before reading the snapshot, so anything
// committed while the snapshot is built is queued behind it. A client may
// see an event its snapshot already reflects but never misses one.
func (s *Server) handleWebsocket(c *gin.Context) {
	var uri gameURI
	if !bindURI(c, &uri) {
		return
	}
	ctx := c.Request.Context()
	game, err := s.engine.GetGame(ctx, uri.GameID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	gameID := game.ID

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := newWSClient(conn)
	s.hub.add(gameID, client)
	s.logger.Info("ws connected", zap.String("game_id", gameID), zap.String("remote", c.Request.RemoteAddr))

	snapshot, err := s.snapshot(ctx, gameID)
	if err == nil {
		err = client.write(snapshot)
	}
	if err != nil {
		s.logger.Warn("ws snapshot failed", zap.String("game_id", gameID), zap.Error(err))
		s.hub.remove(gameID, client)
		return
	}
	go s.writeWS(gameID, client)
	go s.readWS(gameID, client)
}

func (s *Server) snapshot(ctx context.Context, gameID string) ([]byte, error) {
	game, err := s.engine.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	squares, err := s.engine.ListSquares(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshotMessage{Type: messageSnapshot, Game: game, Squares: squares})
}

func (s *Server) writeWS(gameID string, client *wsClient) {
	defer s.hub.remove(gameID, client)
	for {
		select {
		case <-client.done:
			return
		case data := <-client.send:
			if err := client.write(data); err != nil {
				s.logger.Info("ws write failed", zap.String("game_id", gameID), zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) readWS(gameID string, client *wsClient) {
	defer s.hub.remove(gameID, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			s.logger.Info("ws disconnected", zap.String("game_id", gameID), zap.Error(err))
			return
		}
	}
}

// checkOrigin allows any origin unless CORS origins are configured.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.cfg.CORSOrigins, origin)
}
