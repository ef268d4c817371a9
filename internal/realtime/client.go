package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/auth"
	"github.com/invoica/backend/internal/layout"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/resources"
)

// Outgoing and incoming events.
const (
	EventSnapshot = "snapshot"
	EventError    = "error"
	EventWatch    = "watch"
	EventUnwatch  = "unwatch"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type tableRequest struct {
	Table string `json:"table"`
}

type errorPayload struct {
	Table string `json:"table,omitempty"`
	Error string `json:"error"`
}

// Client is one WebSocket connection following live tables of its organization.
type Client struct {
	ID      string
	OrgID   uuid.UUID
	Session models.Session
	hub     *Hub
	reg     *resources.Registry
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger

	mu       sync.Mutex
	watching map[string]func()
	done     chan struct{}
}

// Server upgrades authenticated requests to live table connections.
type Server struct {
	hub      *Hub
	reg      *resources.Registry
	codec    *auth.Codec
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server. allowedOrigins empty or "*" accepts any origin.
func NewServer(hub *Hub, reg *resources.Registry, codec *auth.Codec, allowedOrigins []string, logger *zap.Logger) *Server {
	return &Server{
		hub:    hub,
		reg:    reg,
		codec:  codec,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWs handles GET /ws. The session cookie authenticates the connection and
// each ?table= query value is watched immediately.
func (s *Server) ServeWs(c *gin.Context) {
	sess, ok := s.codec.FromRequest(c.Request)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "not signed in"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		OrgID:    sess.OrgID,
		Session:  sess,
		hub:      s.hub,
		reg:      s.reg,
		conn:     conn,
		send:     make(chan WSMessage, 256),
		logger:   s.logger,
		watching: make(map[string]func()),
		done:     make(chan struct{}),
	}
	s.hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	go client.writePump()
	for _, t := range c.QueryArray("table") {
		client.watch(ctx, t)
	}
	client.readPump(ctx)
	cancel()
}

// Send queues an event for the connection. Slow connections drop messages.
func (c *Client) Send(event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("marshal websocket payload", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- WSMessage{Event: event, Data: raw}:
	default:
		c.logger.Warn("websocket send buffer full", zap.String("client_id", c.ID), zap.String("event", event))
	}
}

func (c *Client) watch(ctx context.Context, table string) {
	res, ok := c.reg.Get(table)
	if !ok {
		c.Send(EventError, errorPayload{Table: table, Error: "unknown table"})
		return
	}
	need := layout.MinPlan(res.Feature())
	if !c.Session.IsSuperadmin() && c.Session.SubscriptionPlan.Rank() < need.Rank() {
		c.Send(EventError, errorPayload{Table: table, Error: "upgrade to " + string(need) + " to use this feature"})
		return
	}
	if c.Session.IsEmployee && layout.AdminOnly(res.Feature()) {
		c.Send(EventError, errorPayload{Table: table, Error: "insufficient permissions"})
		return
	}
	c.mu.Lock()
	_, already := c.watching[table]
	c.mu.Unlock()
	if already {
		return
	}
	stop, err := res.Watch(ctx, c.OrgID, func(snapshot any) {
		c.Send(EventSnapshot, snapshot)
	})
	if err != nil {
		c.Send(EventError, errorPayload{Table: table, Error: err.Error()})
		return
	}
	c.mu.Lock()
	if _, dup := c.watching[table]; dup {
		c.mu.Unlock()
		stop()
		return
	}
	c.watching[table] = stop
	c.mu.Unlock()
}

func (c *Client) unwatch(table string) {
	c.mu.Lock()
	stop, ok := c.watching[table]
	delete(c.watching, table)
	c.mu.Unlock()
	if ok {
		stop()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	stops := c.watching
	c.watching = map[string]func(){}
	c.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	close(c.done)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.close()
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var req tableRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.Send(EventError, errorPayload{Error: "invalid message"})
				continue
			}
		}
		switch msg.Event {
		case EventWatch:
			c.watch(ctx, req.Table)
		case EventUnwatch:
			c.unwatch(req.Table)
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
