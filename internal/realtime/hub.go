package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub tracks the open connections of every organization.
type Hub struct {
	// orgID -> map[clientID]*Client
	orgs   map[uuid.UUID]map[string]*Client
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		orgs:   make(map[uuid.UUID]map[string]*Client),
		logger: logger,
	}
}

// Register adds a client to its organization's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.orgs[c.OrgID] == nil {
		h.orgs[c.OrgID] = make(map[string]*Client)
	}
	h.orgs[c.OrgID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("organization_id", c.OrgID.String()))
}

// Unregister removes a client from its room.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.orgs[c.OrgID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.orgs, c.OrgID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("organization_id", c.OrgID.String()))
}

// Connections returns the number of open connections for an organization.
func (h *Hub) Connections(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orgs[orgID])
}

// Broadcast sends an event to every connection of an organization.
func (h *Hub) Broadcast(orgID uuid.UUID, event string, payload interface{}) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.orgs[orgID]))
	for _, c := range h.orgs[orgID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Send(event, payload)
	}
}

// EventLayoutChanged tells clients to reload their navigation.
const EventLayoutChanged = "layout_changed"

// Invalidator drops cached navigation of an organization.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// LayoutNotifier invalidates the cached layout and then notifies the
// organization's open connections.
type LayoutNotifier struct {
	Next Invalidator
	Hub  *Hub
}

// Invalidate implements Invalidator.
func (n LayoutNotifier) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	if err := n.Next.Invalidate(ctx, orgID); err != nil {
		return err
	}
	n.Hub.Broadcast(orgID, EventLayoutChanged, map[string]string{"organization_id": orgID.String()})
	return nil
}
