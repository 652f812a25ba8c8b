package gateway

import (
	"sort"
	"sync"
	"time"

	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/pkg/events"
	"github.com/gorilla/websocket"
)

// A client with no accepted event for this long is reported idle.
const idleAfter = 5 * time.Minute

// ClientRegistry tracks connected websocket producers and what they have sent.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	now     func() time.Time
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		now:     time.Now,
	}
}

func (r *ClientRegistry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client.ID] = client
	observability.SetGatewayClients(len(r.clients))
}

func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, clientID)
	observability.SetGatewayClients(len(r.clients))
}

func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Conns returns the open connections, for closing them on shutdown.
func (r *ClientRegistry) Conns() []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.clients))
	for _, c := range r.clients {
		if c.Conn != nil {
			conns = append(conns, c.Conn)
		}
	}
	return conns
}

// RecordEvent notes an accepted event from clientID. destination is the
// event's resolved destination; a connection or message that carries one
// opens a session. Unknown ids are ignored.
func (r *ClientRegistry) RecordEvent(clientID string, kind events.Kind, destination string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[clientID]
	if !ok {
		return
	}

	c.LastActivity = r.now()
	c.Events++
	switch kind {
	case events.ConnectionEstablished:
		if destination != "" {
			c.InSession = true
		}
	case events.ConnectionLost:
		c.InSession = false
	case events.MessageReceived:
		c.Messages++
		if destination != "" {
			c.InSession = true
		}
	}
}

// Snapshot lists the connected clients, oldest connection first.
func (r *ClientRegistry) Snapshot() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	infos := make([]ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		infos = append(infos, ClientInfo{
			ID:           c.ID,
			ConnectedAt:  c.ConnectedAt,
			LastActivity: c.LastActivity,
			IPAddress:    c.IPAddress,
			Events:       c.Events,
			Messages:     c.Messages,
			WindowEvents: windowEvents(c),
			InSession:    c.InSession,
			Idle:         now.Sub(c.LastActivity) > idleAfter,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConnectedAt.Equal(infos[j].ConnectedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

func windowEvents(c *Client) int {
	if c.RateLimiter == nil {
		return 0
	}
	return c.RateLimiter.Count()
}
