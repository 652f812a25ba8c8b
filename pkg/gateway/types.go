package gateway

import (
	"time"

	"github.com/bl791/chat-logger/pkg/events"
	"github.com/gorilla/websocket"
)

// SecretHeader carries the shared secret on websocket upgrades and HTTP posts.
const SecretHeader = "X-Chatlog-Secret"

// Ack is written back to a websocket client for every frame it sends.
type Ack struct {
	Type  string      `json:"type"`
	OK    bool        `json:"ok"`
	Event events.Kind `json:"event,omitempty"`
	Error string      `json:"error,omitempty"`
}

// IngestResult is the body of a POST /events response.
type IngestResult struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ClientInfo is the /clients view of a websocket producer.
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Events       int       `json:"events"`
	Messages     int       `json:"messages"`
	// WindowEvents counts events accepted in the last minute, the figure
	// gateway.rate_limit is checked against.
	WindowEvents int `json:"windowEvents"`
	// InSession is true between the client's connection_established and
	// connection_lost events.
	InSession bool `json:"inSession"`
	Idle      bool `json:"idle"`
}

// Client is a connected websocket producer
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string
	Events       int
	Messages     int
	InSession    bool
	RateLimiter  *ClientRateLimiter
}
