package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bl791/chat-logger/internal/observability"
	"github.com/bl791/chat-logger/internal/tracing"
	"github.com/bl791/chat-logger/pkg/events"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// maxBatchBytes bounds a POST /events body.
const maxBatchBytes = 8 << 20

// Publisher accepts decoded host events. *events.Dispatcher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Server is the local event ingress
type Server struct {
	host           string
	port           int
	rateLimit      int
	fallback       string
	server         *http.Server
	listener       net.Listener
	upgrader       websocket.Upgrader
	clients        *ClientRegistry
	authHandler    *AuthHandler
	publisher      Publisher
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	clientWG       sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	SharedSecret string

	// RateLimit caps websocket events per client per minute; zero disables it.
	RateLimit int

	// FallbackDestination resolves local worlds without a name, matching the
	// dispatcher, when tracking which clients have a session open.
	FallbackDestination string

	Publisher Publisher
	Logger    zerolog.Logger
}

// NewServer creates a new ingress server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	observability.EnsureRegistered()

	return &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		rateLimit:   cfg.RateLimit,
		fallback:    cfg.FallbackDestination,
		clients:     NewClientRegistry(),
		authHandler: NewAuthHandler(cfg.SharedSecret),
		publisher:   cfg.Publisher,
		logger:      cfg.Logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			// Producers are local processes, not browsers.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}, nil
}

// Handler returns the HTTP routes served by the gateway
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/clients", s.handleClients)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting gateway")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes client connections and shuts the HTTP server down
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway")

	for _, conn := range s.clients.Conns() {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.clientWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, client readers still running")
	}

	s.logger.Info().Msg("Gateway stopped")
	return shutdownErr
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Snapshot()
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if !s.authHandler.Authorize(r) {
		s.logger.Warn().Str("ip", r.RemoteAddr).Msg("Rejected unauthorized websocket client")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate client id")
		conn.Close()
		return
	}

	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
		RateLimiter:  NewClientRateLimiter(s.rateLimit),
	}

	s.clients.Add(client)
	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	s.clientWG.Add(1)
	go s.handleClient(client)
}

// handleClient reads frames until the client goes away. Acks are written
// from this goroutine only.
func (s *Server) handleClient(client *Client) {
	defer s.clientWG.Done()
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		ack := s.handleMessage(client, message)
		if err := client.Conn.WriteJSON(ack); err != nil {
			s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send ack")
			return
		}
	}
}

func (s *Server) handleMessage(client *Client, message []byte) Ack {
	if !client.RateLimiter.Allow() {
		observability.RecordGatewayEvent("rate_limited", false)
		return Ack{Type: "ack", Error: "rate limit exceeded"}
	}

	ev, err := events.Decode(message)
	if err != nil {
		observability.RecordGatewayEvent("invalid", false)
		return Ack{Type: "ack", Error: err.Error()}
	}

	ctx := tracing.NewRequestContext(context.Background())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		observability.RecordGatewayEvent(string(ev.Type), false)
		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Str("type", string(ev.Type)).
			Msg("Failed to publish event")
		return Ack{Type: "ack", Event: ev.Type, Error: err.Error()}
	}

	s.clients.RecordEvent(client.ID, ev.Type, ev.Destination(s.fallback))
	observability.RecordGatewayEvent(string(ev.Type), true)
	return Ack{Type: "ack", OK: true, Event: ev.Type}
}

// handleEvents accepts a newline-delimited batch of events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if !s.authHandler.Authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	body := http.MaxBytesReader(w, r.Body, maxBatchBytes)
	accepted, err := events.DecodeStream(body, func(ev events.Event) error {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			observability.RecordGatewayEvent(string(ev.Type), false)
			return err
		}
		observability.RecordGatewayEvent(string(ev.Type), true)
		return nil
	})

	result := IngestResult{Accepted: accepted}
	status := http.StatusOK
	if err != nil {
		result.Error = err.Error()
		status = http.StatusBadRequest
		if errors.Is(err, events.ErrDispatcherClosed) {
			status = http.StatusServiceUnavailable
		}
		logger.Warn().Err(err).Int("accepted", accepted).Msg("Event batch rejected")
	} else {
		logger.Debug().Int("accepted", accepted).Msg("Event batch accepted")
	}

	writeJSON(w, status, result)
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authHandler.Authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.GetConnectedClients())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
