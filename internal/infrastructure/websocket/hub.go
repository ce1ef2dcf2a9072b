// Package websocket pushes invalidation events to browser subscribers over
// WebSocket or Server-Sent Events, and provides a reconnecting WebSocket event source.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultBufferSize   = 64
	defaultHeartbeat    = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	maxInboundMessage   = 4096
)

// ErrHubClosed is returned when subscribing to a closed hub
var ErrHubClosed = errors.New("realtime hub is closed")

type subscriber struct {
	id      string
	orgID   uuid.UUID
	send    chan []byte
	done    chan struct{}
	closing sync.Once
}

func (s *subscriber) close() {
	s.closing.Do(func() { close(s.done) })
}

// Hub fans invalidation events out to the subscribers of the event's organization.
// Each subscriber has a bounded buffer; events for a subscriber whose buffer is full are dropped.
type Hub struct {
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	bufferSize   int
	heartbeat    time.Duration
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*subscriber]struct{}
	closed  bool

	dropped atomic.Int64
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubLogger sets the logger
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAllowedOrigins restricts browser origins. Empty or "*" allows all.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		h.upgrader = makeUpgrader(origins)
	}
}

// WithBufferSize sets the per-subscriber buffer
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithHeartbeat sets the ping interval for WebSocket and keep-alive interval for SSE
func WithHeartbeat(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithWriteTimeout bounds each WebSocket write
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// NewHub creates a hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		logger:       zap.NewNop(),
		upgrader:     makeUpgrader(nil),
		bufferSize:   defaultBufferSize,
		heartbeat:    defaultHeartbeat,
		writeTimeout: defaultWriteTimeout,
		clients:      make(map[uuid.UUID]map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func makeUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return originSet[origin]
		},
	}
}

// Broadcast sends evt to every subscriber of its organization. It never blocks.
// The signature matches the listener sink so the hub can be attached directly.
func (h *Hub) Broadcast(_ context.Context, evt realtime.InvalidationEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to marshal invalidation event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.clients[evt.OrganizationID] {
		select {
		case sub.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Subscriber buffer full, dropping event",
				zap.String("subscriber_id", sub.id),
				zap.String("event", string(evt.Name)))
		}
	}
}

// ClientCount returns the number of subscribers of orgID
func (h *Hub) ClientCount(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[orgID])
}

// Len returns the number of subscribers across all organizations
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.clients {
		n += len(subs)
	}
	return n
}

// Dropped returns how many deliveries were discarded because a buffer was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.clients {
		for sub := range subs {
			sub.close()
		}
	}
	h.clients = make(map[uuid.UUID]map[*subscriber]struct{})
}

func (h *Hub) register(orgID uuid.UUID) (*subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	sub := &subscriber{
		id:    uuid.NewString(),
		orgID: orgID,
		send:  make(chan []byte, h.bufferSize),
		done:  make(chan struct{}),
	}
	if h.clients[orgID] == nil {
		h.clients[orgID] = make(map[*subscriber]struct{})
	}
	h.clients[orgID][sub] = struct{}{}
	return sub, nil
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clients[sub.orgID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.clients, sub.orgID)
		}
	}
	sub.close()
}

// ServeWS upgrades the request and streams orgID's events until the peer disconnects.
// On a failed upgrade the error response has already been written.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	sub, err := h.register(orgID)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return err
	}

	log := h.logger.With(zap.String("subscriber_id", sub.id), zap.String("organization_id", orgID.String()))
	log.Info("WebSocket subscriber connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, sub)
	}()

	h.readLoop(conn)
	h.unregister(sub)
	<-writerDone
	_ = conn.Close()
	log.Info("WebSocket subscriber disconnected")
	return nil
}

// readLoop consumes inbound frames so pongs are processed; it returns when the peer goes away
func (h *Hub) readLoop(conn *websocket.Conn) {
	pongWait := 2 * h.heartbeat
	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer of data frames on conn
func (h *Hub) writeLoop(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.writeTimeout))
			// unblock readLoop when the hub closed first
			_ = conn.Close()
			return
		case msg := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// ServeSSE streams orgID's events as Server-Sent Events until the request ends or the hub closes
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return errors.New("response writer does not support flushing")
	}
	sub, err := h.register(orgID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return err
	}
	defer h.unregister(sub)

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected %s\n\n", sub.id)
	flusher.Flush()

	h.logger.Info("SSE subscriber connected",
		zap.String("subscriber_id", sub.id),
		zap.String("organization_id", orgID.String()))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-sub.done:
			return nil
		case msg := <-sub.send:
			fmt.Fprintf(w, "event: invalidation\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
