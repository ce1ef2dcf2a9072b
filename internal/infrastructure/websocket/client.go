package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	app "github.com/flowstate/agency/internal/application/realtime"
	"github.com/flowstate/agency/internal/domain/realtime"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultReconnectDelay   = 2 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// ErrClientOpen is returned when Open is called twice
var ErrClientOpen = errors.New("websocket client already open")

// Client is an EventSource reading invalidation events from a remote hub.
// It reconnects after a fixed delay until Close is called.
type Client struct {
	url            string
	header         http.Header
	reconnectDelay time.Duration
	dialer         websocket.Dialer
	logger         *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithClientLogger sets the logger
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconnectDelay sets the pause between connection attempts
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithHeader adds a header sent on every handshake
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// NewClient creates a client for a ws:// or wss:// url
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:            url,
		header:         http.Header{},
		reconnectDelay: defaultReconnectDelay,
		dialer:         websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts the connection loop in the background and returns immediately
func (c *Client) Open(ctx context.Context, handler app.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return ErrClientOpen
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, handler, c.done)
	return nil
}

func (c *Client) run(ctx context.Context, handler app.Handler, done chan struct{}) {
	defer close(done)
	for {
		if err := c.connectOnce(ctx, handler); err != nil && ctx.Err() == nil {
			c.logger.Warn("Realtime connection lost", zap.String("url", c.url), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) connectOnce(ctx context.Context, handler app.Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	c.logger.Info("Connected to realtime hub", zap.String("url", c.url))

	// closes the socket on cancellation so ReadMessage returns
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		evt, err := realtime.ParseEvent(msg)
		if err != nil {
			c.logger.Warn("Discarding malformed realtime message", zap.Error(err))
			continue
		}
		handler(evt)
	}
}

// Connected reports whether a connection is currently established
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close stops reconnecting and waits for the connection loop to exit
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

var _ app.EventSource = (*Client)(nil)
