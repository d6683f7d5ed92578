// Package stream implements the client side of the stratus event stream:
// one persistent WebSocket connection, tagged envelope dispatch and
// reconnection with exponential backoff.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/logging"
)

// State is the lifecycle of the underlying connection.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Handler receives envelopes. A returned error is logged and does not stop
// dispatch to other handlers.
type Handler func(Envelope) error

// Options configures a Client.
type Options struct {
	URL              string
	ReconnectFloor   time.Duration
	ReconnectCeiling time.Duration
	HandshakeTimeout time.Duration

	// Clock defaults to RealClock.
	Clock Clock
	// Logger defaults to logging.NewLogger("stream").
	Logger *logrus.Entry
}

// OptionsFromConfig builds Options for the stream described by cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:              cfg.StreamURL(),
		ReconnectFloor:   cfg.ReconnectFloor(),
		ReconnectCeiling: cfg.ReconnectCeiling(),
		HandshakeTimeout: cfg.HandshakeTimeout(),
	}
}

type subscription struct {
	handler   Handler
	cancelled atomic.Bool
}

// Client holds at most one live connection to the event stream and
// reconnects whenever it closes, until Close is called.
type Client struct {
	opts   Options
	clock  Clock
	logger *logrus.Entry
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	connID  string
	state   State
	backoff time.Duration
	timer   Timer
	closed  bool

	writeMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[string][]*subscription

	// dispatchMu serializes handler invocations.
	dispatchMu sync.Mutex

	readers sync.WaitGroup
}

// New creates a Client. Nothing is dialed until Connect is called.
func New(opts Options) *Client {
	if opts.ReconnectFloor <= 0 {
		opts.ReconnectFloor = config.DefaultReconnectFloor
	}
	if opts.ReconnectCeiling < opts.ReconnectFloor {
		opts.ReconnectCeiling = config.DefaultReconnectCeiling
		if opts.ReconnectCeiling < opts.ReconnectFloor {
			opts.ReconnectCeiling = opts.ReconnectFloor
		}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = config.DefaultHandshakeTimeout
	}

	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("stream")
	}

	return &Client{
		opts:   opts,
		clock:  clock,
		logger: logger.WithField("url", opts.URL),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		backoff:  opts.ReconnectFloor,
		handlers: make(map[string][]*subscription),
	}
}

// Connect dials the stream. It returns once the first attempt has
// finished; the outcome is observable only through the connected and
// disconnected lifecycle events. A failed attempt schedules a reconnect.
// Connect is a no-op while a connection is open or being established.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.dial()
}

// On registers handler for tag, or for every envelope when tag is "*".
// Exact-tag handlers run before wildcard handlers, each group in
// registration order. The returned cancel function is idempotent.
func (c *Client) On(tag string, handler Handler) (cancel func()) {
	sub := &subscription{handler: handler}

	c.handlersMu.Lock()
	c.handlers[tag] = append(c.handlers[tag], sub)
	c.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.cancelled.Store(true)

			c.handlersMu.Lock()
			defer c.handlersMu.Unlock()
			subs := c.handlers[tag]
			for i, s := range subs {
				if s == sub {
					c.handlers[tag] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(c.handlers[tag]) == 0 {
				delete(c.handlers, tag)
			}
		})
	}
}

// Send writes env if the connection is open and reports whether it was
// written. Messages sent while disconnected are dropped, never queued.
func (c *Client) Send(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.WithError(err).WithField("type", env.Type).Debug("Dropping unencodable envelope")
		return false
	}

	c.mu.Lock()
	conn, open := c.conn, c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		c.logger.WithField("type", env.Type).Debug("Not connected, dropping envelope")
		return false
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.HandshakeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		// The reader observes the closed socket and runs the close path.
		c.logger.WithError(err).WithField("type", env.Type).Debug("Write failed, closing connection")
		conn.Close()
		return false
	}
	return true
}

// Ping sends a keep-alive envelope.
func (c *Client) Ping() bool {
	return c.Send(Envelope{Type: TagPing})
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Backoff returns the delay the next reconnect will wait.
func (c *Client) Backoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff
}

// Close stops reconnecting and closes the live connection, emitting
// disconnected if one was open. It must not be called from a handler.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	wasOpen := c.state == StateOpen
	c.conn = nil
	c.state = StateClosed
	c.mu.Unlock()

	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	if wasOpen {
		c.emit(Envelope{Type: TagDisconnected})
	}

	c.readers.Wait()
	return err
}

func (c *Client) dial() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if c.closed {
		c.state = StateClosed
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()

		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		c.logger.WithError(errors.Transport(c.opts.URL, err)).Debug("Dial failed")
		c.onClosed()
		return
	}

	id := uuid.NewString()
	c.conn = conn
	c.connID = id
	c.state = StateOpen
	c.backoff = c.opts.ReconnectFloor
	c.readers.Add(1)
	c.mu.Unlock()

	c.logger.WithField("conn_id", id).Info("Event stream connected")
	c.emit(Envelope{Type: TagConnected})
	go c.readLoop(conn, id)
}

func (c *Client) readLoop(conn *websocket.Conn, id string) {
	defer c.readers.Done()
	logger := c.logger.WithField("conn_id", id)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Debug("Read failed")
			}
			c.handleClose(conn)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			logger.WithField("bytes", len(data)).Debug("Ignoring malformed envelope")
			continue
		}
		c.emit(env)
	}
}

// handleClose runs the close path for conn unless it was already replaced
// or the client was closed.
func (c *Client) handleClose(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	id := c.connID
	c.conn = nil
	c.connID = ""
	c.state = StateClosed
	c.mu.Unlock()

	conn.Close()
	c.logger.WithField("conn_id", id).Info("Event stream disconnected")
	c.onClosed()
}

// onClosed emits disconnected and arms the reconnect timer.
func (c *Client) onClosed() {
	c.emit(Envelope{Type: TagDisconnected})
	c.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already pending.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timer != nil {
		return
	}
	delay := c.backoff
	c.logger.WithField("delay", delay).Debug("Scheduling reconnect")
	c.timer = c.clock.AfterFunc(delay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.timer = nil
	if c.closed || c.state != StateClosed {
		c.mu.Unlock()
		return
	}
	c.backoff *= 2
	if c.backoff > c.opts.ReconnectCeiling {
		c.backoff = c.opts.ReconnectCeiling
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.dial()
}

func (c *Client) emit(env Envelope) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.handlersMu.Lock()
	subs := make([]*subscription, 0, len(c.handlers[env.Type])+len(c.handlers[TagAll]))
	subs = append(subs, c.handlers[env.Type]...)
	if env.Type != TagAll {
		subs = append(subs, c.handlers[TagAll]...)
	}
	c.handlersMu.Unlock()

	for _, sub := range subs {
		if sub.cancelled.Load() {
			continue
		}
		c.invoke(sub.handler, env)
	}
}

func (c *Client) invoke(handler Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("type", env.Type).Errorf("Handler panicked: %v", r)
		}
	}()
	if err := handler(env); err != nil {
		c.logger.WithError(err).WithField("type", env.Type).Warn("Handler failed")
	}
}
