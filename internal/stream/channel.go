// ABOUTME: Persistent websocket channel with single-reconnect backoff policy
// ABOUTME: Connects only while authenticated; close code 4001 suppresses reconnect

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// StatusAuthFailure is the reserved close code the backend uses to signal an
// authentication failure. Reconnecting would only fail the same way, so the
// channel surfaces an auth error instead.
const StatusAuthFailure websocket.StatusCode = 4001

const (
	dialTimeout = 10 * time.Second

	// defaultReconnectDelay is the fixed backoff used when Options leaves
	// ReconnectDelay unset.
	defaultReconnectDelay = 3 * time.Second
)

// State is the channel connection state.
type State int

// Channel states
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// Channel errors
var (
	ErrNotOpen = errors.New("stream channel not open")
)

// Options configures a Channel.
type Options struct {
	// URL is the websocket endpoint, e.g. wss://host/ws/stream.
	URL string
	// HTTPClient carries the credential cookie jar shared with the API
	// transport. Optional.
	HTTPClient *http.Client
	// Token supplies an access token for the query-parameter fallback when
	// the cookie cannot be conveyed. Optional; empty means cookie only.
	Token func() string
	// Authenticated gates connecting and reconnecting.
	Authenticated func() bool
	// ReconnectDelay is the fixed backoff before the single reconnect
	// attempt after an abnormal closure.
	ReconnectDelay time.Duration
	// Clock drives the reconnect timer. Nil uses the wall clock.
	Clock clock.Clock
	Logger *slog.Logger

	// OnOpen fires after each successful connect.
	OnOpen func()
	// OnEvent receives parsed events in arrival order.
	OnEvent func(Event)
	// OnClose fires whenever the connection drops, with the close code
	// (-1 when the failure was not a websocket close).
	OnClose func(code websocket.StatusCode, reason string)
	// OnAuthError fires when the backend closes with StatusAuthFailure.
	OnAuthError func()
}

// Channel is a persistent websocket connection to the stream endpoint.
// The process holds one Channel per authenticated session; concurrent
// connect requests attach to the existing attempt.
type Channel struct {
	opts   Options
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	readStop  context.CancelFunc
	reconnect *clock.Timer
	closing   bool
}

// New creates a Channel. Connect must be called to open it.
func New(opts Options) *Channel {
	c := &Channel{opts: opts, clock: opts.Clock}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.opts.ReconnectDelay == 0 {
		c.opts.ReconnectDelay = defaultReconnectDelay
	}
	c.logger = opts.Logger
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "stream")
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open reports whether the channel is currently connected.
func (c *Channel) Open() bool {
	return c.State() == StateOpen
}

// Connect opens the channel. A call while already Open or Connecting is a
// no-op, and connecting while signed out is refused.
func (c *Channel) Connect() {
	if c.opts.Authenticated != nil && !c.opts.Authenticated() {
		c.logger.Debug("not connecting, session unauthenticated")
		return
	}

	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		c.logger.Debug("connect suppressed, already active", "state", c.state)
		return
	}
	c.closing = false
	c.cancelReconnectLocked()
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial()
}

// Disconnect tears the channel down: the pending reconnect timer is
// cancelled and the connection closes with the normal code, so no reconnect
// races an intentional shutdown. Safe to call in any state.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.cancelReconnectLocked()
	conn := c.conn
	stop := c.readStop
	c.conn = nil
	c.readStop = nil
	c.state = StateClosed
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if stop != nil {
		stop()
	}
}

// Send writes an event to the backend. Fails with ErrNotOpen when the
// channel is not connected.
func (c *Channel) Send(ev Event) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return ErrNotOpen
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

// dial establishes the connection and runs the read loop until the
// connection drops.
func (c *Channel) dial() {
	ctx, stop := context.WithCancel(context.Background())

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.connectURL(), &websocket.DialOptions{
		HTTPClient: c.opts.HTTPClient,
	})
	cancel()

	if err != nil {
		stop()
		c.logger.Warn("stream dial failed", "error", err)
		c.mu.Lock()
		failedWhileClosing := c.closing
		c.state = StateClosed
		c.mu.Unlock()
		if !failedWhileClosing {
			c.scheduleReconnect()
		}
		return
	}

	c.mu.Lock()
	if c.closing {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		stop()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return
	}
	c.conn = conn
	c.readStop = stop
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("stream connected")
	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	c.readLoop(ctx, conn)
}

// readLoop parses and delivers inbound frames until the connection drops,
// then routes the closure to the reconnect policy.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleClose(err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("dropping malformed stream frame", "error", err)
			continue
		}
		if !ev.known() {
			c.logger.Debug("dropping frame with unknown type", "type", ev.Type)
			continue
		}

		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

// handleClose classifies a dropped connection and applies the reconnect
// policy.
func (c *Channel) handleClose(err error) {
	code := websocket.CloseStatus(err)
	var reason string
	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		reason = closeErr.Reason
	}

	c.mu.Lock()
	intentional := c.closing
	c.conn = nil
	c.readStop = nil
	c.state = StateClosed
	c.mu.Unlock()

	c.logger.Info("stream disconnected", "code", int(code), "reason", reason)

	switch {
	case intentional:
		// Explicit disconnect; teardown already cancelled any timer.
	case code == websocket.StatusNormalClosure:
		// Server closed cleanly; nothing to recover.
	case code == StatusAuthFailure:
		c.logger.Warn("stream closed for authentication failure")
		if c.opts.OnAuthError != nil {
			c.opts.OnAuthError()
		}
	default:
		c.scheduleReconnect()
	}

	// Notify last, once the reconnect decision is already in place.
	if c.opts.OnClose != nil {
		c.opts.OnClose(code, reason)
	}
}

// scheduleReconnect arms the single backoff timer. A timer already pending
// means a reconnect is on its way; a second one is never scheduled.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing || c.reconnect != nil {
		return
	}

	delay := c.opts.ReconnectDelay
	c.logger.Info("scheduling stream reconnect", "delay", delay)
	c.reconnect = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		c.mu.Unlock()

		// The session may have signed out while the timer ran; Connect
		// re-checks and refuses.
		c.Connect()
	})
}

// cancelReconnectLocked stops a pending reconnect timer. Caller holds mu.
func (c *Channel) cancelReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// connectURL appends the token query parameter when a token is available.
func (c *Channel) connectURL() string {
	if c.opts.Token == nil {
		return c.opts.URL
	}
	token := c.opts.Token()
	if token == "" {
		return c.opts.URL
	}

	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return c.opts.URL
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
