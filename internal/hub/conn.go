package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

const (
	writeTimeout  = 5 * time.Second
	sendQueueSize = 32
)

// ConnConfig carries the role classification and metadata resolved from the
// connect request's query parameters.
type ConnConfig struct {
	Roles      []domain.Role
	ScreenID   string
	Date       string
	RemoteAddr string
	// ViewerID is set when the client requested QR-viewer registration
	// (needsQR). Empty means the connection never counts against the QR
	// resource.
	ViewerID string
}

// Conn is one long-lived bidirectional channel to a client process. It owns
// a dedicated writer goroutine so that delivery order is preserved per
// connection and a slow client never blocks broadcast iteration.
type Conn struct {
	id    uuid.UUID
	ws    *websocket.Conn
	clock clockwork.Clock

	roles      []domain.Role
	screenID   string
	date       string
	remoteAddr string
	viewerID   string

	// qrRegistered guards register-at-most-once / release-at-most-once
	// against the external QR refcount.
	qrRegistered atomic.Bool

	lastActivity atomic.Int64 // unix nanos

	capsMu sync.Mutex
	caps   domain.Capabilities

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewConn wraps an upgraded websocket connection and starts its writer.
func NewConn(ws *websocket.Conn, clock clockwork.Clock, cfg ConnConfig) *Conn {
	roles := cfg.Roles
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleGeneric}
	}

	c := &Conn{
		id:         uuid.New(),
		ws:         ws,
		clock:      clock,
		roles:      roles,
		screenID:   cfg.ScreenID,
		date:       cfg.Date,
		remoteAddr: cfg.RemoteAddr,
		viewerID:   cfg.ViewerID,
		caps:       domain.DefaultCapabilities(),
		sendCh:     make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
	}
	c.Touch()
	go c.writeLoop()
	return c
}

// ID returns the connection's unique identity.
func (c *Conn) ID() uuid.UUID { return c.id }

// Roles returns the roles the connection was registered under.
func (c *Conn) Roles() []domain.Role { return c.roles }

// ScreenID returns the external screen identity, if any.
func (c *Conn) ScreenID() string { return c.screenID }

// Date returns the bound date filter, empty when the connection is unscoped.
func (c *Conn) Date() string { return c.date }

// RemoteAddr returns the originating address recorded at connect time.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ViewerID returns the generated QR viewer identity, empty when the
// connection never requested QR registration.
func (c *Conn) ViewerID() string { return c.viewerID }

// Touch records activity now.
func (c *Conn) Touch() {
	c.lastActivity.Store(c.clock.Now().UnixNano())
}

// LastActivity returns the time of the last inbound frame or successful send.
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// Capabilities returns a copy of the capability record.
func (c *Conn) Capabilities() domain.Capabilities {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	return c.caps
}

// MergeCapabilities folds a negotiation payload into the capability record.
func (c *Conn) MergeCapabilities(u domain.CapabilityUpdate) {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	c.caps = c.caps.Merge(u)
}

// SetLastPong records a heartbeat-pong reply.
func (c *Conn) SetLastPong(t time.Time) {
	c.capsMu.Lock()
	defer c.capsMu.Unlock()
	c.caps.LastPong = t
}

// MarkViewerRegistered flips the registered flag and reports whether this
// call was the first. Callers register with the external QR resource only
// when it returns true.
func (c *Conn) MarkViewerRegistered() bool {
	return c.viewerID != "" && c.qrRegistered.CompareAndSwap(false, true)
}

// TakeViewerRelease flips the flag back and reports whether a release is
// owed. It returns true exactly once after a successful registration, no
// matter how many exit paths race.
func (c *Conn) TakeViewerRelease() bool {
	return c.qrRegistered.CompareAndSwap(true, false)
}

// Send serializes the payload per the connection's capabilities and enqueues
// it for delivery. It reports false when the connection is closed, the
// payload cannot be serialized, or the client is too slow to keep up. A
// successful enqueue counts as activity.
func (c *Conn) Send(payload any) bool {
	if c.closed.Load() {
		return false
	}

	data, err := c.encode(payload)
	if err != nil {
		slog.Error("Failed to serialize outbound message", "conn_id", c.id, "error", err)
		return false
	}

	select {
	case c.sendCh <- data:
		c.Touch()
		return true
	default:
		metrics.SendFailures.Inc()
		slog.Warn("Send queue full, dropping message", "conn_id", c.id, "remote_addr", c.remoteAddr)
		return false
	}
}

// encode applies the serialization rule: strings pass through verbatim,
// everything else is JSON unless the client negotiated raw payloads.
func (c *Conn) encode(payload any) ([]byte, error) {
	if s, ok := payload.(string); ok {
		return []byte(s), nil
	}
	if c.Capabilities().SupportsJSON {
		return json.Marshal(payload)
	}
	return fmt.Appendf(nil, "%v", payload), nil
}

// IsOpen reports whether the connection can still accept sends.
func (c *Conn) IsOpen() bool { return !c.closed.Load() }

// Close tears down the writer and the underlying socket. Safe to call from
// any exit path, any number of times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.ws.Close()
	})
}

// CloseEvicted sends a normal closure frame before tearing down. Used by the
// inactivity sweep so well-behaved clients see a clean shutdown.
func (c *Conn) CloseEvicted(reason string) {
	if c.closed.Load() {
		return
	}
	deadline := time.Now().Add(writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	c.Close()
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data, ok := <-c.sendCh:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.SendFailures.Inc()
				slog.Debug("Write failed, closing connection", "conn_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
