package hub

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

// Filter is an optional delivery predicate evaluated per connection.
type Filter func(c *Conn, caps domain.Capabilities) bool

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *Conn
}

func (cmdUnregister) hubCmd() {}

type cmdSendToScreen struct {
	screenID string
	payload  any
	filter   Filter
	okCh     chan bool
}

func (cmdSendToScreen) hubCmd() {}

type cmdBroadcastRole struct {
	role    domain.Role
	payload any
	filter  Filter
	countCh chan int
}

func (cmdBroadcastRole) hubCmd() {}

type cmdBroadcastAll struct {
	payload any
	filter  Filter
	countCh chan int
}

func (cmdBroadcastAll) hubCmd() {}

type cmdSweepInactive struct {
	idleFor time.Duration
	countCh chan int
}

func (cmdSweepInactive) hubCmd() {}

type cmdViewerIDs struct {
	replyCh chan []string
}

func (cmdViewerIDs) hubCmd() {}

type cmdRoleCount struct {
	role    domain.Role
	replyCh chan int
}

func (cmdRoleCount) hubCmd() {}

type cmdTotalCount struct {
	replyCh chan int
}

func (cmdTotalCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub is the connection registry and broadcast engine. A single goroutine
// owns the role indexes and the global set; every mutation and iteration
// flows through its command channel, so no mutation ever observes a
// half-updated index.
type Hub struct {
	cmdCh chan hubCmd
	clock clockwork.Clock

	conns   map[*Conn]struct{}
	screens map[string]*Conn
	byRole  map[domain.Role]map[*Conn]struct{}

	// onViewerReleased fires once per connection that held a QR viewer
	// registration, on whichever exit path runs first.
	onViewerReleased func(viewerID string)
}

// New creates the hub and starts its command loop. onViewerReleased may be
// nil when no QR resource is wired.
func New(clock clockwork.Clock, onViewerReleased func(viewerID string)) *Hub {
	h := &Hub{
		cmdCh:            make(chan hubCmd, 256),
		clock:            clock,
		conns:            make(map[*Conn]struct{}),
		screens:          make(map[string]*Conn),
		byRole:           make(map[domain.Role]map[*Conn]struct{}),
		onViewerReleased: onViewerReleased,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdSendToScreen:
			c.okCh <- h.handleSendToScreen(c)
		case cmdBroadcastRole:
			c.countCh <- h.deliver(h.members(c.role), c.payload, c.filter, "role")
		case cmdBroadcastAll:
			c.countCh <- h.deliver(h.allConns(), c.payload, c.filter, "global")
		case cmdSweepInactive:
			c.countCh <- h.handleSweep(c.idleFor)
		case cmdViewerIDs:
			c.replyCh <- h.handleViewerIDs()
		case cmdRoleCount:
			c.replyCh <- len(h.byRole[c.role])
		case cmdTotalCount:
			c.replyCh <- len(h.conns)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	conn := c.conn
	h.conns[conn] = struct{}{}

	for _, role := range conn.roles {
		set, ok := h.byRole[role]
		if !ok {
			set = make(map[*Conn]struct{})
			h.byRole[role] = set
		}
		set[conn] = struct{}{}
		metrics.ActiveConnections.WithLabelValues(string(role)).Inc()

		if role == domain.RoleScreen && conn.screenID != "" {
			if old, exists := h.screens[conn.screenID]; exists && old != conn {
				slog.Warn("Screen identity reassigned to new connection",
					"screen_id", conn.screenID, "old_conn", old.id, "new_conn", conn.id)
			}
			h.screens[conn.screenID] = conn
		}
	}

	slog.Info("Connection registered",
		"conn_id", conn.id, "roles", conn.roles, "remote_addr", conn.remoteAddr,
		"date", conn.date, "total", len(h.conns))
	c.errCh <- nil
}

// handleUnregister is the single convergence point for close, error, and
// eviction. It is a no-op when the connection was already removed.
func (h *Hub) handleUnregister(conn *Conn) {
	if _, ok := h.conns[conn]; !ok {
		return
	}
	delete(h.conns, conn)

	for _, role := range conn.roles {
		if set, ok := h.byRole[role]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(h.byRole, role)
			}
			metrics.ActiveConnections.WithLabelValues(string(role)).Dec()
		}
		if role == domain.RoleScreen && conn.screenID != "" && h.screens[conn.screenID] == conn {
			delete(h.screens, conn.screenID)
		}
	}

	conn.Close()

	if conn.TakeViewerRelease() && h.onViewerReleased != nil {
		h.onViewerReleased(conn.viewerID)
	}

	slog.Info("Connection unregistered", "conn_id", conn.id, "remaining", len(h.conns))
}

func (h *Hub) handleSendToScreen(c cmdSendToScreen) bool {
	conn, ok := h.screens[c.screenID]
	if !ok {
		slog.Debug("Targeted send skipped, screen not connected", "screen_id", c.screenID)
		return false
	}
	if !conn.IsOpen() {
		return false
	}
	if c.filter != nil && !c.filter(conn, conn.Capabilities()) {
		return false
	}
	if !conn.Send(c.payload) {
		return false
	}
	metrics.MessagesSent.WithLabelValues("targeted").Inc()
	return true
}

// deliver iterates a membership snapshot, skipping closed sockets and
// filtered connections. A failure on one connection never aborts delivery to
// its siblings.
func (h *Hub) deliver(members []*Conn, payload any, filter Filter, scope string) int {
	sent := 0
	for _, conn := range members {
		if !conn.IsOpen() {
			continue
		}
		if filter != nil && !filter(conn, conn.Capabilities()) {
			continue
		}
		if conn.Send(payload) {
			sent++
		}
	}
	if sent > 0 {
		metrics.MessagesSent.WithLabelValues(scope).Add(float64(sent))
	}
	return sent
}

func (h *Hub) members(role domain.Role) []*Conn {
	set := h.byRole[role]
	out := make([]*Conn, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) allConns() []*Conn {
	out := make([]*Conn, 0, len(h.conns))
	for conn := range h.conns {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) handleSweep(idleFor time.Duration) int {
	cutoff := h.clock.Now().Add(-idleFor)
	var victims []*Conn
	for conn := range h.conns {
		if conn.LastActivity().Before(cutoff) {
			victims = append(victims, conn)
		}
	}
	for _, conn := range victims {
		slog.Info("Evicting inactive connection",
			"conn_id", conn.id, "remote_addr", conn.remoteAddr,
			"last_activity", conn.LastActivity())
		conn.CloseEvicted("inactive")
		h.handleUnregister(conn)
		metrics.EvictedConnections.Inc()
	}
	return len(victims)
}

// handleViewerIDs snapshots the viewer identities of every registered
// QR-capable connection. This is the authoritative list the reconciler
// hands to the external QR resource.
func (h *Hub) handleViewerIDs() []string {
	var ids []string
	for conn := range h.conns {
		if conn.viewerID != "" && conn.qrRegistered.Load() {
			ids = append(ids, conn.viewerID)
		}
	}
	return ids
}

func (h *Hub) handleStop() {
	for conn := range h.conns {
		h.handleUnregister(conn)
	}
}

// --- Public API ---

// Register inserts the connection into the global set and every requested
// role index.
func (h *Hub) Register(conn *Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

// Unregister removes the connection from all indexes and releases any owned
// QR registration. No-op when already removed.
func (h *Hub) Unregister(conn *Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// SendToScreen delivers to exactly one connection resolved by screen
// identity. It reports whether delivery occurred.
func (h *Hub) SendToScreen(screenID string, payload any, filter Filter) bool {
	okCh := make(chan bool, 1)
	h.cmdCh <- cmdSendToScreen{screenID: screenID, payload: payload, filter: filter, okCh: okCh}
	return <-okCh
}

// BroadcastRole delivers to all open members of a role, returning the number
// of successful sends.
func (h *Hub) BroadcastRole(role domain.Role, payload any, filter Filter) int {
	countCh := make(chan int, 1)
	h.cmdCh <- cmdBroadcastRole{role: role, payload: payload, filter: filter, countCh: countCh}
	return <-countCh
}

// BroadcastAll delivers to every open connection.
func (h *Hub) BroadcastAll(payload any, filter Filter) int {
	countCh := make(chan int, 1)
	h.cmdCh <- cmdBroadcastAll{payload: payload, filter: filter, countCh: countCh}
	return <-countCh
}

// SweepInactive evicts connections idle longer than idleFor and returns the
// eviction count.
func (h *Hub) SweepInactive(idleFor time.Duration) int {
	countCh := make(chan int, 1)
	h.cmdCh <- cmdSweepInactive{idleFor: idleFor, countCh: countCh}
	return <-countCh
}

// ViewerIDs returns the viewer identities of all currently registered
// QR-capable connections.
func (h *Hub) ViewerIDs() []string {
	replyCh := make(chan []string, 1)
	h.cmdCh <- cmdViewerIDs{replyCh: replyCh}
	return <-replyCh
}

// RoleCount returns the number of connections registered under a role.
func (h *Hub) RoleCount(role domain.Role) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdRoleCount{role: role, replyCh: replyCh}
	return <-replyCh
}

// TotalCount returns the size of the global connection set.
func (h *Hub) TotalCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdTotalCount{replyCh: replyCh}
	return <-replyCh
}

// Stop closes every connection and shuts down the command loop.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
