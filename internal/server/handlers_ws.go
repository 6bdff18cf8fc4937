package server

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the reverse proxy
	},
}

// handleWebSocket accepts one client connection, classifies it by the
// clientType query parameter, registers it, pushes initial data where the
// role calls for it, and then pumps inbound frames through the router until
// the connection ends. Close, read error, and eviction all converge on the
// same unregister path.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.limiter.Acquire() {
		return c.String(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.limiter.Release()

	req := c.Request()
	roles := domain.ParseRoles(c.QueryParam("clientType"))
	date := c.QueryParam("PDate")
	needsQR := c.QueryParam("needsQR") == "true"

	cfg := hub.ConnConfig{
		Roles:      roles,
		Date:       date,
		RemoteAddr: remoteHost(req.RemoteAddr),
	}
	if hasRole(roles, domain.RoleScreen) {
		cfg.ScreenID = c.QueryParam("screenId")
		if cfg.ScreenID == "" {
			cfg.ScreenID = cfg.RemoteAddr
		}
	}
	if needsQR {
		cfg.ViewerID = uuid.NewString()
	}

	ws, err := upgrader.Upgrade(c.Response(), req, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "remote_addr", req.RemoteAddr, "error", err)
		return nil
	}

	conn := hub.NewConn(ws, s.clock, cfg)
	if err := s.hub.Register(conn); err != nil {
		slog.Error("Failed to register connection", "error", err)
		conn.Close()
		return nil
	}
	defer s.hub.Unregister(conn)

	ctx := req.Context()

	// Register against the external QR resource at most once per connection;
	// the hub releases it on whichever exit path runs first.
	if conn.MarkViewerRegistered() {
		if err := s.viewers.RegisterViewer(ctx, conn.ViewerID()); err != nil {
			conn.TakeViewerRelease()
			slog.Error("Failed to register QR viewer", "viewer_id", conn.ViewerID(), "error", err)
		}
	}

	s.pushInitialData(c, conn)

	// Read pump — blocks until the connection closes.
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			slog.Debug("Read loop ended", "conn_id", conn.ID(), "error", err)
			break
		}
		s.router.HandleFrame(ctx, conn, frame)
	}

	return nil
}

// pushInitialData sends the first frame a role expects right after connect,
// so live views render without an extra request round-trip.
func (s *Server) pushInitialData(c echo.Context, conn *hub.Conn) {
	if !hasRole(conn.Roles(), domain.RoleDailyAppointments) || conn.Date() == "" {
		return
	}

	appointments, err := s.appointments.LookupPresentAppointments(c.Request().Context(), conn.Date())
	if err != nil {
		slog.Error("Initial appointment push failed", "conn_id", conn.ID(), "date", conn.Date(), "error", err)
		conn.Send(domain.ErrorEnvelope("", domain.MsgRequestAppointments,
			"failed to load appointments for "+conn.Date()))
		return
	}

	conn.Send(domain.Envelope{
		Type: domain.MsgAppointmentsData,
		Data: map[string]any{"date": conn.Date(), "appointments": appointments},
	})
}

func hasRole(roles []domain.Role, want domain.Role) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
