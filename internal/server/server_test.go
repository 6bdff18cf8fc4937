package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Shvan11/ShwNodApp-sub005/internal/batch"
	"github.com/Shvan11/ShwNodApp-sub005/internal/bridge"
	"github.com/Shvan11/ShwNodApp-sub005/internal/config"
	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
	"github.com/Shvan11/ShwNodApp-sub005/internal/router"
)

// testBatchWindow keeps e2e batching tests fast.
const testBatchWindow = 50 * time.Millisecond

// --- Stub collaborators ---

type stubAppointments struct {
	mu           sync.Mutex
	appointments []domain.Appointment
	err          error
}

func (s *stubAppointments) LookupPresentAppointments(_ context.Context, _ string) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.appointments, nil
}

type stubPatients struct{}

func (stubPatients) LookupTimepointImageCodes(context.Context, string, string) ([]string, error) {
	return []string{"i10"}, nil
}

func (stubPatients) LookupLatestVisitSummary(context.Context, string) (*domain.VisitSummary, error) {
	return &domain.VisitSummary{}, nil
}

type stubMessaging struct{}

func (stubMessaging) QueryClientStatus(context.Context) (domain.ClientStatus, error) {
	return domain.ClientStatus{HasClient: true, Active: true}, nil
}

func (stubMessaging) DumpState(context.Context) (*domain.MessagingState, error) {
	return &domain.MessagingState{}, nil
}

// fakeViewerRegistry records register/release calls in order.
type fakeViewerRegistry struct {
	mu          sync.Mutex
	registered  []string
	released    []string
	registerErr error
}

func (f *fakeViewerRegistry) RegisterViewer(_ context.Context, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, viewerID)
	return nil
}

func (f *fakeViewerRegistry) ReleaseViewer(_ context.Context, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, viewerID)
	return nil
}

func (f *fakeViewerRegistry) ReconcileViewers(context.Context, []string) error { return nil }

func (f *fakeViewerRegistry) ViewerCount(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.registered) - len(f.released)), nil
}

func (f *fakeViewerRegistry) snapshot() (registered, released []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registered...), append([]string(nil), f.released...)
}

// --- Fixture ---

type serverFixture struct {
	ts           *httptest.Server
	hub          *hub.Hub
	bridge       *bridge.Bridge
	appointments *stubAppointments
	viewers      *fakeViewerRegistry
}

// newServerFixture assembles the full stack the way main does, with stub
// collaborators in place of Postgres and Redis.
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	clock := clockwork.NewRealClock()
	appointments := &stubAppointments{}
	patients := stubPatients{}
	viewers := &fakeViewerRegistry{}

	h := hub.New(clock, func(viewerID string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = viewers.ReleaseViewer(ctx, viewerID)
	})

	aggregator := batch.New(clock, testBatchWindow, func(key string, updates []domain.StatusUpdate) {
		h.BroadcastRole(domain.RoleWAStatus, domain.Envelope{
			Type: domain.MsgBatchStatus,
			Data: map[string]any{"date": key, "updates": updates},
		}, bridge.DateFilter(key))
	})

	eventBridge := bridge.New(h, aggregator, patients)
	rt := router.New(appointments, patients, stubMessaging{}, clock)

	cfg := &config.Config{AppEnv: "test", Port: "0", LogLevel: "error", LogFormat: "text"}
	srv := NewServer(cfg, h, rt, eventBridge, appointments, viewers, clock, nil, nil)

	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(func() {
		ts.Close()
		eventBridge.Stop()
		aggregator.Stop()
		h.Stop()
	})

	return &serverFixture{
		ts:           ts,
		hub:          h,
		bridge:       eventBridge,
		appointments: appointments,
		viewers:      viewers,
	}
}

func (f *serverFixture) dial(t *testing.T, query string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws?" + query
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *serverFixture) waitForConnections(t *testing.T, expected int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.TotalCount() == expected },
		2*time.Second, 5*time.Millisecond)
}

func readMessage(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(msg, &result))
	return result
}

func expectSilence(t *testing.T, conn *ws.Conn, within time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(within)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	netErr, ok := err.(interface{ Timeout() bool })
	require.True(t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
}
