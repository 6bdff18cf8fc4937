package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
)

type sentCall struct {
	scope    string // "screen", "role", "all"
	screenID string
	role     domain.Role
	payload  any
	filtered bool
}

type recordingBroadcaster struct {
	mu           sync.Mutex
	calls        []sentCall
	screenOnline bool
}

func (r *recordingBroadcaster) SendToScreen(screenID string, payload any, filter hub.Filter) bool {
	r.record(sentCall{scope: "screen", screenID: screenID, payload: payload, filtered: filter != nil})
	return r.screenOnline
}

func (r *recordingBroadcaster) BroadcastRole(role domain.Role, payload any, filter hub.Filter) int {
	r.record(sentCall{scope: "role", role: role, payload: payload, filtered: filter != nil})
	return 1
}

func (r *recordingBroadcaster) BroadcastAll(payload any, filter hub.Filter) int {
	r.record(sentCall{scope: "all", payload: payload, filtered: filter != nil})
	return 1
}

func (r *recordingBroadcaster) record(c sentCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingBroadcaster) all() []sentCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingBatcher struct {
	mu      sync.Mutex
	keys    []string
	updates []domain.StatusUpdate
}

func (r *recordingBatcher) Add(key string, update domain.StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.updates = append(r.updates, update)
}

func (r *recordingBatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

type stubPatients struct {
	images     []string
	imagesErr  error
	summary    *domain.VisitSummary
	summaryErr error
}

func (s *stubPatients) LookupTimepointImageCodes(context.Context, string, string) ([]string, error) {
	return s.images, s.imagesErr
}

func (s *stubPatients) LookupLatestVisitSummary(context.Context, string) (*domain.VisitSummary, error) {
	return s.summary, s.summaryErr
}

func newTestBridge(t *testing.T) (*Bridge, *recordingBroadcaster, *recordingBatcher, *stubPatients) {
	t.Helper()
	broadcaster := &recordingBroadcaster{screenOnline: true}
	batcher := &recordingBatcher{}
	patients := &stubPatients{}
	b := New(broadcaster, batcher, patients)
	t.Cleanup(func() { b.Stop() })
	return b, broadcaster, batcher, patients
}

func waitForCalls(t *testing.T, broadcaster *recordingBroadcaster, expected int) {
	t.Helper()
	require.Eventually(t, func() bool { return broadcaster.count() == expected },
		time.Second, time.Millisecond)
}

func TestBridge_AppointmentsChangedFansOutDateScoped(t *testing.T) {
	b, broadcaster, _, _ := newTestBridge(t)

	b.PublishAppointmentsChanged("2024-03-01")
	waitForCalls(t, broadcaster, 2)

	calls := broadcaster.all()
	roles := map[domain.Role]bool{}
	for _, c := range calls {
		assert.Equal(t, "role", c.scope)
		assert.True(t, c.filtered, "appointments fan-out must be date-scoped")
		roles[c.role] = true

		env := c.payload.(domain.Envelope)
		assert.Equal(t, domain.MsgAppointmentsUpdated, env.Type)
		assert.Equal(t, "2024-03-01", env.Data.(map[string]any)["date"])
	}
	assert.True(t, roles[domain.RoleDailyAppointments])
	assert.True(t, roles[domain.RoleScreen])
}

func TestBridge_PatientLoadedComposesPayload(t *testing.T) {
	b, broadcaster, _, patients := newTestBridge(t)
	patients.images = []string{"i10"}
	patients.summary = &domain.VisitSummary{PatientID: "p-3", Summary: "bonding"}

	b.PublishPatientLoaded("room-2", "p-3", "1")
	waitForCalls(t, broadcaster, 1)

	call := broadcaster.all()[0]
	assert.Equal(t, "screen", call.scope)
	assert.Equal(t, "room-2", call.screenID)

	env := call.payload.(domain.Envelope)
	assert.Equal(t, domain.MsgPatientLoaded, env.Type)
	data := env.Data.(map[string]any)
	assert.Equal(t, "p-3", data["patientId"])
	assert.Equal(t, []string{"i10"}, data["images"])
}

func TestBridge_PatientLoadedLookupFailureDropsEvent(t *testing.T) {
	b, broadcaster, _, patients := newTestBridge(t)
	patients.imagesErr = errors.New("db down")

	b.PublishPatientLoaded("room-2", "p-3", "1")
	// Nothing reaches the hub; later events still dispatch.
	b.PublishClientReady()
	waitForCalls(t, broadcaster, 2)

	for _, c := range broadcaster.all() {
		env := c.payload.(domain.Envelope)
		assert.Equal(t, domain.MsgClientReady, env.Type)
	}
}

func TestBridge_PatientLoadedAbsentScreenSilent(t *testing.T) {
	b, broadcaster, _, patients := newTestBridge(t)
	broadcaster.screenOnline = false
	patients.summary = &domain.VisitSummary{}

	b.PublishPatientLoaded("room-9", "p-1", "0")
	waitForCalls(t, broadcaster, 1)
	// Delivery failure is absorbed, no retries and no extra traffic.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, broadcaster.count())
}

func TestBridge_PatientUnloaded(t *testing.T) {
	b, broadcaster, _, _ := newTestBridge(t)

	b.PublishPatientUnloaded("room-1")
	waitForCalls(t, broadcaster, 1)

	call := broadcaster.all()[0]
	assert.Equal(t, "room-1", call.screenID)
	assert.Equal(t, domain.MsgPatientUnloaded, call.payload.(domain.Envelope).Type)
}

func TestBridge_MessageStatusGoesToBatcher(t *testing.T) {
	b, broadcaster, batcher, _ := newTestBridge(t)

	b.PublishMessageStatus("2024-03-01", domain.StatusUpdate{MessageID: "m-1", Status: "read"})

	require.Eventually(t, func() bool { return batcher.count() == 1 },
		time.Second, time.Millisecond)

	batcher.mu.Lock()
	assert.Equal(t, "2024-03-01", batcher.keys[0])
	assert.Equal(t, "m-1", batcher.updates[0].MessageID)
	batcher.mu.Unlock()

	// Status updates never bypass the aggregator.
	assert.Equal(t, 0, broadcaster.count())
}

func TestBridge_BroadcastRequestRoleAndGlobal(t *testing.T) {
	b, broadcaster, _, _ := newTestBridge(t)

	b.PublishBroadcast(domain.RoleWAStatus, domain.Envelope{Type: "qr-update"})
	b.PublishBroadcast("", domain.Envelope{Type: "client-ready"})
	waitForCalls(t, broadcaster, 2)

	calls := broadcaster.all()
	assert.Equal(t, "role", calls[0].scope)
	assert.Equal(t, domain.RoleWAStatus, calls[0].role)
	assert.Equal(t, "all", calls[1].scope)
}

func TestBridge_QRUpdateReachesStatusAndAuth(t *testing.T) {
	b, broadcaster, _, _ := newTestBridge(t)

	b.PublishQRUpdate("qr-blob")
	waitForCalls(t, broadcaster, 2)

	roles := map[domain.Role]bool{}
	for _, c := range broadcaster.all() {
		roles[c.role] = true
		env := c.payload.(domain.Envelope)
		assert.Equal(t, domain.MsgQRUpdate, env.Type)
		assert.Equal(t, "qr-blob", env.Data.(map[string]any)["qr"])
	}
	assert.True(t, roles[domain.RoleWAStatus])
	assert.True(t, roles[domain.RoleAuth])
}

func TestBridge_EventOrderingPreserved(t *testing.T) {
	b, broadcaster, _, _ := newTestBridge(t)

	for range 10 {
		b.PublishPatientUnloaded("room-1")
		b.PublishClientReady()
	}
	// 10 unloads + 10 ready (2 role broadcasts each) = 30 calls.
	waitForCalls(t, broadcaster, 30)

	calls := broadcaster.all()
	for i := 0; i < 30; i += 3 {
		assert.Equal(t, "screen", calls[i].scope)
		assert.Equal(t, "role", calls[i+1].scope)
		assert.Equal(t, "role", calls[i+2].scope)
	}
}

func TestBridge_StopDrainsQueueAndRejectsNewEvents(t *testing.T) {
	broadcaster := &recordingBroadcaster{screenOnline: true}
	b := New(broadcaster, &recordingBatcher{}, &stubPatients{})

	for range 5 {
		b.PublishPatientUnloaded("room-1")
	}
	b.Stop()

	// Everything enqueued before Stop is dispatched.
	assert.Equal(t, 5, broadcaster.count())

	// Publishing after Stop neither panics nor dispatches.
	b.PublishPatientUnloaded("room-1")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, broadcaster.count())
}
