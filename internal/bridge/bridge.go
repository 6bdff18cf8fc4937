// Package bridge is the process-wide publish point for domain events.
// Business-layer collaborators publish fire-and-forget; a single dispatcher
// goroutine drains a bounded queue and turns each event into the correct
// broadcast, so ordering and backpressure are explicit instead of implied.
package bridge

import (
	"context"
	"log/slog"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

const queueSize = 256

// Broadcaster is the hub surface the bridge dispatches through.
type Broadcaster interface {
	SendToScreen(screenID string, payload any, filter hub.Filter) bool
	BroadcastRole(role domain.Role, payload any, filter hub.Filter) int
	BroadcastAll(payload any, filter hub.Filter) int
}

// StatusBatcher receives per-message status updates for coalescing.
type StatusBatcher interface {
	Add(key string, update domain.StatusUpdate)
}

// Bridge consumes published domain events and fans them out.
type Bridge struct {
	events   chan domain.Event
	hub      Broadcaster
	batches  StatusBatcher
	patients domain.PatientDirectory
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates the bridge and starts its dispatcher.
func New(h Broadcaster, batches StatusBatcher, patients domain.PatientDirectory) *Bridge {
	b := &Bridge{
		events:   make(chan domain.Event, queueSize),
		hub:      h,
		batches:  batches,
		patients: patients,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Publish enqueues an event without blocking the caller. When the queue is
// full the event is counted and dropped; this layer is a volatile fan-out
// bus, not a durable log. Publishing after Stop is a silent no-op.
func (b *Bridge) Publish(ev domain.Event) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	select {
	case b.events <- ev:
		metrics.BridgeEvents.WithLabelValues(ev.EventName()).Inc()
	default:
		metrics.BridgeDropped.Inc()
		slog.Warn("Bridge queue full, dropping event", "event", ev.EventName())
	}
}

// Convenience publishers for collaborators.

func (b *Bridge) PublishAppointmentsChanged(date string) {
	b.Publish(domain.AppointmentsChanged{Date: date})
}

func (b *Bridge) PublishPatientLoaded(screenID, patientID, timepoint string) {
	b.Publish(domain.PatientLoaded{ScreenID: screenID, PatientID: patientID, Timepoint: timepoint})
}

func (b *Bridge) PublishPatientUnloaded(screenID string) {
	b.Publish(domain.PatientUnloaded{ScreenID: screenID})
}

func (b *Bridge) PublishMessageStatus(date string, update domain.StatusUpdate) {
	b.Publish(domain.MessageStatusChanged{Date: date, Update: update})
}

func (b *Bridge) PublishBroadcast(role domain.Role, msg domain.Envelope) {
	b.Publish(domain.BroadcastRequested{Role: role, Message: msg})
}

func (b *Bridge) PublishQRUpdate(payload string) {
	b.Publish(domain.QRUpdated{Payload: payload})
}

func (b *Bridge) PublishClientReady() {
	b.Publish(domain.ClientReady{})
}

// Stop rejects further publishes, drains the already-enqueued events, and
// waits for the dispatcher to exit.
func (b *Bridge) Stop() {
	close(b.stopCh)
	<-b.doneCh
}

func (b *Bridge) run() {
	defer close(b.doneCh)
	for {
		select {
		case ev := <-b.events:
			b.handle(context.Background(), ev)
		case <-b.stopCh:
			for {
				select {
				case ev := <-b.events:
					b.handle(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (b *Bridge) handle(ctx context.Context, ev domain.Event) {
	switch e := ev.(type) {
	case domain.AppointmentsChanged:
		b.handleAppointmentsChanged(e)
	case domain.PatientLoaded:
		b.handlePatientLoaded(ctx, e)
	case domain.PatientUnloaded:
		// Best-effort UI nudge; an absent screen is not an error.
		if !b.hub.SendToScreen(e.ScreenID, domain.Envelope{Type: domain.MsgPatientUnloaded}, nil) {
			slog.Debug("patient-unloaded dropped, screen not connected", "screen_id", e.ScreenID)
		}
	case domain.MessageStatusChanged:
		b.batches.Add(e.Date, e.Update)
	case domain.BroadcastRequested:
		if e.Role == "" {
			b.hub.BroadcastAll(e.Message, nil)
		} else {
			b.hub.BroadcastRole(e.Role, e.Message, nil)
		}
	case domain.QRUpdated:
		msg := domain.Envelope{Type: domain.MsgQRUpdate, Data: map[string]any{"qr": e.Payload}}
		b.hub.BroadcastRole(domain.RoleWAStatus, msg, nil)
		b.hub.BroadcastRole(domain.RoleAuth, msg, nil)
	case domain.ClientReady:
		msg := domain.Envelope{Type: domain.MsgClientReady}
		b.hub.BroadcastRole(domain.RoleWAStatus, msg, nil)
		b.hub.BroadcastRole(domain.RoleAuth, msg, nil)
	default:
		slog.Warn("Bridge received unhandled event", "event", ev.EventName())
	}
}

func (b *Bridge) handleAppointmentsChanged(e domain.AppointmentsChanged) {
	msg := domain.Envelope{
		Type: domain.MsgAppointmentsUpdated,
		Data: map[string]any{"date": e.Date},
	}
	filter := DateFilter(e.Date)
	b.hub.BroadcastRole(domain.RoleDailyAppointments, msg, filter)
	// Legacy kiosk screens also render the daily list.
	b.hub.BroadcastRole(domain.RoleScreen, msg, filter)
}

func (b *Bridge) handlePatientLoaded(ctx context.Context, e domain.PatientLoaded) {
	images, err := b.patients.LookupTimepointImageCodes(ctx, e.PatientID, e.Timepoint)
	if err != nil {
		slog.Error("patient-loaded image lookup failed", "patient_id", e.PatientID, "error", err)
		return
	}
	summary, err := b.patients.LookupLatestVisitSummary(ctx, e.PatientID)
	if err != nil {
		slog.Error("patient-loaded visit lookup failed", "patient_id", e.PatientID, "error", err)
		return
	}

	msg := domain.Envelope{
		Type: domain.MsgPatientLoaded,
		Data: map[string]any{
			"patientId":   e.PatientID,
			"timepoint":   e.Timepoint,
			"images":      images,
			"latestVisit": summary,
		},
	}
	if !b.hub.SendToScreen(e.ScreenID, msg, nil) {
		slog.Debug("patient-loaded dropped, screen not connected", "screen_id", e.ScreenID)
	}
}

// DateFilter passes connections bound to the given date and connections with
// no date filter at all.
func DateFilter(date string) hub.Filter {
	return func(c *hub.Conn, _ domain.Capabilities) bool {
		return c.Date() == "" || c.Date() == date
	}
}
