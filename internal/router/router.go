// Package router dispatches inbound WebSocket frames. Dispatch is stateless:
// every frame is parsed, classified by its type discriminator, and handled in
// isolation. Collaborator failures never propagate past the dispatch site;
// they become typed error envelopes sent back to the requesting connection.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/hub"
	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

// inboundEnvelope defers payload decoding until the type is known.
type inboundEnvelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Router dispatches inbound frames to collaborator-backed handlers.
type Router struct {
	appointments domain.AppointmentDirectory
	patients     domain.PatientDirectory
	messaging    domain.MessagingGateway
	clock        clockwork.Clock
}

// New creates a router over the given collaborators.
func New(
	appointments domain.AppointmentDirectory,
	patients domain.PatientDirectory,
	messaging domain.MessagingGateway,
	clock clockwork.Clock,
) *Router {
	return &Router{
		appointments: appointments,
		patients:     patients,
		messaging:    messaging,
		clock:        clock,
	}
}

// HandleFrame routes one inbound frame. Non-JSON and type-less frames are
// logged at debug level and otherwise ignored; the connection stays open.
func (r *Router) HandleFrame(ctx context.Context, conn *hub.Conn, frame []byte) {
	conn.Touch()

	var env inboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		metrics.InboundFrames.WithLabelValues("raw").Inc()
		slog.Debug("Ignoring unroutable frame", "conn_id", conn.ID(), "size", len(frame))
		return
	}

	metrics.InboundFrames.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case domain.MsgHeartbeatPing:
		conn.Send(domain.Envelope{Type: domain.MsgHeartbeatPong, ID: env.ID})
	case domain.MsgHeartbeatPong:
		conn.SetLastPong(r.clock.Now())
	case domain.MsgClientCapabilities:
		r.handleCapabilities(conn, env)
	case domain.MsgRequestAppointments:
		r.handleRequestAppointments(ctx, conn, env)
	case domain.MsgRequestPatient:
		r.handleRequestPatient(ctx, conn, env)
	case domain.MsgRequestWhatsAppState:
		r.handleRequestWhatsAppState(ctx, conn, env)
	default:
		// Forward-compatible: unknown types are dropped without a reply.
		slog.Info("Dropping unknown message type", "conn_id", conn.ID(), "type", env.Type)
	}
}

func (r *Router) handleCapabilities(conn *hub.Conn, env inboundEnvelope) {
	var update domain.CapabilityUpdate
	if err := json.Unmarshal(env.Data, &update); err != nil {
		slog.Debug("Malformed capabilities payload", "conn_id", conn.ID(), "error", err)
		return
	}
	conn.MergeCapabilities(update)
	slog.Debug("Capabilities updated", "conn_id", conn.ID(), "caps", conn.Capabilities())
}

type appointmentsRequest struct {
	Date string `json:"date"`
}

func (r *Router) handleRequestAppointments(ctx context.Context, conn *hub.Conn, env inboundEnvelope) {
	var req appointmentsRequest
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &req)
	}

	// Effective date: payload date, else the connection's bound date.
	date := req.Date
	if date == "" {
		date = conn.Date()
	}

	appointments, err := r.appointments.LookupPresentAppointments(ctx, date)
	if err != nil {
		slog.Error("Appointment lookup failed", "conn_id", conn.ID(), "date", date, "error", err)
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type,
			fmt.Sprintf("failed to load appointments for %s", date)))
		return
	}

	conn.Send(domain.Envelope{
		Type: domain.MsgAppointmentsData,
		ID:   env.ID,
		Data: map[string]any{"date": date, "appointments": appointments},
	})
}

type patientRequest struct {
	PatientID string `json:"patientId"`
	Timepoint string `json:"timepoint"`
}

func (r *Router) handleRequestPatient(ctx context.Context, conn *hub.Conn, env inboundEnvelope) {
	var req patientRequest
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &req)
	}
	if req.PatientID == "" {
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type, "patientId is required"))
		return
	}

	images, err := r.patients.LookupTimepointImageCodes(ctx, req.PatientID, req.Timepoint)
	if err != nil {
		slog.Error("Image lookup failed", "conn_id", conn.ID(), "patient_id", req.PatientID, "error", err)
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type,
			fmt.Sprintf("failed to load patient %s", req.PatientID)))
		return
	}

	summary, err := r.patients.LookupLatestVisitSummary(ctx, req.PatientID)
	if err != nil {
		slog.Error("Visit summary lookup failed", "conn_id", conn.ID(), "patient_id", req.PatientID, "error", err)
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type,
			fmt.Sprintf("failed to load patient %s", req.PatientID)))
		return
	}

	conn.Send(domain.Envelope{
		Type: domain.MsgPatientData,
		ID:   env.ID,
		Data: map[string]any{
			"patientId":   req.PatientID,
			"timepoint":   req.Timepoint,
			"images":      images,
			"latestVisit": summary,
		},
	})
}

func (r *Router) handleRequestWhatsAppState(ctx context.Context, conn *hub.Conn, env inboundEnvelope) {
	status, err := r.messaging.QueryClientStatus(ctx)
	if err != nil {
		slog.Error("Messaging status query failed", "conn_id", conn.ID(), "error", err)
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type, "failed to query messaging client status"))
		return
	}

	state, err := r.messaging.DumpState(ctx)
	if err != nil {
		slog.Error("Messaging state dump failed", "conn_id", conn.ID(), "error", err)
		conn.Send(domain.ErrorEnvelope(env.ID, env.Type, "failed to load messaging state"))
		return
	}

	data := map[string]any{
		"status":       renderStatus(status, state),
		"clientStatus": status,
		"sentCount":    state.SentCount,
		"failedCount":  state.FailedCount,
		"finished":     state.Finished,
		"viewerCount":  state.ActiveViewerCount,
		"knownPersons": state.KnownPersons,
	}
	// The QR payload only matters while the client still needs scanning.
	if !status.Active && state.QRPayload != "" {
		data["qr"] = state.QRPayload
	}

	conn.Send(domain.Envelope{Type: domain.MsgWhatsAppStateResponse, ID: env.ID, Data: data})
}

// renderStatus composes the human-readable status line dashboards display.
func renderStatus(status domain.ClientStatus, state *domain.MessagingState) string {
	switch {
	case !status.HasClient:
		return "WhatsApp client not started"
	case status.Initializing:
		return "WhatsApp client initializing, scan QR to connect"
	case !status.Active:
		return "WhatsApp client disconnected"
	case state.Finished:
		return fmt.Sprintf("Finished: %d sent, %d failed", state.SentCount, state.FailedCount)
	default:
		return fmt.Sprintf("Sending: %d sent, %d failed", state.SentCount, state.FailedCount)
	}
}
