package domain

// Envelope is the wire unit: a type discriminator, an optional correlation
// id, and an opaque payload.
type Envelope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Inbound message types.
const (
	MsgHeartbeatPing        = "heartbeat-ping"
	MsgHeartbeatPong        = "heartbeat-pong"
	MsgClientCapabilities   = "client-capabilities"
	MsgRequestAppointments  = "request-appointments"
	MsgRequestPatient       = "request-patient"
	MsgRequestWhatsAppState = "request-whatsapp-initial-state"
)

// Outbound message types.
const (
	MsgAppointmentsData      = "appointments-data"
	MsgAppointmentsUpdated   = "appointments-updated"
	MsgPatientData           = "patient-data"
	MsgPatientLoaded         = "patient-loaded"
	MsgPatientUnloaded       = "patient-unloaded"
	MsgWhatsAppStateResponse = "whatsapp-initial-state-response"
	MsgQRUpdate              = "qr-update"
	MsgClientReady           = "client-ready"
	MsgMessageStatus         = "message-status"
	MsgBatchStatus           = "batch-status"
	MsgError                 = "error"
)

// ErrorData is the payload of an outbound error envelope.
type ErrorData struct {
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

// ErrorEnvelope builds the best-effort error reply for a failed request.
func ErrorEnvelope(id, request, message string) Envelope {
	return Envelope{
		Type: MsgError,
		ID:   id,
		Data: ErrorData{Message: message, Request: request},
	}
}
