package domain

// Event is a domain event published into the bridge by business-layer
// collaborators. The set is closed: each variant has exactly one handler.
type Event interface {
	EventName() string
}

// AppointmentsChanged signals that the appointment state of a clinic day
// changed and live views should refresh.
type AppointmentsChanged struct {
	Date string
}

func (AppointmentsChanged) EventName() string { return "appointment-state-changed" }

// PatientLoaded signals that a patient was brought up on a named screen.
type PatientLoaded struct {
	ScreenID  string
	PatientID string
	Timepoint string
}

func (PatientLoaded) EventName() string { return "patient-loaded" }

// PatientUnloaded signals that the named screen should clear its patient.
type PatientUnloaded struct {
	ScreenID string
}

func (PatientUnloaded) EventName() string { return "patient-unloaded" }

// MessageStatusChanged carries one per-message WhatsApp delivery-status
// change, grouped for batching by its date key.
type MessageStatusChanged struct {
	Date   string
	Update StatusUpdate
}

func (MessageStatusChanged) EventName() string { return "wa-message-status" }

// BroadcastRequested is a generic fan-out request. An empty Role targets
// every connection.
type BroadcastRequested struct {
	Role    Role
	Message Envelope
}

func (BroadcastRequested) EventName() string { return "broadcast-request" }

// QRUpdated signals that the authentication QR payload rotated.
type QRUpdated struct {
	Payload string
}

func (QRUpdated) EventName() string { return "qr-update" }

// ClientReady signals that the messaging client finished initializing.
type ClientReady struct{}

func (ClientReady) EventName() string { return "client-ready" }
