package domain

import (
	"context"
	"time"
)

// Appointment is one entry of a day's present-appointment set.
type Appointment struct {
	ID          int       `json:"id"`
	PatientID   string    `json:"patientId"`
	PatientName string    `json:"patientName"`
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Present     bool      `json:"present"`
	Seated      bool      `json:"seated"`
	Dismissed   bool      `json:"dismissed"`
}

// VisitSummary is the latest-visit summary of a patient.
type VisitSummary struct {
	PatientID string    `json:"patientId"`
	VisitDate time.Time `json:"visitDate"`
	Summary   string    `json:"summary"`
}

// ClientStatus describes the messaging client's connection state.
type ClientStatus struct {
	Active       bool `json:"active"`
	Initializing bool `json:"initializing"`
	HasClient    bool `json:"hasClient"`
}

// MessagingState is a full dump of the messaging subsystem's progress.
type MessagingState struct {
	SentCount         int      `json:"sentCount"`
	FailedCount       int      `json:"failedCount"`
	Finished          bool     `json:"finished"`
	QRPayload         string   `json:"qrPayload,omitempty"`
	ActiveViewerCount int      `json:"activeViewerCount"`
	KnownPersons      []string `json:"knownPersons,omitempty"`
}

// StatusUpdate is one per-message delivery-status change.
type StatusUpdate struct {
	MessageID string    `json:"messageId"`
	PersonID  string    `json:"personId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AppointmentDirectory resolves the present appointments of a clinic day.
type AppointmentDirectory interface {
	LookupPresentAppointments(ctx context.Context, date string) ([]Appointment, error)
}

// PatientDirectory resolves patient imaging codes and visit summaries.
type PatientDirectory interface {
	LookupTimepointImageCodes(ctx context.Context, patientID, timepoint string) ([]string, error)
	LookupLatestVisitSummary(ctx context.Context, patientID string) (*VisitSummary, error)
}

// MessagingGateway exposes the WhatsApp messaging collaborator's state.
type MessagingGateway interface {
	QueryClientStatus(ctx context.Context) (ClientStatus, error)
	DumpState(ctx context.Context) (*MessagingState, error)
}

// QRViewerRegistry tracks which connections are displaying the
// authentication QR code. The refcount is owned by the collaborator; this
// layer only registers, releases, and periodically reconciles viewer ids.
type QRViewerRegistry interface {
	RegisterViewer(ctx context.Context, viewerID string) error
	ReleaseViewer(ctx context.Context, viewerID string) error
	// ReconcileViewers passes the authoritative list of currently-connected
	// viewer ids so the registry can drop entries orphaned by abnormal
	// termination. It never blindly overwrites live registrations.
	ReconcileViewers(ctx context.Context, live []string) error
	ViewerCount(ctx context.Context) (int64, error)
}
