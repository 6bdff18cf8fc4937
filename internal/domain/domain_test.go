package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected Role
	}{
		{"screen", RoleScreen},
		{"wa-status", RoleWAStatus},
		{"auth", RoleAuth},
		{"daily-appointments", RoleDailyAppointments},
		{"generic", RoleGeneric},
		{"  Screen ", RoleScreen},
		{"WA-STATUS", RoleWAStatus},
		{"kiosk", RoleGeneric},
		{"", RoleGeneric},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseRole(tt.input), "input %q", tt.input)
	}
}

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Role
	}{
		{"single", "screen", []Role{RoleScreen}},
		{"multiple", "wa-status,auth", []Role{RoleWAStatus, RoleAuth}},
		{"deduplicated", "auth,auth,AUTH", []Role{RoleAuth}},
		{"unknown falls back", "dashboard", []Role{RoleGeneric}},
		{"mixed known and unknown", "screen,dashboard", []Role{RoleScreen, RoleGeneric}},
		{"empty yields generic", "", []Role{RoleGeneric}},
		{"only separators", ", ,", []Role{RoleGeneric}},
		{"order preserved", "auth,screen,wa-status", []Role{RoleAuth, RoleScreen, RoleWAStatus}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRoles(tt.input))
		})
	}
}

func TestCapabilitiesMerge(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	caps := DefaultCapabilities()
	require.True(t, caps.SupportsJSON)
	require.False(t, caps.SupportsHeartbeat)

	// Absent fields leave the record untouched.
	caps = caps.Merge(CapabilityUpdate{})
	assert.True(t, caps.SupportsJSON)
	assert.False(t, caps.SupportsHeartbeat)

	// Explicit false is distinct from absent.
	caps = caps.Merge(CapabilityUpdate{SupportsJSON: boolPtr(false)})
	assert.False(t, caps.SupportsJSON)
	assert.False(t, caps.SupportsHeartbeat)

	caps = caps.Merge(CapabilityUpdate{SupportsHeartbeat: boolPtr(true)})
	assert.False(t, caps.SupportsJSON)
	assert.True(t, caps.SupportsHeartbeat)
}

func TestCapabilityUpdateIgnoresUnknownFields(t *testing.T) {
	var update CapabilityUpdate
	err := json.Unmarshal([]byte(`{"supportsJSON":true,"futureFlag":"x"}`), &update)
	require.NoError(t, err)
	require.NotNil(t, update.SupportsJSON)
	assert.True(t, *update.SupportsJSON)
	assert.Nil(t, update.SupportsHeartbeat)
}

func TestErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope("req-1", "request-patient", "patient not found")

	assert.Equal(t, MsgError, env.Type)
	assert.Equal(t, "req-1", env.ID)

	data := env.Data.(ErrorData)
	assert.Equal(t, "patient not found", data.Message)
	assert.Equal(t, "request-patient", data.Request)
}

func TestEnvelopeJSONOmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(Envelope{Type: "client-ready"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"client-ready"}`, string(raw))
}

func TestEventNames(t *testing.T) {
	tests := []struct {
		event    Event
		expected string
	}{
		{AppointmentsChanged{}, "appointment-state-changed"},
		{PatientLoaded{}, "patient-loaded"},
		{PatientUnloaded{}, "patient-unloaded"},
		{MessageStatusChanged{}, "wa-message-status"},
		{BroadcastRequested{}, "broadcast-request"},
		{QRUpdated{}, "qr-update"},
		{ClientReady{}, "client-ready"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.event.EventName())
	}
}
