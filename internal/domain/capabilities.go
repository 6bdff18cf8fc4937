package domain

import "time"

// Capabilities is the per-connection capability record. It is mutated by the
// message router on capability-negotiation and heartbeat messages and read by
// the broadcast engine to choose serialization.
type Capabilities struct {
	// SupportsJSON indicates the client accepts structured JSON payloads.
	// When false, outbound payloads are coerced to plain strings.
	SupportsJSON bool
	// SupportsHeartbeat indicates the client participates in ping/pong.
	SupportsHeartbeat bool
	// LastPong is the time of the last heartbeat-pong received.
	LastPong time.Time
}

// DefaultCapabilities is the record attached to a fresh connection before
// any negotiation: structured payloads on, heartbeat off.
func DefaultCapabilities() Capabilities {
	return Capabilities{SupportsJSON: true}
}

// CapabilityUpdate is the client-capabilities message payload. Pointer
// fields distinguish "absent" from "explicitly false"; unknown JSON fields
// are ignored.
type CapabilityUpdate struct {
	SupportsJSON      *bool `json:"supportsJSON"`
	SupportsHeartbeat *bool `json:"supportsHeartbeat"`
}

// Merge folds an update into the record, leaving absent fields untouched.
func (c Capabilities) Merge(u CapabilityUpdate) Capabilities {
	if u.SupportsJSON != nil {
		c.SupportsJSON = *u.SupportsJSON
	}
	if u.SupportsHeartbeat != nil {
		c.SupportsHeartbeat = *u.SupportsHeartbeat
	}
	return c
}
