package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	// ActiveConnections tracks currently registered connections by role.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Currently registered WebSocket connections by role",
		},
		[]string{"role"},
	)

	// EvictedConnections tracks connections removed by the inactivity sweep.
	EvictedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_evicted_connections_total",
			Help: "Connections forcibly closed by the inactivity sweep",
		},
	)
)

// Delivery metrics
var (
	// MessagesSent tracks successful sends by delivery scope (targeted/role/global).
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_sent_total",
			Help: "Successful WebSocket sends by delivery scope",
		},
		[]string{"scope"},
	)

	// SendFailures tracks per-connection delivery failures (slow or closed sockets).
	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_send_failures_total",
			Help: "Per-connection send failures during delivery",
		},
	)

	// InboundFrames tracks routed inbound frames by message type ("raw" for unparsed).
	InboundFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_inbound_frames_total",
			Help: "Inbound WebSocket frames by message type",
		},
		[]string{"type"},
	)
)

// Aggregation metrics
var (
	// BatchFlushes tracks flushed status batches.
	BatchFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "status_batch_flushes_total",
			Help: "Flushed status-update batches",
		},
	)

	// BatchedUpdates tracks individual updates coalesced into batches.
	BatchedUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "status_batched_updates_total",
			Help: "Individual status updates coalesced into batches",
		},
	)
)

// QR viewer metrics
var (
	// QRViewerRegistrations tracks viewer registrations against the QR resource.
	QRViewerRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qr_viewer_registrations_total",
			Help: "QR viewer registrations",
		},
	)

	// QRViewerReleases tracks viewer releases.
	QRViewerReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qr_viewer_releases_total",
			Help: "QR viewer releases",
		},
	)
)

// Bridge metrics
var (
	// BridgeEvents tracks domain events accepted by the bridge, by event name.
	BridgeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_total",
			Help: "Domain events accepted by the event bridge",
		},
		[]string{"event"},
	)

	// BridgeDropped tracks events dropped because the bridge queue was full.
	BridgeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_events_dropped_total",
			Help: "Domain events dropped due to a full bridge queue",
		},
	)
)
