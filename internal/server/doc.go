// Package server implements the HTTP surface using the Echo framework.
//
// Routes: the single multiplexed WebSocket endpoint (/ws), health probes,
// and Prometheus metrics. All business CRUD lives in other services; this
// server only carries the real-time layer.
package server
