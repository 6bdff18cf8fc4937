// Package domain holds the core types of the real-time layer: connection
// roles, the wire envelope, client capabilities, domain events, and the
// collaborator interfaces the layer consumes. It has no dependencies on
// infrastructure packages.
package domain
