// Package redis implements the messaging-state and QR-viewer collaborators
// on Redis. The viewer refcount is a set of viewer ids rather than a bare
// counter, so reconciliation can remove exactly the entries orphaned by
// abnormal termination.
package redis
