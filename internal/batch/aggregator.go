// Package batch coalesces high-frequency per-entity status updates into one
// outbound frame per debounce window, keyed by date.
package batch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

// DefaultWindow is the debounce interval during which updates for one key
// are merged into a single flush.
const DefaultWindow = 1 * time.Second

// EmitFunc receives the key and the full ordered update list of one flush.
type EmitFunc func(key string, updates []domain.StatusUpdate)

// Aggregator buffers updates per key and flushes each buffer once per
// debounce window. At most one timer is armed per key; updates arriving
// between arming and firing join the same flush. No update is ever dropped,
// only delivery is merged.
type Aggregator struct {
	clock  clockwork.Clock
	window time.Duration
	emit   EmitFunc

	mu      sync.Mutex
	pending map[string][]domain.StatusUpdate
	timers  map[string]clockwork.Timer
	stopped bool
}

// New creates an aggregator flushing through emit after each window.
func New(clock clockwork.Clock, window time.Duration, emit EmitFunc) *Aggregator {
	return &Aggregator{
		clock:   clock,
		window:  window,
		emit:    emit,
		pending: make(map[string][]domain.StatusUpdate),
		timers:  make(map[string]clockwork.Timer),
	}
}

// Add appends an update to the key's buffer and arms the flush timer if none
// is pending for that key.
func (a *Aggregator) Add(key string, update domain.StatusUpdate) {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		slog.Warn("Aggregator stopped, dropping update", "key", key)
		return
	}

	a.pending[key] = append(a.pending[key], update)
	metrics.BatchedUpdates.Inc()

	if _, armed := a.timers[key]; !armed {
		a.timers[key] = a.clock.AfterFunc(a.window, func() { a.flush(key) })
	}
	a.mu.Unlock()
}

// flush atomically takes the key's buffer and clears its timer, then emits
// the batch outside the lock. Independent keys never interfere.
func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	updates := a.pending[key]
	delete(a.pending, key)
	delete(a.timers, key)
	a.mu.Unlock()

	if len(updates) == 0 {
		return
	}

	metrics.BatchFlushes.Inc()
	slog.Debug("Flushing status batch", "key", key, "updates", len(updates))
	a.emit(key, updates)
}

// Stop cancels all armed timers and drains any buffered updates through one
// final flush per key.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.stopped = true
	keys := make([]string, 0, len(a.timers))
	for key, timer := range a.timers {
		timer.Stop()
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flush(key)
	}
}
