package redis

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Shvan11/ShwNodApp-sub005/internal/metrics"
)

const viewersKey = "wa:qr:viewers"

// QRViewerStore implements domain.QRViewerRegistry on a Redis set. Set
// membership is the refcount: SADD/SREM are naturally idempotent, so a
// retried register or a doubled release never drifts the count.
type QRViewerStore struct {
	rdb *goredis.Client
}

// NewQRViewerStore creates the store over a shared client.
func NewQRViewerStore(rdb *goredis.Client) *QRViewerStore {
	return &QRViewerStore{rdb: rdb}
}

// RegisterViewer adds the viewer id to the active set.
func (s *QRViewerStore) RegisterViewer(ctx context.Context, viewerID string) error {
	if err := s.rdb.SAdd(ctx, viewersKey, viewerID).Err(); err != nil {
		return fmt.Errorf("failed to register QR viewer %s: %w", viewerID, err)
	}
	metrics.QRViewerRegistrations.Inc()
	return nil
}

// ReleaseViewer removes the viewer id from the active set.
func (s *QRViewerStore) ReleaseViewer(ctx context.Context, viewerID string) error {
	if err := s.rdb.SRem(ctx, viewersKey, viewerID).Err(); err != nil {
		return fmt.Errorf("failed to release QR viewer %s: %w", viewerID, err)
	}
	metrics.QRViewerReleases.Inc()
	return nil
}

// ReconcileViewers removes set entries that no connected socket claims. It
// only ever deletes stale ids; live registrations are left untouched, so a
// register racing the reconcile is never undone.
func (s *QRViewerStore) ReconcileViewers(ctx context.Context, live []string) error {
	members, err := s.rdb.SMembers(ctx, viewersKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list QR viewers: %w", err)
	}

	alive := make(map[string]struct{}, len(live))
	for _, id := range live {
		alive[id] = struct{}{}
	}

	var stale []any
	for _, id := range members {
		if _, ok := alive[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.rdb.SRem(ctx, viewersKey, stale...).Err(); err != nil {
		return fmt.Errorf("failed to remove stale QR viewers: %w", err)
	}
	slog.Info("Reconciled QR viewer registrations", "removed", len(stale), "live", len(live))
	return nil
}

// ViewerCount returns the current number of registered viewers.
func (s *QRViewerStore) ViewerCount(ctx context.Context) (int64, error) {
	count, err := s.rdb.SCard(ctx, viewersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count QR viewers: %w", err)
	}
	return count, nil
}
