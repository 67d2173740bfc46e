package availability

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/denishrana09/smpp-gateway/internal/database"
)

// Cache samples vendor/host health from persistence on a fixed interval and
// serves the latest snapshot to the routing engine. The in-memory copy is
// authoritative; the store adds optional cross-process sharing.
type Cache struct {
	dbQueries database.Querier
	store     SnapshotStore
	interval  time.Duration

	// last holds the authoritative in-memory Snapshot, replaced wholesale.
	last atomic.Value
}

// NewCache creates a cache over the given store. The store decides whether
// snapshots are shared (Redis) or process-local (memory).
func NewCache(q database.Querier, store SnapshotStore, interval time.Duration) *Cache {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Cache{
		dbQueries: q,
		store:     store,
		interval:  interval,
	}
}

// Run refreshes once immediately, then on every tick until ctx is cancelled.
// This loop is the system's only poll of vendor topology.
func (c *Cache) Run(ctx context.Context) {
	if _, err := c.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial vendor availability refresh failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Vendor availability cache stopping")
			return
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "Vendor availability refresh failed", slog.Any("error", err))
			}
		}
	}
}

// Refresh reloads vendors from persistence, and publishes a new snapshot
// only when it structurally differs from the previous one. An unchanged
// snapshot only refreshes the store's expiry.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := c.query(ctx)
	if err != nil {
		return nil, err
	}

	prev, _ := c.last.Load().(Snapshot)
	if !snap.Changed(prev) {
		if err := c.store.Touch(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to refresh snapshot expiry", slog.Any("error", err))
		}
		slog.DebugContext(ctx, "Vendor availability unchanged")
		return prev, nil
	}

	c.last.Store(snap)
	if err := c.store.Publish(ctx, snap); err != nil {
		slog.WarnContext(ctx, "Failed to publish snapshot to store", slog.Any("error", err))
	}
	slog.InfoContext(ctx, "Vendor availability snapshot updated", slog.Int("vendors", len(snap)))
	return snap, nil
}

// Get returns the freshest snapshot available: the shared store first, then
// the in-memory copy, then an inline refresh. Store read errors degrade to
// the in-memory copy and finally to a direct persistence query; only an
// unreachable database surfaces an error.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	snap, err := c.store.Load(ctx)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, ErrSnapshotMissing) {
		slog.WarnContext(ctx, "Snapshot store read failed, falling back", slog.Any("error", err))
		if mem, ok := c.last.Load().(Snapshot); ok {
			return mem, nil
		}
		return c.query(ctx)
	}

	if mem, ok := c.last.Load().(Snapshot); ok {
		return mem, nil
	}
	return c.Refresh(ctx)
}

func (c *Cache) query(ctx context.Context) (Snapshot, error) {
	vendors, err := c.dbQueries.ListVendorsWithHostCounts(ctx)
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, 0, len(vendors))
	for _, v := range vendors {
		snap = append(snap, VendorAvailability{
			ID:              v.ID,
			SystemID:        v.SystemID,
			ActiveHostCount: v.ActiveHostCount,
			MessagePrice:    v.MessagePrice,
		})
	}
	return snap, nil
}
