// Package routing selects an upstream vendor for a client according to the
// client's configured strategy and the live availability snapshot. It is
// pure selection logic; the only I/O is reading the availability cache.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/denishrana09/smpp-gateway/internal/availability"
	"github.com/denishrana09/smpp-gateway/internal/config"
	"github.com/denishrana09/smpp-gateway/pkg/codes"
)

// Candidate is a client's configured vendor merged with its live
// availability.
type Candidate struct {
	VendorID        string
	Priority        int
	ActiveHostCount int32
	MessagePrice    decimal.Decimal
}

// Strategy picks one vendor from the surviving candidates. Survivors is
// never empty and preserves the client's configured order.
type Strategy interface {
	Select(clientID string, survivors []Candidate) Candidate
}

// SnapshotProvider is the availability cache surface the engine reads.
type SnapshotProvider interface {
	Get(ctx context.Context) (availability.Snapshot, error)
}

// Engine merges client routing configuration with vendor availability and
// applies the client's strategy.
type Engine struct {
	snapshots  SnapshotProvider
	priority   *Priority
	roundRobin *RoundRobin
}

// NewEngine creates a routing engine reading from the given snapshot
// provider.
func NewEngine(snapshots SnapshotProvider) *Engine {
	return &Engine{
		snapshots:  snapshots,
		priority:   &Priority{},
		roundRobin: NewRoundRobin(),
	}
}

// SelectVendor returns the vendor the client's next message should be
// dispatched to, or codes.ErrNoVendorAvailable when no candidate has an
// active host. Callers must not retry here; retry belongs to the queue
// redelivery policy.
func (e *Engine) SelectVendor(ctx context.Context, route config.ClientRoute) (Candidate, error) {
	snap, err := e.snapshots.Get(ctx)
	if err != nil {
		return Candidate{}, fmt.Errorf("reading availability snapshot: %w", err)
	}

	byID := make(map[string]availability.VendorAvailability, len(snap))
	for _, v := range snap {
		byID[v.ID] = v
	}

	survivors := make([]Candidate, 0, len(route.Vendors))
	for _, cv := range route.Vendors {
		live, ok := byID[cv.ID]
		if !ok || live.ActiveHostCount <= 0 {
			continue
		}
		survivors = append(survivors, Candidate{
			VendorID:        cv.ID,
			Priority:        cv.Priority,
			ActiveHostCount: live.ActiveHostCount,
			MessagePrice:    live.MessagePrice,
		})
	}
	if len(survivors) == 0 {
		return Candidate{}, fmt.Errorf("client %s: %w", route.ClientID, codes.ErrNoVendorAvailable)
	}

	selected := e.strategyFor(route.RoutingStrategy).Select(route.ClientID, survivors)
	slog.DebugContext(ctx, "Vendor selected",
		slog.String("client_id", route.ClientID),
		slog.String("vendor_id", selected.VendorID),
		slog.String("strategy", route.RoutingStrategy))
	return selected, nil
}

func (e *Engine) strategyFor(name string) Strategy {
	if name == codes.StrategyRoundRobin {
		return e.roundRobin
	}
	return e.priority
}

// Priority picks the survivor with the lowest priority value. The sort is
// stable, so ties fall back to the client's configured order.
type Priority struct{}

func (Priority) Select(_ string, survivors []Candidate) Candidate {
	sorted := make([]Candidate, len(survivors))
	copy(sorted, survivors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted[0]
}

// RoundRobin keeps one cursor per client id. The modulus is recomputed
// against the current survivor count on every call, so cursor drift across
// availability changes is self-correcting rather than accumulating skew.
type RoundRobin struct {
	mu      sync.Mutex
	cursors map[string]int
}

// NewRoundRobin creates an empty cursor table.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{cursors: make(map[string]int)}
}

func (r *RoundRobin) Select(clientID string, survivors []Candidate) Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.cursors[clientID] % len(survivors)
	r.cursors[clientID] = (idx + 1) % len(survivors)
	return survivors[idx]
}
