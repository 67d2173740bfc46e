package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSnapshotMissing is returned by a store when no snapshot is present.
var ErrSnapshotMissing = errors.New("no snapshot in store")

// SnapshotStore abstracts where the published snapshot lives. The in-memory
// implementation is the default; the Redis implementation adds cross-process
// visibility with a TTL. Selected at construction, not branched at runtime.
type SnapshotStore interface {
	// Publish replaces the stored snapshot.
	Publish(ctx context.Context, snap Snapshot) error
	// Touch refreshes the snapshot's expiry without rewriting it. A no-op
	// for stores without expiry.
	Touch(ctx context.Context) error
	// Load returns the stored snapshot or ErrSnapshotMissing.
	Load(ctx context.Context) (Snapshot, error)
}

type memoryStore struct {
	snap atomic.Value // Snapshot
}

// NewMemoryStore returns a process-local store. Publish runs on the refresh
// loop while Load is called from routing and HTTP goroutines, so the
// snapshot is swapped atomically. Snapshots are never mutated after publish.
func NewMemoryStore() SnapshotStore {
	return &memoryStore{}
}

func (s *memoryStore) Publish(_ context.Context, snap Snapshot) error {
	s.snap.Store(snap)
	return nil
}

func (s *memoryStore) Touch(context.Context) error { return nil }

func (s *memoryStore) Load(context.Context) (Snapshot, error) {
	snap, ok := s.snap.Load().(Snapshot)
	if !ok || snap == nil {
		return nil, ErrSnapshotMissing
	}
	return snap, nil
}

const redisSnapshotKey = "smpp:vendors:active"

type redisStore struct {
	client *redis.Client
	expiry time.Duration
}

// NewRedisStore returns a shared store keyed by a fixed TTL'd Redis key.
func NewRedisStore(client *redis.Client, expiry time.Duration) SnapshotStore {
	return &redisStore{client: client, expiry: expiry}
}

func (s *redisStore) Publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return s.client.Set(ctx, redisSnapshotKey, payload, s.expiry).Err()
}

func (s *redisStore) Touch(ctx context.Context) error {
	return s.client.Expire(ctx, redisSnapshotKey, s.expiry).Err()
}

func (s *redisStore) Load(ctx context.Context) (Snapshot, error) {
	payload, err := s.client.Get(ctx, redisSnapshotKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMissing
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return snap, nil
}
