package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/packhost/packhost/core/infra/kvstore"
)

const snapshotKeyPrefix = "flowsnap:"

// SnapshotStore persists suspended-flow snapshots keyed by session key, one
// snapshot per key. A TTL bounds how long an abandoned conversation can be
// resumed.
type SnapshotStore struct {
	store kvstore.Store
	ttl   time.Duration
}

func NewSnapshotStore(store kvstore.Store, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{store: store, ttl: ttl}
}

// Save writes the snapshot, replacing any previous one for the session key.
func (s *SnapshotStore) Save(ctx context.Context, snap *Snapshot) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("snapshot store not configured")
	}
	if snap == nil || snap.SessionKey == "" {
		return fmt.Errorf("snapshot missing session key")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.store.Put(ctx, snapshotKeyPrefix+snap.SessionKey, data, s.ttl)
}

// Load returns the snapshot for the session key, or nil when none exists.
func (s *SnapshotStore) Load(ctx context.Context, sessionKey string) (*Snapshot, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("snapshot store not configured")
	}
	data, err := s.store.Get(ctx, snapshotKeyPrefix+sessionKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot for the session key, if present.
func (s *SnapshotStore) Delete(ctx context.Context, sessionKey string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("snapshot store not configured")
	}
	err := s.store.Delete(ctx, snapshotKeyPrefix+sessionKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}
	return err
}
