package loan

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SnapshotStatus enumerates async job lifecycle values.
type SnapshotStatus string

const (
	// SnapshotPending indicates waiting to be processed.
	SnapshotPending SnapshotStatus = "PENDING"
	// SnapshotInProgress indicates job executing.
	SnapshotInProgress SnapshotStatus = "IN_PROGRESS"
	// SnapshotReady indicates payload ready for consumption.
	SnapshotReady SnapshotStatus = "READY"
	// SnapshotFailed indicates error occurred.
	SnapshotFailed SnapshotStatus = "FAILED"
)

// SnapshotKind names the computation behind a snapshot.
type SnapshotKind string

const (
	// KindSchedule is a full amortization run.
	KindSchedule SnapshotKind = "schedule"
	// KindTargetPayment is a minimum-payment search.
	KindTargetPayment SnapshotKind = "target_payment"
)

// ErrSnapshotNotFound occurs when a snapshot is missing or expired.
var ErrSnapshotNotFound = errors.New("loan: snapshot not found")

// Snapshot stores request, status and result for one background run.
type Snapshot struct {
	ID          string          `json:"id"`
	Kind        SnapshotKind    `json:"kind"`
	Status      SnapshotStatus  `json:"status"`
	Error       string          `json:"error,omitempty"`
	Request     json.RawMessage `json:"request"`
	Result      json.RawMessage `json:"result,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SnapshotStore keeps snapshots in Redis with a TTL. Snapshots are run
// artifacts, not loan state; expiry is the cleanup policy.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSnapshotStore builds the store.
func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, ttl: ttl, now: time.Now}
}

// Create persists a pending snapshot for the given request.
func (s *SnapshotStore) Create(ctx context.Context, kind SnapshotKind, request any) (Snapshot, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return Snapshot{}, err
	}
	now := s.now().UTC()
	snap := Snapshot{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      SnapshotPending,
		Request:     raw,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.save(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Get returns a snapshot by id.
func (s *SnapshotStore) Get(ctx context.Context, id string) (Snapshot, error) {
	payload, err := s.client.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// MarkInProgress flags the snapshot as executing.
func (s *SnapshotStore) MarkInProgress(ctx context.Context, id string) error {
	return s.update(ctx, id, func(snap *Snapshot) {
		snap.Status = SnapshotInProgress
	})
}

// SaveResult stores the computed payload and marks the snapshot ready.
func (s *SnapshotStore) SaveResult(ctx context.Context, id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.update(ctx, id, func(snap *Snapshot) {
		snap.Status = SnapshotReady
		snap.Result = raw
		snap.Error = ""
	})
}

// Fail records a terminal error on the snapshot.
func (s *SnapshotStore) Fail(ctx context.Context, id, message string) error {
	return s.update(ctx, id, func(snap *Snapshot) {
		snap.Status = SnapshotFailed
		snap.Error = message
	})
}

func (s *SnapshotStore) update(ctx context.Context, id string, mutate func(*Snapshot)) error {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(&snap)
	snap.UpdatedAt = s.now().UTC()
	return s.save(ctx, snap)
}

func (s *SnapshotStore) save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, snapshotKey(snap.ID), raw, s.ttl).Err()
}

func snapshotKey(id string) string {
	return "loan:snapshot:" + id
}
