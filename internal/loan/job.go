package loan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/trancheflow/trancheflow/jobs"
)

// ScheduleJob processes queued amortization runs.
type ScheduleJob struct {
	service *Service
	store   *SnapshotStore
	logger  *slog.Logger
}

// NewScheduleJob constructs a job handler.
func NewScheduleJob(service *Service, store *SnapshotStore, logger *slog.Logger) *ScheduleJob {
	return &ScheduleJob{service: service, store: store, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *ScheduleJob) Handle(ctx context.Context, task *asynq.Task) error {
	snap, req, err := loadSnapshotRequest[ScheduleRequest](ctx, j.store, task)
	if err != nil {
		return err
	}
	result, err := j.service.BuildSchedule(ctx, req)
	if err != nil {
		// Engine errors are input-validation errors; deterministic, so a
		// retry cannot succeed.
		if j.logger != nil {
			j.logger.Error("schedule job", slog.String("snapshot_id", snap.ID), slog.Any("error", err))
		}
		_ = j.store.Fail(ctx, snap.ID, err.Error())
		return asynq.SkipRetry
	}
	return j.store.SaveResult(ctx, snap.ID, result)
}

// SearchJob processes queued minimum-payment searches.
type SearchJob struct {
	service *Service
	store   *SnapshotStore
	logger  *slog.Logger
}

// NewSearchJob constructs a job handler.
func NewSearchJob(service *Service, store *SnapshotStore, logger *slog.Logger) *SearchJob {
	return &SearchJob{service: service, store: store, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *SearchJob) Handle(ctx context.Context, task *asynq.Task) error {
	snap, req, err := loadSnapshotRequest[SearchRequest](ctx, j.store, task)
	if err != nil {
		return err
	}
	result, err := j.service.MinimumPayment(ctx, req)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("search job", slog.String("snapshot_id", snap.ID), slog.Any("error", err))
		}
		_ = j.store.Fail(ctx, snap.ID, err.Error())
		return asynq.SkipRetry
	}
	return j.store.SaveResult(ctx, snap.ID, result)
}

// loadSnapshotRequest resolves the task payload to its snapshot and decodes
// the stored request. Unknown or malformed snapshots skip retry.
func loadSnapshotRequest[T any](ctx context.Context, store *SnapshotStore, task *asynq.Task) (Snapshot, T, error) {
	var req T
	var payload jobs.SnapshotPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return Snapshot{}, req, asynq.SkipRetry
	}
	if payload.SnapshotID == "" {
		return Snapshot{}, req, asynq.SkipRetry
	}
	snap, err := store.Get(ctx, payload.SnapshotID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return Snapshot{}, req, asynq.SkipRetry
	}
	if err != nil {
		return Snapshot{}, req, err
	}
	if err := store.MarkInProgress(ctx, snap.ID); err != nil {
		return Snapshot{}, req, err
	}
	if err := json.Unmarshal(snap.Request, &req); err != nil {
		_ = store.Fail(ctx, snap.ID, "malformed request payload")
		return Snapshot{}, req, asynq.SkipRetry
	}
	return snap, req, nil
}
