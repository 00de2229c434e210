package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskScheduleCompute is the task type for a full amortization run.
	TaskScheduleCompute = "loan:schedule"
	// TaskTargetPaymentSearch is the task type for a minimum-payment search.
	TaskTargetPaymentSearch = "loan:target_search"
)

// SnapshotPayload points a task at the snapshot holding its request.
type SnapshotPayload struct {
	SnapshotID string `json:"snapshot_id"`
}

// NewScheduleComputeTask constructs an Asynq task for an amortization run.
func NewScheduleComputeTask(snapshotID string) (*asynq.Task, error) {
	data, err := json.Marshal(SnapshotPayload{SnapshotID: snapshotID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScheduleCompute, data), nil
}

// NewTargetPaymentSearchTask constructs an Asynq task for a payment search.
func NewTargetPaymentSearchTask(snapshotID string) (*asynq.Task, error) {
	data, err := json.Marshal(SnapshotPayload{SnapshotID: snapshotID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTargetPaymentSearch, data), nil
}
