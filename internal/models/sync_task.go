package models

import "time"

const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncTask is a durable unit of work for the sheets sync worker.
type SyncTask struct {
	ID          int64
	TaskType    string
	BookingID   string
	Payload     string
	Status      string
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}
