package database

import (
	"context"
	"testing"
	"time"

	"slotnik/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueue_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  models.SyncTaskUpsert,
		BookingID: "b-1",
		Payload:   `{"booking_id":"b-1"}`,
		Status:    models.SyncStatusPending,
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookingID)

	// Задача в ретрае с будущим next_retry_at не выдается
	next := db.now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "boom", &next))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	past := db.now().Add(-time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "boom", &past))

	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil))
	pending, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncQueue_FailedTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:  models.SyncTaskUpdateStatus,
		BookingID: "b-2",
		Status:    models.SyncStatusPending,
	}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, "fatal", nil))

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "fatal", failed[0].LastError)
	assert.NotNil(t, failed[0].ProcessedAt)
}
