package jobqueue

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
)

func TestNewQueueWorkerDefaults(t *testing.T) {
	for _, tt := range []struct {
		workers, want int
	}{
		{5, 5},
		{0, 3},
		{-1, 3},
	} {
		q := NewQueue(tt.workers)
		assert.Equal(t, tt.want, q.workers)
		assert.Equal(t, tt.want, cap(q.workerPool))
		assert.False(t, q.running)
	}
}

func TestProcessJobDispatchesByType(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	f := newDraftFixture(t)
	msg := createQueuedMessage(t, f.db, models.OUTBOX_FAMILY_NOTIFICATION, 0)
	draft := f.document(t, "old.pdf", models.DOC_STATUS_DRAFT, 0)

	var delivered []uint
	q := NewQueue(1)
	q.client = client
	q.Configure(Deps{
		DB:     f.db,
		Drafts: f.drafts,
		Deliverer: delivererFunc(func(_ context.Context, m *models.OutboxMessage) error {
			delivered = append(delivered, m.ID)
			return nil
		}),
	})
	ctx := context.Background()

	run := func(t *testing.T, enqueue func() (*Job, error)) *Job {
		t.Helper()
		job, err := enqueue()
		require.NoError(t, err)
		dequeued, err := q.dequeueJob(ctx)
		require.NoError(t, err)
		require.Equal(t, job.ID, dequeued.ID)
		q.processJob(ctx, dequeued)
		return job
	}

	t.Run("outbox delivery", func(t *testing.T) {
		job := run(t, func() (*Job, error) { return q.EnqueueOutboxDeliveryJob(msg.ID) })

		assert.Equal(t, []uint{msg.ID}, delivered)
		stored, err := repository.NewOutboxRepository(f.db).GetByID(msg.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OUTBOX_STATUS_DELIVERED, stored.Status)
		_, err = q.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, redis.Nil, "completed jobs are removed")
	})

	t.Run("delete draft", func(t *testing.T) {
		job := run(t, func() (*Job, error) { return q.EnqueueDeleteDraftJob(draft.ID, nil) })

		assert.False(t, f.store.Has(draft.ObjectKey))
		_, err := f.repos.Document.GetByID(draft.ID)
		assert.Error(t, err)
		_, err = q.GetJob(ctx, job.ID)
		assert.ErrorIs(t, err, redis.Nil)
	})

	t.Run("unknown type", func(t *testing.T) {
		job := run(t, func() (*Job, error) { return q.EnqueueJob(JobType("resize_image"), map[string]interface{}{}) })

		stored, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, JobStatusRetrying, stored.Status)
		assert.Contains(t, stored.ErrorMsg, "unknown job type")
	})

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats[JobStatusCompleted])
}
