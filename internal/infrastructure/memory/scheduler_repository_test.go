package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-core/internal/domain"
)

func TestSchedulerRepository_PendingAndCancel(t *testing.T) {
	ctx := context.Background()
	r := NewSchedulerRepository()
	now := time.Now()

	jobs := []*domain.ScheduledJob{
		{ID: "a", AuctionID: 1, JobType: domain.JobEndAuction, RunAt: 20, Status: domain.JobPending, CreatedAt: now},
		{ID: "b", AuctionID: 1, JobType: domain.JobStartAuction, RunAt: 5, Status: domain.JobPending, CreatedAt: now},
		{ID: "c", AuctionID: 2, JobType: domain.JobEndAuction, RunAt: 50, Status: domain.JobPending, CreatedAt: now},
	}
	for _, j := range jobs {
		require.NoError(t, r.CreateJob(ctx, j))
	}

	due, err := r.GetPendingJobs(ctx, 20)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].ID)
	assert.Equal(t, "a", due[1].ID)

	require.NoError(t, r.CancelJobsForAuction(ctx, 1, domain.JobEndAuction))
	due, err = r.GetPendingJobs(ctx, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "b", due[0].ID)

	require.NoError(t, r.UpdateJobStatus(ctx, "b", domain.JobExecuted))
	require.NoError(t, r.CancelJobsForAuction(ctx, 2, ""))
	due, err = r.GetPendingJobs(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}
