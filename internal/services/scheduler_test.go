package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"auction-core/internal/clock"
	"auction-core/internal/domain"
	"auction-core/internal/infrastructure/memory"
	"auction-core/pkg/logger"
)

type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) StartAuction(ctx context.Context, id testID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockLifecycle) EndAuction(ctx context.Context, id testID) error {
	return m.Called(ctx, id).Error(0)
}

type staticLeader struct {
	leader bool
	err    error
}

func (l staticLeader) BecomeLeader(context.Context, string) (bool, error) { return l.leader, l.err }
func (l staticLeader) IsLeader(context.Context, string) (bool, error)     { return l.leader, l.err }
func (l staticLeader) ReleaseLeadership(context.Context, string) error    { return nil }

func newTestScheduler(lifecycle domain.AuctionLifecycle[testID], leader domain.LeaderElection) (*CronAuctionScheduler[testID, uint64], *memory.SchedulerRepository, *clock.Manual[uint64]) {
	repo := memory.NewSchedulerRepository()
	clk := clock.NewManual[uint64](0)
	s := NewCronAuctionScheduler[testID, uint64]("@every 1s", repo, lifecycle, clk, leader, "instance-1", logger.NewNop())
	return s, repo, clk
}

func TestCronAuctionScheduler_RunsDueJobs(t *testing.T) {
	ctx := context.Background()
	lifecycle := new(MockLifecycle)
	lifecycle.On("StartAuction", ctx, testID(1)).Return(nil).Once()
	lifecycle.On("EndAuction", ctx, testID(1)).Return(nil).Once()

	s, repo, clk := newTestScheduler(lifecycle, staticLeader{leader: true})
	require.NoError(t, s.ScheduleAuctionStart(ctx, 1, 5))
	require.NoError(t, s.ScheduleAuctionEnd(ctx, 1, 10))

	clk.Set(4)
	s.processPendingJobs(ctx)
	lifecycle.AssertNotCalled(t, "StartAuction", ctx, testID(1))

	clk.Set(10)
	s.processPendingJobs(ctx)
	s.processPendingJobs(ctx)

	lifecycle.AssertExpectations(t)
	pending, err := repo.GetPendingJobs(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCronAuctionScheduler_KeepsFailedJobs(t *testing.T) {
	ctx := context.Background()
	lifecycle := new(MockLifecycle)
	lifecycle.On("EndAuction", ctx, testID(2)).Return(fmt.Errorf("wrapped: %w", domain.ErrAuctionNotEnded)).Once()
	lifecycle.On("EndAuction", ctx, testID(3)).Return(errors.New("boom")).Once()

	s, repo, clk := newTestScheduler(lifecycle, nil)
	require.NoError(t, s.ScheduleAuctionEnd(ctx, 2, 1))
	require.NoError(t, s.ScheduleAuctionEnd(ctx, 3, 1))

	clk.Set(1)
	s.processPendingJobs(ctx)

	lifecycle.AssertExpectations(t)
	pending, err := repo.GetPendingJobs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestCronAuctionScheduler_FollowerDoesNothing(t *testing.T) {
	ctx := context.Background()
	lifecycle := new(MockLifecycle)

	for _, leader := range []staticLeader{{leader: false}, {err: errors.New("redis down")}} {
		s, _, clk := newTestScheduler(lifecycle, leader)
		require.NoError(t, s.ScheduleAuctionStart(ctx, 1, 0))
		clk.Set(10)
		s.processPendingJobs(ctx)
	}

	lifecycle.AssertNotCalled(t, "StartAuction", mock.Anything, mock.Anything)
}

func TestCronAuctionScheduler_Reschedule(t *testing.T) {
	ctx := context.Background()
	s, repo, _ := newTestScheduler(new(MockLifecycle), nil)

	require.NoError(t, s.ScheduleAuctionStart(ctx, 1, 0))
	require.NoError(t, s.ScheduleAuctionEnd(ctx, 1, 100))
	require.NoError(t, s.RescheduleAuctionEnd(ctx, 1, 103))

	pending, err := repo.GetPendingJobs(ctx, 1_000)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.JobStartAuction, pending[0].JobType)
	assert.Equal(t, uint64(103), pending[1].RunAt)

	require.NoError(t, s.CancelSchedule(ctx, 1))
	pending, err = repo.GetPendingJobs(ctx, 1_000)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCronAuctionScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{}, 1)
	lifecycle := new(MockLifecycle)
	lifecycle.On("StartAuction", mock.Anything, testID(4)).Return(nil).Run(func(mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
	})

	s, _, _ := newTestScheduler(lifecycle, nil)
	require.NoError(t, s.ScheduleAuctionStart(ctx, 4, 0))
	require.NoError(t, s.Start(ctx))

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("due job was not run by the cron loop")
	}
	require.NoError(t, s.Stop())
}

func TestCronAuctionScheduler_BadSpec(t *testing.T) {
	repo := memory.NewSchedulerRepository()
	s := NewCronAuctionScheduler[testID, uint64]("every now and then", repo, new(MockLifecycle),
		clock.NewManual[uint64](0), nil, "i", logger.NewNop())
	assert.Error(t, s.Start(context.Background()))
}
