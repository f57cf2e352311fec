package services

import (
	"context"
	"errors"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronAuctionScheduler stores start/end jobs in a SchedulerRepository and
// polls for due jobs on a cron spec. Only the elected leader runs jobs, so
// each end job settles through a single instance.
type CronAuctionScheduler[ID, T domain.Unsigned] struct {
	cron       *cron.Cron
	spec       string
	repo       domain.SchedulerRepository
	lifecycle  domain.AuctionLifecycle[ID]
	clock      domain.TimeSource[T]
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

// NewCronAuctionScheduler builds a scheduler. A nil leader election makes
// this instance always eligible.
func NewCronAuctionScheduler[ID, T domain.Unsigned](
	spec string,
	repo domain.SchedulerRepository,
	lifecycle domain.AuctionLifecycle[ID],
	clock domain.TimeSource[T],
	leader domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *CronAuctionScheduler[ID, T] {
	return &CronAuctionScheduler[ID, T]{
		cron:       cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:       spec,
		repo:       repo,
		lifecycle:  lifecycle,
		clock:      clock,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *CronAuctionScheduler[ID, T]) Start(ctx context.Context) error {
	s.log.Info("Starting auction scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, func() {
		s.processPendingJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts polling and waits for a running poll to finish.
func (s *CronAuctionScheduler[ID, T]) Stop() error {
	s.log.Info("Stopping auction scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronAuctionScheduler[ID, T]) ScheduleAuctionStart(ctx context.Context, auctionID ID, start T) error {
	return s.schedule(ctx, auctionID, domain.JobStartAuction, start)
}

func (s *CronAuctionScheduler[ID, T]) ScheduleAuctionEnd(ctx context.Context, auctionID ID, end T) error {
	return s.schedule(ctx, auctionID, domain.JobEndAuction, end)
}

func (s *CronAuctionScheduler[ID, T]) schedule(ctx context.Context, auctionID ID, jobType domain.JobType, at T) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: uint64(auctionID),
		JobType:   jobType,
		RunAt:     uint64(at),
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronAuctionScheduler[ID, T]) RescheduleAuctionEnd(ctx context.Context, auctionID ID, newEnd T) error {
	// Cancel existing end jobs
	if err := s.repo.CancelJobsForAuction(ctx, uint64(auctionID), domain.JobEndAuction); err != nil {
		return err
	}

	return s.ScheduleAuctionEnd(ctx, auctionID, newEnd)
}

func (s *CronAuctionScheduler[ID, T]) CancelSchedule(ctx context.Context, auctionID ID) error {
	return s.repo.CancelJobsForAuction(ctx, uint64(auctionID), "")
}

func (s *CronAuctionScheduler[ID, T]) processPendingJobs(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Failed to check leadership", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	now := s.clock.Now()
	jobs, err := s.repo.GetPendingJobs(ctx, uint64(now))
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobStartAuction:
			err = s.lifecycle.StartAuction(ctx, ID(job.AuctionID))
		case domain.JobEndAuction:
			err = s.lifecycle.EndAuction(ctx, ID(job.AuctionID))
		default:
			s.log.Warn("Unknown job type", "job_id", job.ID, "type", job.JobType)
			continue
		}

		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotEnded) {
				s.log.Debug("Auction not ready to end yet", "job_id", job.ID, "auction_id", job.AuctionID)
			} else {
				s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			}
			// Don't mark as executed on error, will retry
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}
