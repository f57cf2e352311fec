package memory

import (
	"context"
	"sort"
	"sync"

	"auction-core/internal/domain"
)

type SchedulerRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func NewSchedulerRepository() *SchedulerRepository {
	return &SchedulerRepository{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *SchedulerRepository) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *SchedulerRepository) GetPendingJobs(_ context.Context, before uint64) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var jobs []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && job.RunAt <= before {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].RunAt != jobs[j].RunAt {
			return jobs[i].RunAt < jobs[j].RunAt
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (r *SchedulerRepository) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[jobID]; ok {
		job.Status = status
	}
	return nil
}

func (r *SchedulerRepository) CancelJobsForAuction(_ context.Context, auctionID uint64, jobType domain.JobType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.AuctionID != auctionID || job.Status != domain.JobPending {
			continue
		}
		if jobType == "" || job.JobType == jobType {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}
