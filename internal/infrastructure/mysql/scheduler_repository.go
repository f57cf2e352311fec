package mysql

import (
	"context"
	"database/sql"

	"auction-core/internal/domain"
)

const (
	insertJobQuery   = `INSERT INTO scheduled_jobs (id, auction_id, job_type, run_at, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	pendingJobsQuery = `SELECT id, auction_id, job_type, run_at, status, created_at FROM scheduled_jobs
        WHERE status = 'pending' AND run_at <= ? ORDER BY run_at ASC, created_at ASC`
	updateJobStatusQuery  = `UPDATE scheduled_jobs SET status = ? WHERE id = ?`
	cancelJobsQuery       = `UPDATE scheduled_jobs SET status = 'cancelled' WHERE auction_id = ? AND status = 'pending'`
	cancelJobsOfTypeQuery = `UPDATE scheduled_jobs SET status = 'cancelled' WHERE auction_id = ? AND job_type = ? AND status = 'pending'`
)

type SchedulerRepository struct {
	db *sql.DB
}

func NewSchedulerRepository(db *sql.DB) *SchedulerRepository {
	return &SchedulerRepository{db: db}
}

func (r *SchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.db.ExecContext(ctx, insertJobQuery,
		job.ID, job.AuctionID, string(job.JobType),
		job.RunAt, string(job.Status), job.CreatedAt)
	return err
}

// GetPendingJobs returns pending jobs due at or before the given block.
func (r *SchedulerRepository) GetPendingJobs(ctx context.Context, before uint64) ([]*domain.ScheduledJob, error) {
	rows, err := r.db.QueryContext(ctx, pendingJobsQuery, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		var job domain.ScheduledJob
		var jobType, status string

		err := rows.Scan(&job.ID, &job.AuctionID, &jobType,
			&job.RunAt, &status, &job.CreatedAt)
		if err != nil {
			return nil, err
		}

		job.JobType = domain.JobType(jobType)
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *SchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	_, err := r.db.ExecContext(ctx, updateJobStatusQuery, string(status), jobID)
	return err
}

func (r *SchedulerRepository) CancelJobsForAuction(ctx context.Context, auctionID uint64, jobType domain.JobType) error {
	if jobType == "" {
		_, err := r.db.ExecContext(ctx, cancelJobsQuery, auctionID)
		return err
	}
	_, err := r.db.ExecContext(ctx, cancelJobsOfTypeQuery, auctionID, string(jobType))
	return err
}
