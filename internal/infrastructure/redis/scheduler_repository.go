package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// KEYS: job, pending ARGV: job id, status, pending status
const updateJobStatusScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
    return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[2])
if ARGV[2] ~= ARGV[3] then
    redis.call("ZREM", KEYS[2], ARGV[1])
end
return 1
`

// KEYS: auction jobs, pending ARGV: job key prefix, job type or "",
// pending status, cancelled status
const cancelJobsScript = `
local cancelled = 0
for _, id in ipairs(redis.call("SMEMBERS", KEYS[1])) do
    local key = ARGV[1] .. id
    local job = redis.call("HMGET", key, "status", "job_type")
    if job[1] == ARGV[3] and (ARGV[2] == "" or job[2] == ARGV[2]) then
        redis.call("HSET", key, "status", ARGV[4])
        redis.call("ZREM", KEYS[2], id)
        cancelled = cancelled + 1
    end
end
return cancelled
`

// SchedulerRepository keeps jobs in Redis so that the scheduler leader sees
// jobs created by any instance. Each job is a hash; pending job ids sit in a
// sorted set scored by run block, and a set per auction lists its jobs.
type SchedulerRepository struct {
	client *redis.Client
	prefix string
}

func NewSchedulerRepository(client *redis.Client, prefix string) *SchedulerRepository {
	return &SchedulerRepository{client: client, prefix: prefix}
}

func (r *SchedulerRepository) jobKeyPrefix() string {
	return r.prefix + ":job:"
}

func (r *SchedulerRepository) jobKey(id string) string {
	return r.jobKeyPrefix() + id
}

func (r *SchedulerRepository) pendingKey() string {
	return r.prefix + ":jobs:pending"
}

func (r *SchedulerRepository) auctionJobsKey(auctionID uint64) string {
	return fmt.Sprintf("%s:jobs:auction:%d", r.prefix, auctionID)
}

func (r *SchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.jobKey(job.ID),
			"auction_id", job.AuctionID,
			"job_type", string(job.JobType),
			"run_at", job.RunAt,
			"status", string(job.Status),
			"created_at", job.CreatedAt.UnixNano(),
		)
		pipe.SAdd(ctx, r.auctionJobsKey(job.AuctionID), job.ID)
		if job.Status == domain.JobPending {
			pipe.ZAdd(ctx, r.pendingKey(), &redis.Z{Score: float64(job.RunAt), Member: job.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

// GetPendingJobs returns pending jobs due at or before the given block,
// oldest run block first.
func (r *SchedulerRepository) GetPendingJobs(ctx context.Context, before uint64) ([]*domain.ScheduledJob, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.pendingKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatUint(before, 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.jobKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	jobs := make([]*domain.ScheduledJob, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		job, err := decodeJob(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if job.Status == domain.JobPending && job.RunAt <= before {
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].RunAt != jobs[j].RunAt {
			return jobs[i].RunAt < jobs[j].RunAt
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func decodeJob(id string, fields map[string]string) (*domain.ScheduledJob, error) {
	auctionID, err := strconv.ParseUint(fields["auction_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid auction id: %w", id, err)
	}
	runAt, err := strconv.ParseUint(fields["run_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid run block: %w", id, err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("job %s: invalid creation time: %w", id, err)
	}
	return &domain.ScheduledJob{
		ID:        id,
		AuctionID: auctionID,
		JobType:   domain.JobType(fields["job_type"]),
		RunAt:     runAt,
		Status:    domain.JobStatus(fields["status"]),
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}

// UpdateJobStatus ignores unknown job ids.
func (r *SchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	return r.client.Eval(ctx, updateJobStatusScript, []string{r.jobKey(jobID), r.pendingKey()},
		jobID, string(status), string(domain.JobPending)).Err()
}

func (r *SchedulerRepository) CancelJobsForAuction(ctx context.Context, auctionID uint64, jobType domain.JobType) error {
	keys := []string{r.auctionJobsKey(auctionID), r.pendingKey()}
	return r.client.Eval(ctx, cancelJobsScript, keys,
		r.jobKeyPrefix(), string(jobType), string(domain.JobPending), string(domain.JobCancelled)).Err()
}
