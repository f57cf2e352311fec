package domain

import (
	"context"
)

// Registry is the single source of truth for auction records.
//
// UpdateAuction is an unconditional overwrite, so callers must serialise
// read-modify-write cycles on the same id (see KeyedLocker).
type Registry[ID Unsigned, A, C comparable, B, T Unsigned] interface {
	// AuctionInfo returns a copy of the record, or nil without error when
	// the id is unknown.
	AuctionInfo(ctx context.Context, id ID) (*AuctionInfo[A, C, B, T], error)

	// UpdateAuction replaces the record of id. It fails with ErrNotFound
	// and writes nothing when the id is unknown.
	UpdateAuction(ctx context.Context, id ID, info AuctionInfo[A, C, B, T]) error

	// NewAuction stores a record without bid under a fresh id. It fails
	// with ErrIdsExhausted once the id space is saturated.
	NewAuction(ctx context.Context, start T, end *T, accepts, dispenses *C) (ID, error)

	// RemoveAuction deletes the record of id. Unknown ids are not an error.
	RemoveAuction(ctx context.Context, id ID) error
}

// Handler decides on bids and reacts to auction completion. It never owns
// auction records.
type Handler[ID Unsigned, A, C comparable, B, T Unsigned] interface {
	// OnNewBid decides whether newBid replaces lastBid and how the end of
	// the auction moves. The decision is deterministic for the same inputs
	// and the same stored record. Funds are moved by the caller.
	OnNewBid(ctx context.Context, now T, id ID, currency C, newBid Bid[A, C, B], lastBid *Bid[A, C, B]) OnNewBidResult[T]

	// OnAuctionEnded settles the auction with its final bid, nil when the
	// auction closed without bids. Callers invoke it exactly once per id.
	OnAuctionEnded(ctx context.Context, id ID, winner *Bid[A, C, B])
}

// FundCustody holds funds on behalf of bidders. Reservations are held per
// auction, so releasing or spending one never touches the hold of another.
type FundCustody[A, C comparable, B Unsigned] interface {
	Reserve(ctx context.Context, auctionID uint64, account A, currency C, amount B) error
	Release(ctx context.Context, auctionID uint64, account A, currency C, amount B) error
	// Transfer moves amount out of the hold of from on auctionID into the
	// free balance of to.
	Transfer(ctx context.Context, auctionID uint64, from, to A, currency C, amount B) error
}

// TimeSource supplies the current block.
type TimeSource[T Unsigned] interface {
	Now() T
}

type AuctionScheduler[ID Unsigned, T Unsigned] interface {
	ScheduleAuctionStart(ctx context.Context, auctionID ID, start T) error
	ScheduleAuctionEnd(ctx context.Context, auctionID ID, end T) error
	RescheduleAuctionEnd(ctx context.Context, auctionID ID, newEnd T) error
	CancelSchedule(ctx context.Context, auctionID ID) error
	Start(ctx context.Context) error
	Stop() error
}

// AuctionLifecycle is what the scheduler drives when jobs become due.
type AuctionLifecycle[ID Unsigned] interface {
	StartAuction(ctx context.Context, auctionID ID) error
	EndAuction(ctx context.Context, auctionID ID) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before uint64) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	// CancelJobsForAuction cancels pending jobs of the given type, or of
	// every type when jobType is empty.
	CancelJobsForAuction(ctx context.Context, auctionID uint64, jobType JobType) error
}

type AuctionStateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID uint64, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID uint64) (AuctionStatus, error)
}

// KeyedLocker serialises work on one key across goroutines or processes.
type KeyedLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *BidEvent) error
}

type BidRepository interface {
	SaveBidEvent(ctx context.Context, event *BidEvent) error
	GetBidHistory(ctx context.Context, auctionID uint64) ([]*BidEvent, error)
}

type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
