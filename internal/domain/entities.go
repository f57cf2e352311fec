package domain

import (
	"time"
)

// Unsigned covers the integer types usable as auction ids, balances and
// block numbers.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// MaxValue returns the largest value representable by N.
func MaxValue[N Unsigned]() N {
	return ^N(0)
}

// Concrete parameterisation used by the auction service binary.
type (
	AuctionID   uint32
	AccountID   string
	CurrencyID  string
	Balance     uint64
	BlockNumber uint64
)

// Bid is a standing offer: bidder, the currency of the offer and its amount.
type Bid[A, C comparable, B Unsigned] struct {
	Account  A `json:"account"`
	Currency C `json:"currency"`
	Amount   B `json:"amount"`
}

// AuctionInfo is the canonical record of one auction.
type AuctionInfo[A, C comparable, B, T Unsigned] struct {
	// Current winning bid, nil until the first bid is accepted.
	Bid *Bid[A, C, B] `json:"bid,omitempty"`
	// Currency accepted as payment, nil when unset.
	Accepts *C `json:"accepts,omitempty"`
	// Currency paid out by the auction, nil when unset.
	Dispenses *C `json:"dispenses,omitempty"`
	// Block at which the auction opens.
	Start T `json:"start"`
	// Block at which the auction closes, nil for open-ended auctions.
	End *T `json:"end,omitempty"`
}

// Clone returns a deep copy of the record.
func (a AuctionInfo[A, C, B, T]) Clone() AuctionInfo[A, C, B, T] {
	out := AuctionInfo[A, C, B, T]{Start: a.Start}
	if a.Bid != nil {
		bid := *a.Bid
		out.Bid = &bid
	}
	out.Accepts = clonePtr(a.Accepts)
	out.Dispenses = clonePtr(a.Dispenses)
	out.End = clonePtr(a.End)
	return out
}

// Status derives the lifecycle state of the record at block now. The end
// block itself is no longer active.
func (a AuctionInfo[A, C, B, T]) Status(now T) AuctionStatus {
	if now < a.Start {
		return AuctionPending
	}
	if a.End != nil && now >= *a.End {
		return AuctionEnded
	}
	return AuctionActive
}

func clonePtr[V any](p *V) *V {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Change tells the caller whether a value must be left as is or replaced.
// It is distinct from a pointer: NewValue(nil) explicitly clears a value.
type Change[V any] struct {
	value   V
	changed bool
}

func NoChange[V any]() Change[V] {
	return Change[V]{}
}

func NewValue[V any](v V) Change[V] {
	return Change[V]{value: v, changed: true}
}

// Value returns the new value and true, or the zero value and false for
// NoChange.
func (c Change[V]) Value() (V, bool) {
	return c.value, c.changed
}

func (c Change[V]) IsNoChange() bool {
	return !c.changed
}

// OnNewBidResult is the handler's decision for one bid.
type OnNewBidResult[T Unsigned] struct {
	AcceptBid        bool
	AuctionEndChange Change[*T]
}

// Rejected is the decision for a bid that must not replace the current one.
func Rejected[T Unsigned]() OnNewBidResult[T] {
	return OnNewBidResult[T]{AuctionEndChange: NoChange[*T]()}
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionActive
	AuctionEnded
	AuctionRemoved
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	case AuctionRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// BidEvent is the audit projection of something that happened to an
// auction. Ids and amounts are widened so every parameterisation fits.
type BidEvent struct {
	Type      BidEventType `json:"type"`
	AuctionID uint64       `json:"auction_id"`
	Account   string       `json:"account,omitempty"`
	Currency  string       `json:"currency,omitempty"`
	Amount    uint64       `json:"amount,omitempty"`
	Block     uint64       `json:"block"`
	Timestamp time.Time    `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted     BidEventType = "bid_accepted"
	BidRejected     BidEventType = "bid_rejected"
	AuctionOpened   BidEventType = "auction_started"
	AuctionExtended BidEventType = "auction_extended"
	AuctionSettled  BidEventType = "auction_ended"
)

type ScheduledJob struct {
	ID        string
	AuctionID uint64
	JobType   JobType
	RunAt     uint64
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobStartAuction JobType = "start_auction"
	JobEndAuction   JobType = "end_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
