package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// AuctionManager is the caller side of the registry/handler contract: it
// serialises work per auction id, moves funds around accepted bids, keeps
// the end schedule in sync and settles each auction exactly once.
type AuctionManager[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] struct {
	registry   domain.Registry[ID, A, C, B, T]
	handler    domain.Handler[ID, A, C, B, T]
	custody    domain.FundCustody[A, C, B]
	locker     domain.KeyedLocker
	stateCache domain.AuctionStateCache
	scheduler  domain.AuctionScheduler[ID, T]
	eventPub   domain.EventPublisher
	bidRepo    domain.BidRepository
	clock      domain.TimeSource[T]
	log        logger.Logger
}

// NewAuctionManager wires the manager. eventPub and bidRepo may be nil; the
// scheduler is attached afterwards with SetScheduler since it calls back
// into the manager.
func NewAuctionManager[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned](
	registry domain.Registry[ID, A, C, B, T],
	handler domain.Handler[ID, A, C, B, T],
	custody domain.FundCustody[A, C, B],
	locker domain.KeyedLocker,
	stateCache domain.AuctionStateCache,
	eventPub domain.EventPublisher,
	bidRepo domain.BidRepository,
	clock domain.TimeSource[T],
	log logger.Logger,
) *AuctionManager[ID, A, C, B, T] {
	return &AuctionManager[ID, A, C, B, T]{
		registry:   registry,
		handler:    handler,
		custody:    custody,
		locker:     locker,
		stateCache: stateCache,
		eventPub:   eventPub,
		bidRepo:    bidRepo,
		clock:      clock,
		log:        log,
	}
}

func (am *AuctionManager[ID, A, C, B, T]) SetScheduler(scheduler domain.AuctionScheduler[ID, T]) {
	am.scheduler = scheduler
}

func lockKey[ID domain.Unsigned](id ID) string {
	return fmt.Sprintf("auction:%d:lock", uint64(id))
}

func (am *AuctionManager[ID, A, C, B, T]) CreateAuction(ctx context.Context, start T, end *T, accepts, dispenses *C) (ID, error) {
	if end != nil && *end <= start {
		return 0, fmt.Errorf("end %v must be after start %v", *end, start)
	}

	id, err := am.registry.NewAuction(ctx, start, end, accepts, dispenses)
	if err != nil {
		return 0, err
	}

	if err := am.stateCache.SetAuctionStatus(ctx, uint64(id), domain.AuctionPending); err != nil {
		return id, err
	}

	if am.scheduler != nil {
		if err := am.scheduler.ScheduleAuctionStart(ctx, id, start); err != nil {
			return id, err
		}
		if end != nil {
			if err := am.scheduler.ScheduleAuctionEnd(ctx, id, *end); err != nil {
				return id, err
			}
		}
	}

	am.log.Info("Auction created", "auction_id", id, "start", start, "end", end)
	return id, nil
}

// PlaceBid evaluates bid against the current record and applies the
// handler's decision. It reports whether the bid became the winning bid.
func (am *AuctionManager[ID, A, C, B, T]) PlaceBid(ctx context.Context, id ID, bid domain.Bid[A, C, B]) (bool, error) {
	unlock, err := am.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return false, fmt.Errorf("lock auction %v: %w", id, err)
	}
	defer unlock()

	now := am.clock.Now()
	am.log.Info("Placing bid", "auction_id", id, "account", bid.Account, "amount", bid.Amount, "block", now)

	info, err := am.registry.AuctionInfo(ctx, id)
	if err != nil {
		return false, fmt.Errorf("read auction %v: %w", id, err)
	}
	if info == nil {
		return false, fmt.Errorf("auction %v: %w", id, domain.ErrNotFound)
	}

	if status := info.Status(now); status != domain.AuctionActive {
		am.record(ctx, am.bidEvent(domain.BidRejected, id, bid, now))
		return false, fmt.Errorf("auction %v is %s: %w", id, status, domain.ErrAuctionNotActive)
	}

	currency := bid.Currency
	if info.Accepts != nil {
		currency = *info.Accepts
	}

	res := am.handler.OnNewBid(ctx, now, id, currency, bid, info.Bid)
	if !res.AcceptBid {
		am.record(ctx, am.bidEvent(domain.BidRejected, id, bid, now))
		return false, nil
	}

	if err := am.custody.Reserve(ctx, uint64(id), bid.Account, bid.Currency, bid.Amount); err != nil {
		am.record(ctx, am.bidEvent(domain.BidRejected, id, bid, now))
		return false, fmt.Errorf("reserve bid on auction %v: %w", id, err)
	}

	updated := info.Clone()
	updated.Bid = &bid
	endChanged := false
	if newEnd, ok := res.AuctionEndChange.Value(); ok {
		if extends(info.End, newEnd) {
			updated.End = newEnd
			endChanged = true
		} else {
			am.log.Warn("Ignoring end change that would shorten the auction",
				"auction_id", id, "end", info.End, "proposed", newEnd)
		}
	}

	if err := am.registry.UpdateAuction(ctx, id, updated); err != nil {
		if rerr := am.custody.Release(ctx, uint64(id), bid.Account, bid.Currency, bid.Amount); rerr != nil {
			am.log.Error("Failed to release reservation of unrecorded bid", "auction_id", id,
				"account", bid.Account, "error", rerr)
		}
		return false, fmt.Errorf("update auction %v: %w", id, err)
	}

	if last := info.Bid; last != nil {
		if err := am.custody.Release(ctx, uint64(id), last.Account, last.Currency, last.Amount); err != nil {
			am.log.Error("Failed to refund outbid bidder", "auction_id", id,
				"account", last.Account, "amount", last.Amount, "error", err)
		}
	}

	am.record(ctx, am.bidEvent(domain.BidAccepted, id, bid, now))
	if endChanged {
		am.onEndChanged(ctx, id, now, updated.End)
	}
	return true, nil
}

// extends reports whether moving the end from old to proposed keeps it
// non-decreasing. A nil end is later than any block.
func extends[T domain.Unsigned](old, proposed *T) bool {
	switch {
	case proposed == nil:
		return true
	case old == nil:
		return false
	default:
		return *proposed >= *old
	}
}

func (am *AuctionManager[ID, A, C, B, T]) onEndChanged(ctx context.Context, id ID, now T, end *T) {
	if am.scheduler != nil {
		var err error
		if end == nil {
			err = am.scheduler.CancelSchedule(ctx, id)
		} else {
			err = am.scheduler.RescheduleAuctionEnd(ctx, id, *end)
		}
		if err != nil {
			am.log.Error("Failed to reschedule auction end", "auction_id", id, "error", err)
		}
	}

	ev := &domain.BidEvent{Type: domain.AuctionExtended, AuctionID: uint64(id), Block: uint64(now)}
	am.record(ctx, ev)
	am.log.Info("Auction extended", "auction_id", id, "new_end", end)
}

func (am *AuctionManager[ID, A, C, B, T]) StartAuction(ctx context.Context, id ID) error {
	unlock, err := am.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return fmt.Errorf("lock auction %v: %w", id, err)
	}
	defer unlock()

	info, err := am.registry.AuctionInfo(ctx, id)
	if err != nil {
		return err
	}
	if info == nil {
		am.log.Warn("Start job for unknown auction", "auction_id", id)
		return nil
	}

	status, err := am.stateCache.GetAuctionStatus(ctx, uint64(id))
	if err != nil {
		return err
	}
	if status != domain.AuctionPending {
		return nil
	}

	am.log.Info("Starting auction", "auction_id", id)
	if err := am.stateCache.SetAuctionStatus(ctx, uint64(id), domain.AuctionActive); err != nil {
		return err
	}
	am.record(ctx, &domain.BidEvent{Type: domain.AuctionOpened, AuctionID: uint64(id), Block: uint64(am.clock.Now())})
	return nil
}

// EndAuction settles an auction whose end block has passed. Open-ended
// auctions never end this way, see CloseAuction.
func (am *AuctionManager[ID, A, C, B, T]) EndAuction(ctx context.Context, id ID) error {
	return am.endAuction(ctx, id, false)
}

// CloseAuction settles an open-ended auction on an external signal. For
// auctions with an end block it behaves like EndAuction.
func (am *AuctionManager[ID, A, C, B, T]) CloseAuction(ctx context.Context, id ID) error {
	return am.endAuction(ctx, id, true)
}

func (am *AuctionManager[ID, A, C, B, T]) endAuction(ctx context.Context, id ID, openEnded bool) error {
	unlock, err := am.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return fmt.Errorf("lock auction %v: %w", id, err)
	}
	defer unlock()

	// Check current status to prevent double-ending
	status, err := am.stateCache.GetAuctionStatus(ctx, uint64(id))
	if err != nil {
		return err
	}
	if status == domain.AuctionRemoved {
		am.log.Debug("Auction already removed", "auction_id", id)
		return nil
	}

	info, err := am.registry.AuctionInfo(ctx, id)
	if err != nil {
		return err
	}

	// Ended means settlement ran but the record may still be stored; only
	// the removal is left to do.
	if status == domain.AuctionEnded {
		if info == nil {
			am.finishRemoval(ctx, id)
			return nil
		}
		am.log.Info("Resuming removal of settled auction", "auction_id", id)
		return am.removeSettled(ctx, id)
	}
	if info == nil {
		return nil
	}

	now := am.clock.Now()
	if info.End == nil && !openEnded {
		return fmt.Errorf("auction %v has no end block: %w", id, domain.ErrAuctionNotEnded)
	}
	if info.End != nil && now < *info.End {
		return fmt.Errorf("auction %v ends at %v, now %v: %w", id, *info.End, now, domain.ErrAuctionNotEnded)
	}

	am.log.Info("Ending auction", "auction_id", id, "block", now)
	am.handler.OnAuctionEnded(ctx, id, info.Bid)

	if err := am.stateCache.SetAuctionStatus(ctx, uint64(id), domain.AuctionEnded); err != nil {
		am.log.Error("Failed to mark auction ended", "auction_id", id, "error", err)
	}

	ev := &domain.BidEvent{Type: domain.AuctionSettled, AuctionID: uint64(id), Block: uint64(now)}
	if info.Bid != nil {
		ev.Account = fmt.Sprint(info.Bid.Account)
		ev.Currency = fmt.Sprint(info.Bid.Currency)
		ev.Amount = uint64(info.Bid.Amount)
	}
	am.record(ctx, ev)

	return am.removeSettled(ctx, id)
}

// removeSettled drops the record of a settled auction. Callers hold the
// auction lock.
func (am *AuctionManager[ID, A, C, B, T]) removeSettled(ctx context.Context, id ID) error {
	if err := am.registry.RemoveAuction(ctx, id); err != nil {
		return fmt.Errorf("remove auction %v: %w", id, err)
	}
	am.finishRemoval(ctx, id)
	return nil
}

func (am *AuctionManager[ID, A, C, B, T]) finishRemoval(ctx context.Context, id ID) {
	if err := am.stateCache.SetAuctionStatus(ctx, uint64(id), domain.AuctionRemoved); err != nil {
		am.log.Error("Failed to mark auction removed", "auction_id", id, "error", err)
	}
	if am.scheduler != nil {
		if err := am.scheduler.CancelSchedule(ctx, id); err != nil {
			am.log.Error("Failed to cancel auction jobs", "auction_id", id, "error", err)
		}
	}
}

// Status returns the lifecycle status recorded for id.
func (am *AuctionManager[ID, A, C, B, T]) Status(ctx context.Context, id ID) (domain.AuctionStatus, error) {
	return am.stateCache.GetAuctionStatus(ctx, uint64(id))
}

// BidHistory returns the accepted bids of id, oldest first.
func (am *AuctionManager[ID, A, C, B, T]) BidHistory(ctx context.Context, id ID) ([]*domain.BidEvent, error) {
	if am.bidRepo == nil {
		return nil, errors.New("bid history is not recorded")
	}
	return am.bidRepo.GetBidHistory(ctx, uint64(id))
}

func (am *AuctionManager[ID, A, C, B, T]) bidEvent(t domain.BidEventType, id ID, bid domain.Bid[A, C, B], now T) *domain.BidEvent {
	return &domain.BidEvent{
		Type:      t,
		AuctionID: uint64(id),
		Account:   fmt.Sprint(bid.Account),
		Currency:  fmt.Sprint(bid.Currency),
		Amount:    uint64(bid.Amount),
		Block:     uint64(now),
	}
}

func (am *AuctionManager[ID, A, C, B, T]) record(ctx context.Context, event *domain.BidEvent) {
	event.Timestamp = time.Now()
	if am.eventPub != nil {
		if err := am.eventPub.PublishBidEvent(ctx, event); err != nil {
			am.log.Warn("Failed to publish bid event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
		}
	}
	if am.bidRepo != nil {
		if err := am.bidRepo.SaveBidEvent(ctx, event); err != nil {
			am.log.Warn("Failed to save bid event", "type", event.Type, "auction_id", event.AuctionID, "error", err)
		}
	}
}
