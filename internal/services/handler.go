package services

import (
	"context"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// AuctionReader is the read side of a Registry.
type AuctionReader[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] interface {
	AuctionInfo(ctx context.Context, id ID) (*domain.AuctionInfo[A, C, B, T], error)
}

// Rejection reasons, logged with every refused bid.
const (
	reasonCurrencyMismatch      = "currency_mismatch"
	reasonAuctionNotFound       = "auction_not_found"
	reasonAuctionUnreadable     = "auction_unreadable"
	reasonCurrencyNotAccepted   = "currency_not_accepted"
	reasonAuctionNotActive      = "auction_not_active"
	reasonZeroAmount            = "zero_amount"
	reasonBelowMinimumBid       = "below_minimum_bid"
	reasonCurrencyChanged       = "currency_changed"
	reasonInsufficientIncrement = "insufficient_increment"
	reasonOverflow              = "overflow"
)

// PolicyHandler is a Handler driven by a Policy and an increment ladder.
// It keeps no auction state: the current end is read from the registry on
// each bid and settlement goes through FundCustody.
type PolicyHandler[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned] struct {
	auctions AuctionReader[ID, A, C, B, T]
	rules    IncrementRules[B]
	custody  domain.FundCustody[A, C, B]
	policy   Policy[A, B, T]
	log      logger.Logger
}

func NewPolicyHandler[ID domain.Unsigned, A, C comparable, B, T domain.Unsigned](
	auctions AuctionReader[ID, A, C, B, T],
	rules IncrementRules[B],
	custody domain.FundCustody[A, C, B],
	policy Policy[A, B, T],
	log logger.Logger,
) (*PolicyHandler[ID, A, C, B, T], error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if rules == nil {
		rules = IncrementTiers[B](nil)
	}
	return &PolicyHandler[ID, A, C, B, T]{
		auctions: auctions,
		rules:    rules,
		custody:  custody,
		policy:   policy,
		log:      log,
	}, nil
}

func (h *PolicyHandler[ID, A, C, B, T]) OnNewBid(
	ctx context.Context,
	now T,
	id ID,
	currency C,
	newBid domain.Bid[A, C, B],
	lastBid *domain.Bid[A, C, B],
) domain.OnNewBidResult[T] {
	info, reason := h.evaluate(ctx, now, id, currency, newBid, lastBid)
	if reason != "" {
		h.log.Debug("Bid rejected", "auction_id", id, "account", newBid.Account,
			"amount", newBid.Amount, "reason", reason)
		return domain.Rejected[T]()
	}

	return domain.OnNewBidResult[T]{
		AcceptBid:        true,
		AuctionEndChange: h.endChange(now, info.End),
	}
}

func (h *PolicyHandler[ID, A, C, B, T]) evaluate(
	ctx context.Context,
	now T,
	id ID,
	currency C,
	newBid domain.Bid[A, C, B],
	lastBid *domain.Bid[A, C, B],
) (*domain.AuctionInfo[A, C, B, T], string) {
	if newBid.Currency != currency {
		return nil, reasonCurrencyMismatch
	}

	info, err := h.auctions.AuctionInfo(ctx, id)
	if err != nil {
		h.log.Warn("Failed to read auction for bid", "auction_id", id, "error", err)
		return nil, reasonAuctionUnreadable
	}
	if info == nil {
		return nil, reasonAuctionNotFound
	}
	if info.Accepts != nil && *info.Accepts != currency {
		return nil, reasonCurrencyNotAccepted
	}
	if info.Status(now) != domain.AuctionActive {
		return nil, reasonAuctionNotActive
	}

	if lastBid == nil {
		if newBid.Amount == 0 {
			return nil, reasonZeroAmount
		}
		if newBid.Amount < h.policy.MinimumBid {
			return nil, reasonBelowMinimumBid
		}
		return info, ""
	}

	if lastBid.Currency != newBid.Currency {
		return nil, reasonCurrencyChanged
	}
	required := lastBid.Amount + h.rules.MinimumIncrement(lastBid.Amount)
	if required < lastBid.Amount {
		return nil, reasonOverflow
	}
	if newBid.Amount < required {
		return nil, reasonInsufficientIncrement
	}
	if !h.policy.AllowEqualBids && newBid.Amount <= lastBid.Amount {
		return nil, reasonInsufficientIncrement
	}
	return info, ""
}

// endChange applies the anti-snipe rule. The auction is known to be active,
// so now < end whenever end is set.
func (h *PolicyHandler[ID, A, C, B, T]) endChange(now T, end *T) domain.Change[*T] {
	if end == nil || h.policy.ExtensionWindow == 0 {
		return domain.NoChange[*T]()
	}
	if *end-now >= h.policy.ExtensionWindow {
		return domain.NoChange[*T]()
	}

	extended := now + h.policy.ExtensionPeriod
	if extended < now || extended <= *end {
		return domain.NoChange[*T]()
	}
	return domain.NewValue(&extended)
}

// OnAuctionEnded moves the winner's reservation to the beneficiary. Without
// a winner nothing was reserved, so there is nothing to refund.
func (h *PolicyHandler[ID, A, C, B, T]) OnAuctionEnded(ctx context.Context, id ID, winner *domain.Bid[A, C, B]) {
	if winner == nil {
		h.log.Info("Auction closed without bids", "auction_id", id)
		return
	}

	err := h.custody.Transfer(ctx, uint64(id), winner.Account, h.policy.Beneficiary, winner.Currency, winner.Amount)
	if err != nil {
		h.log.Error("Failed to settle auction", "auction_id", id, "winner", winner.Account,
			"amount", winner.Amount, "error", err)
		return
	}

	h.log.Info("Auction settled", "auction_id", id, "winner", winner.Account,
		"currency", winner.Currency, "amount", winner.Amount)
}
