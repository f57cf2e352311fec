package services

import (
	"fmt"

	"auction-core/internal/domain"
)

// Policy is the configurable part of bid handling.
type Policy[A comparable, B, T domain.Unsigned] struct {
	// An accepted bid arriving fewer than ExtensionWindow blocks before the
	// end pushes the end to now + ExtensionPeriod. Zero disables it.
	ExtensionWindow T
	ExtensionPeriod T
	// Smallest acceptable opening bid.
	MinimumBid B
	// Accept bids equal to last + increment instead of strictly above the
	// last bid.
	AllowEqualBids bool
	// Receives the winning bid at settlement.
	Beneficiary A
}

func (p Policy[A, B, T]) Validate() error {
	if p.ExtensionWindow > 0 && p.ExtensionPeriod < p.ExtensionWindow {
		return fmt.Errorf("extension period %v is shorter than extension window %v", p.ExtensionPeriod, p.ExtensionWindow)
	}
	return nil
}
