package domain

import "context"

type CommandKind string

const (
	CommandCreate  CommandKind = "create"
	CommandBid     CommandKind = "bid"
	CommandClose   CommandKind = "close"
	CommandDeposit CommandKind = "deposit"
)

// Command is an instruction received from outside the service. Only the
// fields relevant to Kind are set.
type Command struct {
	Kind      CommandKind
	AuctionID uint64
	Account   string
	Currency  string
	Amount    uint64
	Start     uint64
	End       *uint64
	Accepts   *string
	Dispenses *string
}

type CommandHandler func(ctx context.Context, cmd *Command) error
