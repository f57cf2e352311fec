package services

import (
	"context"
	"fmt"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// ServiceManager is the manager parameterisation run by the service binary.
type ServiceManager = AuctionManager[domain.AuctionID, domain.AccountID, domain.CurrencyID, domain.Balance, domain.BlockNumber]

// Depositor credits free balance to an account.
type Depositor[A, C comparable, B domain.Unsigned] interface {
	Deposit(ctx context.Context, account A, currency C, amount B) error
}

// CommandExecutor applies externally received commands to the manager.
type CommandExecutor struct {
	manager *ServiceManager
	funds   Depositor[domain.AccountID, domain.CurrencyID, domain.Balance]
	log     logger.Logger
}

func NewCommandExecutor(manager *ServiceManager, funds Depositor[domain.AccountID, domain.CurrencyID, domain.Balance], log logger.Logger) *CommandExecutor {
	return &CommandExecutor{manager: manager, funds: funds, log: log}
}

// Handle executes cmd. It has the signature of domain.CommandHandler.
func (e *CommandExecutor) Handle(ctx context.Context, cmd *domain.Command) error {
	switch cmd.Kind {
	case domain.CommandCreate:
		var end *domain.BlockNumber
		if cmd.End != nil {
			b := domain.BlockNumber(*cmd.End)
			end = &b
		}
		id, err := e.manager.CreateAuction(ctx, domain.BlockNumber(cmd.Start), end,
			currencyPtr(cmd.Accepts), currencyPtr(cmd.Dispenses))
		if err != nil {
			return err
		}
		e.log.Info("Auction created", "auction_id", id, "start", cmd.Start)
		return nil

	case domain.CommandBid:
		id, err := auctionID(cmd.AuctionID)
		if err != nil {
			return err
		}
		accepted, err := e.manager.PlaceBid(ctx, id, domain.Bid[domain.AccountID, domain.CurrencyID, domain.Balance]{
			Account:  domain.AccountID(cmd.Account),
			Currency: domain.CurrencyID(cmd.Currency),
			Amount:   domain.Balance(cmd.Amount),
		})
		if err != nil {
			return err
		}
		e.log.Info("Bid processed", "auction_id", id, "account", cmd.Account, "amount", cmd.Amount, "accepted", accepted)
		return nil

	case domain.CommandClose:
		id, err := auctionID(cmd.AuctionID)
		if err != nil {
			return err
		}
		return e.manager.CloseAuction(ctx, id)

	case domain.CommandDeposit:
		return e.funds.Deposit(ctx, domain.AccountID(cmd.Account), domain.CurrencyID(cmd.Currency), domain.Balance(cmd.Amount))

	default:
		return fmt.Errorf("unsupported command %q", cmd.Kind)
	}
}

func auctionID(raw uint64) (domain.AuctionID, error) {
	if raw > uint64(domain.MaxValue[domain.AuctionID]()) {
		return 0, fmt.Errorf("auction %d: %w", raw, domain.ErrNotFound)
	}
	return domain.AuctionID(raw), nil
}

func currencyPtr(s *string) *domain.CurrencyID {
	if s == nil {
		return nil
	}
	c := domain.CurrencyID(*s)
	return &c
}
